package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/covid-br-etl/internal/domain"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	tableStates = "states"
	tableCities = "cities"
)

// messageWriter is the subset of *kafkago.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes persisted rows to a Kafka topic, one message per row.
// It implements pipeline.Sink.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
	clock  clockwork.Clock
}

// NewWriter creates a Kafka producer for the given brokers and topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger, clock: clockwork.NewRealClock()}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "kafka" }

// WriteStates publishes each national row keyed by "<state>|<date>".
func (w *Writer) WriteStates(ctx context.Context, table []domain.StateRecord) error {
	if len(table) == 0 {
		return nil
	}
	now := w.clock.Now()
	msgs := make([]kafkago.Message, len(table))
	for i := range table {
		key := table[i].State + "|" + table[i].Date.Format(domain.DateLayout)
		msg, err := serializeToMessage(key, tableStates, table[i], now)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.publish(ctx, tableStates, msgs)
}

// WriteCities publishes each city row keyed by "<state>|<city>|<date>".
func (w *Writer) WriteCities(ctx context.Context, _ string, table []domain.CityRecord) error {
	if len(table) == 0 {
		return nil
	}
	now := w.clock.Now()
	msgs := make([]kafkago.Message, len(table))
	for i := range table {
		key := table[i].State + "|" + table[i].City + "|" + table[i].Date.Format(domain.DateLayout)
		msg, err := serializeToMessage(key, tableCities, table[i], now)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.publish(ctx, tableCities, msgs)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func (w *Writer) publish(ctx context.Context, table string, msgs []kafkago.Message) error {
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %s rows: %w", table, err)
	}
	w.logger.Info("rows published", "table", table, "count", len(msgs))
	return nil
}

// serializeToMessage marshals a row into a Kafka message.
func serializeToMessage(key, table string, row any, processedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s row: %w", table, err)
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "table", Value: []byte(table)},
			{Key: "processed_at", Value: []byte(processedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
