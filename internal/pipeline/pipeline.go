package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/covid-br-etl/internal/domain"
	"github.com/couchcryptid/covid-br-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Source retrieves the raw upstream feeds.
type Source interface {
	FetchStates(ctx context.Context) ([]domain.RawStateRow, error)
	FetchCities(ctx context.Context) ([]domain.RawCityRow, error)
}

// Sink persists shaped tables.
type Sink interface {
	Name() string
	WriteStates(ctx context.Context, table []domain.StateRecord) error
	WriteCities(ctx context.Context, state string, table []domain.CityRecord) error
}

// Loader runs the fetch-and-shape operations. Every call re-fetches its feed;
// nothing is cached between calls.
type Loader struct {
	source  Source
	sinks   []Sink
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock

	mu      sync.Mutex
	lastErr error
}

// New creates a Loader. Sinks are written in order when a caller asks for
// the result to be stored.
func New(source Source, sinks []Sink, logger *slog.Logger, metrics *observability.Metrics) *Loader {
	return &Loader{
		source:  source,
		sinks:   sinks,
		logger:  logger,
		metrics: metrics,
		clock:   clockwork.NewRealClock(),
	}
}

// CheckReadiness returns the error of the most recent load, or nil if it
// succeeded or nothing has been loaded yet.
func (l *Loader) CheckReadiness(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lastErr != nil {
		return fmt.Errorf("last load failed: %w", l.lastErr)
	}
	return nil
}

// LoadStates fetches the state feed and returns the national table of rows
// whose confirmed count exceeds minConfirmed. When store is set the table is
// written to every sink.
func (l *Loader) LoadStates(ctx context.Context, minConfirmed int64, store bool) ([]domain.StateRecord, error) {
	raw, err := l.source.FetchStates(ctx)
	if err != nil {
		l.record(err)
		return nil, err
	}

	table := domain.ShapeStates(raw, minConfirmed)
	l.metrics.RowsEmitted.WithLabelValues("states").Add(float64(len(table)))
	l.logger.Info("states loaded",
		"rows_fetched", len(raw),
		"rows_kept", len(table),
		"min_confirmed", minConfirmed,
	)

	if store {
		err := l.persist(ctx, len(table), func(ctx context.Context, s Sink) error {
			return s.WriteStates(ctx, table)
		})
		if err != nil {
			l.record(err)
			return nil, err
		}
	}

	l.record(nil)
	l.metrics.LastSuccess.WithLabelValues("states").Set(float64(l.clock.Now().Unix()))
	return table, nil
}

// LoadCities fetches the city feed and returns the city table of one state.
// When store is set the table is written to every sink.
func (l *Loader) LoadCities(ctx context.Context, state string, store bool) ([]domain.CityRecord, error) {
	raw, err := l.source.FetchCities(ctx)
	if err != nil {
		l.record(err)
		return nil, err
	}

	table := domain.ShapeCities(raw, state)
	l.metrics.RowsEmitted.WithLabelValues("cities").Add(float64(len(table)))
	l.logger.Info("cities loaded",
		"state", state,
		"rows_fetched", len(raw),
		"rows_kept", len(table),
	)

	if store {
		err := l.persist(ctx, len(table), func(ctx context.Context, s Sink) error {
			return s.WriteCities(ctx, state, table)
		})
		if err != nil {
			l.record(err)
			return nil, err
		}
	}

	l.record(nil)
	l.metrics.LastSuccess.WithLabelValues("cities").Set(float64(l.clock.Now().Unix()))
	return table, nil
}

// persist writes a table to every sink, stopping at the first failure.
// An empty table is skipped: persisted files are named after the latest row.
func (l *Loader) persist(ctx context.Context, rows int, write func(context.Context, Sink) error) error {
	if rows == 0 {
		l.logger.Warn("nothing to store, table is empty")
		return nil
	}

	for _, s := range l.sinks {
		if err := write(ctx, s); err != nil {
			l.metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			return fmt.Errorf("%s sink: %w", s.Name(), err)
		}
		l.metrics.RowsPersisted.WithLabelValues(s.Name()).Add(float64(rows))
	}
	return nil
}

func (l *Loader) record(err error) {
	l.mu.Lock()
	l.lastErr = err
	l.mu.Unlock()
}
