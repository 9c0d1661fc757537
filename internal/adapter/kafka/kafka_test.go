package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/covid-br-etl/internal/domain"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

var testNow = time.Date(2020, time.April, 2, 6, 0, 0, 0, time.UTC)

func testWriter(fw *fakeWriter) *Writer {
	return &Writer{
		writer: fw,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:  clockwork.NewFakeClockAt(testNow),
	}
}

func TestSerializeToMessage(t *testing.T) {
	row := domain.StateRecord{
		Date:      time.Date(2020, time.March, 10, 0, 0, 0, 0, time.UTC),
		State:     "RJ",
		Infected:  47,
		Confirmed: 50,
		Dead:      1,
	}

	msg, err := serializeToMessage("RJ|2020-03-10", tableStates, row, testNow)
	require.NoError(t, err)

	assert.Equal(t, []byte("RJ|2020-03-10"), msg.Key)
	assert.JSONEq(t, `{"date":"2020-03-10T00:00:00Z","state":"RJ","infected":47,"confirmed":50,"dead":1,"recovered":0,"day":0}`, string(msg.Value))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "table", msg.Headers[0].Key)
	assert.Equal(t, []byte("states"), msg.Headers[0].Value)
	assert.Equal(t, "processed_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2020-04-02T06:00:00Z"), msg.Headers[1].Value)
}

func TestWriter_WriteStates(t *testing.T) {
	fw := &fakeWriter{}
	w := testWriter(fw)

	table := []domain.StateRecord{
		{Date: time.Date(2020, time.March, 10, 0, 0, 0, 0, time.UTC), State: "RJ", Confirmed: 50},
		{Date: time.Date(2020, time.March, 10, 0, 0, 0, 0, time.UTC), State: "SP", Confirmed: 16},
	}

	require.NoError(t, w.WriteStates(context.Background(), table))

	require.Len(t, fw.msgs, 2)
	assert.Equal(t, "RJ|2020-03-10", string(fw.msgs[0].Key))
	assert.Equal(t, "SP|2020-03-10", string(fw.msgs[1].Key))
}

func TestWriter_WriteCities(t *testing.T) {
	fw := &fakeWriter{}
	w := testWriter(fw)

	table := []domain.CityRecord{
		{Date: time.Date(2020, time.March, 5, 0, 0, 0, 0, time.UTC), State: "RJ", City: "Rio de Janeiro/RJ", Confirmed: 1},
	}

	require.NoError(t, w.WriteCities(context.Background(), "RJ", table))

	require.Len(t, fw.msgs, 1)
	assert.Equal(t, "RJ|Rio de Janeiro/RJ|2020-03-05", string(fw.msgs[0].Key))
	assert.Equal(t, []byte("cities"), fw.msgs[0].Headers[0].Value)
	assert.Contains(t, string(fw.msgs[0].Value), `"city":"Rio de Janeiro/RJ"`)
}

func TestWriter_EmptyTableIsNoop(t *testing.T) {
	fw := &fakeWriter{err: errors.New("must not be called")}
	w := testWriter(fw)

	require.NoError(t, w.WriteStates(context.Background(), nil))
	require.NoError(t, w.WriteCities(context.Background(), "RJ", nil))
}

func TestWriter_PublishError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("broker down")}
	w := testWriter(fw)

	err := w.WriteStates(context.Background(), []domain.StateRecord{{State: "RJ"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish states rows")
	assert.Contains(t, err.Error(), "broker down")
}

func TestWriter_Close(t *testing.T) {
	fw := &fakeWriter{}
	require.NoError(t, testWriter(fw).Close())
	assert.True(t, fw.closed)
}
