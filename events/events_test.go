package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/etnz/folio/mutation"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
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

func TestPublish(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w := &fakeWriter{}
	p := &Producer{writer: w, topic: "folio-writes", now: func() time.Time { return at }}

	out := mutation.Outcome{WriteID: "w1", Kind: mutation.AddTickerToWatchlist, Message: "Added NVDA to the watchlist.", NewTickers: []string{"NVDA"}}
	require.NoError(t, p.Publish(context.Background(), out))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "w1", string(w.msgs[0].Key))

	var got Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, NewEvent(out, at), got)
	assert.Equal(t, WriteApplied, got.EventType)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishFailure(t *testing.T) {
	p := &Producer{writer: &fakeWriter{err: errors.New("no broker")}, now: time.Now}
	err := p.Publish(context.Background(), mutation.Outcome{WriteID: "w1"})
	assert.ErrorContains(t, err, "failed to write message to kafka: no broker")
}

func TestNop(t *testing.T) {
	var n Nop
	assert.NoError(t, n.Publish(context.Background(), mutation.Outcome{}))
	assert.NoError(t, n.Close())
}
