package mutation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakePrices map[string]decimal.Decimal

func (f fakePrices) Latest(_ context.Context, symbol string) (decimal.Decimal, time.Time, error) {
	p, ok := f[symbol]
	if !ok {
		return decimal.Zero, time.Time{}, errors.New("unknown symbol")
	}
	return p, time.Date(2025, 5, 30, 20, 0, 0, 0, time.UTC), nil
}

func TestBackfill(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	st := newStore(t)
	b := NewBackfill(st, fakePrices{"NVDA": decimal.NewFromInt(120)}, nil)
	a := &Applier{Store: st, Backfill: b}

	w, err := Prepare("add_ticker_to_watchlist", map[string]any{"ticker": "NVDA"})
	require.NoError(t, err)
	_, err = a.Apply(context.Background(), w)
	require.NoError(t, err)

	// A failing fetch does not fail the write.
	w, err = Prepare("add_ticker_to_watchlist", map[string]any{"ticker": "ZZZ"})
	require.NoError(t, err)
	_, err = a.Apply(context.Background(), w)
	require.NoError(t, err)

	b.Wait()
	select {
	case err := <-b.Errors():
		assert.Contains(t, err.Error(), "ZZZ")
	default:
		t.Error("the failed backfill was not reported")
	}

	snap := snapshot(t, st)
	require.NotNil(t, snap.Ticker("NVDA").CurrentPrice)
	assert.True(t, snap.Ticker("NVDA").CurrentPrice.Equal(decimal.NewFromInt(120)))
	require.NotNil(t, snap.Ticker("NVDA").LastUpdated)
	assert.Nil(t, snap.Ticker("ZZZ").CurrentPrice)
}
