package mutation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/etnz/folio"
	"github.com/etnz/folio/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PriceSource returns the latest known price of a ticker.
type PriceSource interface {
	Latest(ctx context.Context, symbol string) (price decimal.Decimal, at time.Time, err error)
}

// Backfill fetches the latest price of newly created tickers in the background.
//
// It is best effort: failures are logged and reported on Errors, never to the write that
// created the ticker.
type Backfill struct {
	store   Store
	prices  PriceSource
	log     *zap.Logger
	timeout time.Duration

	errs chan error
	wg   sync.WaitGroup
}

// NewBackfill returns a Backfill writing prices to st. log may be nil.
func NewBackfill(st Store, prices PriceSource, log *zap.Logger) *Backfill {
	if log == nil {
		log = zap.NewNop()
	}
	return &Backfill{store: st, prices: prices, log: log, timeout: 30 * time.Second, errs: make(chan error, 16)}
}

// Errors reports backfill failures. Failures are dropped when nobody reads them.
func (b *Backfill) Errors() <-chan error { return b.errs }

// Start fetches the prices of symbols in the background. It does not wait, and the
// background work outlives ctx's cancellation.
func (b *Backfill) Start(ctx context.Context, symbols ...string) {
	ctx = context.WithoutCancel(ctx)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, b.timeout)
		defer cancel()
		if err := b.run(ctx, symbols); err != nil {
			b.log.Warn("price backfill failed", zap.Strings("symbols", symbols), zap.Error(err))
			select {
			case b.errs <- err:
			default:
			}
		}
	}()
}

// Wait blocks until every started backfill is done.
func (b *Backfill) Wait() { b.wg.Wait() }

func (b *Backfill) run(ctx context.Context, symbols []string) error {
	var errs []error
	for _, sym := range symbols {
		price, at, err := b.prices.Latest(ctx, sym)
		if err != nil {
			errs = append(errs, folio.ServiceError{Service: "quotes", Err: fmt.Errorf("%s: %w", sym, err)})
			continue
		}
		err = b.store.InTx(ctx, func(tx *store.Tx) error { return tx.SetTickerPrice(ctx, sym, price, at) })
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to save %s price: %w", sym, err))
			continue
		}
		b.log.Debug("price backfilled", zap.String("symbol", sym), zap.Stringer("price", price))
	}
	return errors.Join(errs...)
}
