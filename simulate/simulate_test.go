package simulate

import (
	"testing"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decp(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func holding(symbol, price, count, cost, on string) folio.Asset {
	return folio.Asset{
		ID:     symbol,
		Name:   symbol,
		Type:   folio.Stock,
		Ticker: &folio.Ticker{Symbol: symbol, CurrentPrice: decp(price)},
		Subtypes: []folio.StockSubtype{{Kind: folio.Market, Transactions: []folio.Transaction{{
			ID:           symbol + "-lot",
			Count:        decimal.RequireFromString(count),
			CostPrice:    decimal.RequireFromString(cost),
			PurchaseDate: date.MustParse(on),
		}}}},
	}
}

// fixture: AAPL 10 @ 80 priced 100, MSFT 5 @ 200 priced 150, 1000 cash.
func fixture() *folio.Snapshot {
	return &folio.Snapshot{Assets: []folio.Asset{
		holding("AAPL", "100", "10", "80", "2024-01-01"),
		holding("MSFT", "150", "5", "200", "2025-05-01"),
		{ID: "cash", Name: "Checking", Type: folio.Cash, Price: decp("1000")},
	}}
}

func TestCurrent(t *testing.T) {
	got := Current(fixture())
	assert.Equal(t, 2750.0, got.NetWorth)
	assert.Equal(t, 1750.0, got.StockValue)
	assert.Equal(t, 1000.0, got.CashValue)
	assert.Equal(t, 36.36, got.CashAllocationPct)
	assert.Equal(t, 2, got.PositionCount)
	assert.Equal(t, 0.5102, got.Concentration)
	require.Len(t, got.Holdings, 2)
	assert.Equal(t, "AAPL", got.Holdings[0].Symbol)
}

func TestSellUsesAverageCost(t *testing.T) {
	r := RunActions(fixture(), []Action{{Type: Sell, Symbol: "AAPL", Shares: 4, Price: 110}})

	assert.Empty(t, r.Warnings)
	require.Len(t, r.AppliedActions, 1)
	assert.Equal(t, 120.0, r.RealizedPnL)
	assert.Equal(t, 1440.0, r.After.CashValue)
	assert.Equal(t, 440.0, r.Delta.CashValue)
	assert.Equal(t, 600.0, r.After.Holdings[1].Value)
}

func TestSellCapsToAvailableShares(t *testing.T) {
	r := RunActions(fixture(), []Action{{Type: Sell, Symbol: "AAPL", Shares: 20}})

	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], "only 10 AAPL shares available")
	assert.Len(t, r.AppliedActions, 1)
	assert.Equal(t, 1, r.After.PositionCount)
	assert.Equal(t, -1, r.Delta.PositionCount)
	assert.Equal(t, 200.0, r.RealizedPnL)
	assert.Equal(t, 2000.0, r.After.CashValue)
}

func TestBuyAndCashActions(t *testing.T) {
	noCash := false
	r := RunActions(fixture(), []Action{
		{Type: Buy, Symbol: "NVDA", Shares: 2, Price: 50},
		{Type: Buy, Symbol: "AAPL", Shares: 1, UseCash: &noCash},
		{Type: SetPrice, Symbol: "MSFT", Price: 200},
		{Type: AddCash, Amount: 100},
		{Type: RemoveCash, Amount: 50},
	})
	assert.Empty(t, r.Warnings)
	assert.Len(t, r.AppliedActions, 5)
	assert.Equal(t, 3, r.After.PositionCount)
	assert.Equal(t, 950.0, r.After.CashValue)
	// NVDA 100 + AAPL 1100 + MSFT 1000
	assert.Equal(t, 2200.0, r.After.StockValue)

	r = RunActions(fixture(), []Action{{Type: SetCashTotal, Amount: 5000}})
	assert.Equal(t, 5000.0, r.After.CashValue)
}

func TestRunNeverFails(t *testing.T) {
	raw := []any{
		"garbage",
		nil,
		map[string]any{"type": "teleport"},
		map[string]any{"type": "buy", "symbol": "AAPL", "shares": "lots"},
		map[string]any{"type": "buy", "symbol": "ZZZ", "shares": 1},
		map[string]any{"type": "sell", "symbol": "NOPE", "shares": 1},
		map[string]any{"type": "add_cash", "amount": -5},
		map[string]any{"type": "set_price", "symbol": "AAPL", "price": 0},
		map[string]any{"type": "add_cash", "amount": 10},
	}
	var r Result
	require.NotPanics(t, func() { r = Run(fixture(), raw) })

	assert.Len(t, r.Warnings, 8)
	require.Len(t, r.AppliedActions, 1)
	assert.Equal(t, AddCash, r.AppliedActions[0].Type)
	assert.Equal(t, 10.0, r.Delta.CashValue)

	require.NotPanics(t, func() { r = Run(&folio.Snapshot{}, nil) })
	assert.Equal(t, 0.0, r.After.NetWorth)
}

func TestUnpricedAssumption(t *testing.T) {
	snap := fixture()
	snap.Assets[1].Ticker.CurrentPrice = nil
	r := RunActions(snap, nil)
	assert.Contains(t, r.Assumptions, "MSFT has no current price and is valued at 0")
}

func TestAmountsRoundWithoutFloatDrift(t *testing.T) {
	snap := &folio.Snapshot{Assets: []folio.Asset{holding("ZZZ", "1", "1", "0", "2024-01-01")}}
	// 1.005 is 1.00499999... as a float64.
	r := RunActions(snap, []Action{{Type: Sell, Symbol: "ZZZ", Shares: 1, Price: 1.005}})

	assert.Empty(t, r.Warnings)
	assert.Equal(t, 1.01, r.RealizedPnL)
	assert.Equal(t, 1.01, r.After.CashValue)
	assert.Equal(t, 0, r.After.PositionCount)
}
