package analytics

import (
	"fmt"
	"testing"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func cash(name, location, value string) folio.Asset {
	return folio.Asset{ID: "cash-" + name, Name: name, Type: folio.Cash, Location: location, Price: decp(value)}
}

func stock(id, location string, ticker *folio.Ticker, kind folio.SubtypeKind, lots ...folio.Transaction) folio.Asset {
	return folio.Asset{
		ID:       id,
		Name:     ticker.Symbol + " @ " + location,
		Type:     folio.Stock,
		Location: location,
		Ticker:   ticker,
		Subtypes: []folio.StockSubtype{{ID: id + "-st", Kind: kind, Transactions: lots}},
	}
}

func lot(id string, seq int64, count, cost, on string) folio.Transaction {
	return folio.Transaction{ID: id, Seq: seq, Count: dec(count), CostPrice: dec(cost), PurchaseDate: date.MustParse(on)}
}

// fixture is a small portfolio:
//
//	AAPL  10 @ 80 + 5 @ 120 at Fidelity, 2 @ 90 at Schwab, priced 100
//	MSFT  4 @ 300 at Fidelity, priced 250, themes AI and Cloud
//	NOPE  1 @ 10 at Schwab, not priced
//	Checking 500, Savings 1500
func fixture() *folio.Snapshot {
	aapl := &folio.Ticker{Symbol: "AAPL", CurrentPrice: decp("100")}
	msft := &folio.Ticker{Symbol: "MSFT", CurrentPrice: decp("250"), Themes: []string{"AI", "Cloud"}}
	nope := &folio.Ticker{Symbol: "NOPE"}
	snap := &folio.Snapshot{
		Assets: []folio.Asset{
			stock("aapl-fid", "Fidelity", aapl, folio.Market,
				lot("t1", 1, "10", "80", "2023-01-10"),
				lot("t2", 2, "5", "120", "2025-05-01")),
			stock("aapl-sch", "Schwab", aapl, folio.ESPP, lot("t3", 3, "2", "90", "2024-06-20")),
			stock("msft-fid", "Fidelity", msft, folio.Market, lot("t4", 4, "4", "300", "2024-02-01")),
			stock("nope-sch", "Schwab", nope, folio.Market, lot("t5", 5, "1", "10", "2024-02-01")),
			cash("Checking", "Chase", "500"),
			cash("Savings", "Ally", "1500"),
		},
		Tickers: []folio.Ticker{*aapl, *msft, *nope},
	}
	return snap
}

func TestPortfolioSummary(t *testing.T) {
	got := PortfolioSummary(fixture())

	// AAPL 17 × 100 = 1700, MSFT 4 × 250 = 1000, cash 2000.
	assert.Equal(t, 4700.0, got.NetWorth)
	assert.Equal(t, 2700.0, got.StockValue)
	assert.Equal(t, 2000.0, got.CashValue)
	assert.Equal(t, 57.45, got.StockAllocationPct)
	// AAPL cost 800 + 600 + 180 = 1580, MSFT 1200, NOPE 10.
	assert.Equal(t, 2700.0-1580-1200-10, got.UnrealizedStockPnL)

	want := []Holding{
		{Name: "AAPL", Symbol: "AAPL", Value: 1700, AllocationPct: 36.17},
		{Name: "Savings", Value: 1500, AllocationPct: 31.91},
		{Name: "MSFT", Symbol: "MSFT", Value: 1000, AllocationPct: 21.28},
		{Name: "Checking", Value: 500, AllocationPct: 10.64},
		{Name: "NOPE", Symbol: "NOPE", Value: 0, AllocationPct: 0},
	}
	if diff := cmp.Diff(want, got.TopHoldings); diff != "" {
		t.Errorf("TopHoldings mismatch (-want +got):\n%s", diff)
	}
}

func TestPositions(t *testing.T) {
	snap := fixture()

	rows := Positions(snap, PositionFilter{Symbols: []string{"aapl"}})
	require.Len(t, rows, 2)
	assert.Equal(t, "aapl-fid", rows[0].AssetID)
	assert.Equal(t, 1500.0, rows[0].Value)
	assert.Equal(t, 15.0, rows[0].Shares)

	rows = Positions(snap, PositionFilter{AssetTypes: []folio.AssetType{folio.Cash}})
	require.Len(t, rows, 2)
	assert.Equal(t, "Savings", rows[0].Name)

	rows = Positions(snap, PositionFilter{Locations: []string{"schwab"}})
	require.Len(t, rows, 2)
	assert.Equal(t, "aapl-sch", rows[0].AssetID)
}

func TestPositionsLimits(t *testing.T) {
	snap := &folio.Snapshot{}
	for i := range 600 {
		snap.Assets = append(snap.Assets, cash(fmt.Sprintf("acct-%03d", i), "Bank", "1"))
	}
	assert.Len(t, Positions(snap, PositionFilter{}), DefaultPositionLimit)
	assert.Len(t, Positions(snap, PositionFilter{Limit: 10_000}), MaxPositionLimit)
	assert.Len(t, Positions(snap, PositionFilter{Limit: 7}), 7)
}

func TestTransactions(t *testing.T) {
	today := date.New(2025, 6, 1)
	rows := Transactions(fixture(), today, TransactionFilter{Symbols: []string{"AAPL"}})
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"t2", "t3", "t1"}, []string{rows[0].ID, rows[1].ID, rows[2].ID})
	assert.Equal(t, folio.LongTerm, rows[2].Status)
	assert.Equal(t, folio.ShortTerm, rows[0].Status)

	rows = Transactions(fixture(), today, TransactionFilter{
		Range: date.Range{From: date.New(2024, 1, 1), To: date.New(2024, 12, 31)},
	})
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.Equal(t, 2024, r.PurchaseDate.Year())
	}

	rows = Transactions(fixture(), today, TransactionFilter{Subtypes: []folio.SubtypeKind{folio.ESPP}})
	require.Len(t, rows, 1)
	assert.Equal(t, "t3", rows[0].ID)
}

func TestTransactionsSameDayOrder(t *testing.T) {
	ticker := &folio.Ticker{Symbol: "X"}
	snap := &folio.Snapshot{Assets: []folio.Asset{
		stock("x", "Bank", ticker, folio.Market,
			lot("first", 1, "1", "1", "2024-01-01"),
			lot("second", 2, "1", "1", "2024-01-01")),
	}}
	rows := Transactions(snap, date.New(2025, 1, 1), TransactionFilter{})
	require.Len(t, rows, 2)
	assert.Equal(t, "second", rows[0].ID)
}
