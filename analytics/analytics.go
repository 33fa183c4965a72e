// Package analytics computes read-only aggregations over a portfolio snapshot: summary, position
// and transaction rows, net-worth time series, exposure breakdowns and tax-lot analysis.
//
// Every function is pure: it reads the snapshot and never changes it, so they can run
// concurrently on the same snapshot.
package analytics

import (
	"cmp"
	"slices"
	"strings"

	"github.com/etnz/folio"
	"github.com/shopspring/decimal"
)

// Result limits. Larger requested limits are capped to keep tool results small.
const (
	DefaultPositionLimit    = 100
	MaxPositionLimit        = 500
	DefaultTransactionLimit = 200
	MaxTransactionLimit     = 1000
	topHoldings             = 5
)

// f rounds to the cent and returns a float64 for JSON consumers.
func f(d decimal.Decimal) float64 { return d.Round(2).InexactFloat64() }

// pct returns part/total in percent, rounded to 2 decimals, or 0 for an empty total.
func pct(part, total decimal.Decimal) float64 {
	if total.IsZero() {
		return 0
	}
	return part.Div(total).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

// limit applies the default and the hard cap.
func limit(requested, def, hi int) int {
	switch {
	case requested <= 0:
		return def
	case requested > hi:
		return hi
	}
	return requested
}

// matchAny reports whether s is in set (case-insensitively), an empty set matches everything.
func matchAny(set []string, s string) bool {
	if len(set) == 0 {
		return true
	}
	return slices.ContainsFunc(set, func(x string) bool { return strings.EqualFold(strings.TrimSpace(x), s) })
}

// Holding is a line of the portfolio summary.
type Holding struct {
	Name          string  `json:"name"`
	Symbol        string  `json:"symbol,omitempty"`
	Value         float64 `json:"value"`
	AllocationPct float64 `json:"allocationPct"`
}

// Summary totals the portfolio.
type Summary struct {
	NetWorth           float64   `json:"netWorth"`
	StockValue         float64   `json:"stockValue"`
	CashValue          float64   `json:"cashLikeValue"`
	StockAllocationPct float64   `json:"stockAllocationPct"`
	UnrealizedStockPnL float64   `json:"unrealizedStockPnL"`
	TopHoldings        []Holding `json:"topHoldings"`
}

// PortfolioSummary returns the portfolio totals and its five largest holdings, stocks being
// aggregated per symbol and other assets listed by name.
func PortfolioSummary(snap *folio.Snapshot) Summary {
	stock, cash, pnl := decimal.Zero, decimal.Zero, decimal.Zero
	values := map[string]decimal.Decimal{}
	symbols := map[string]string{}
	for _, a := range snap.Assets {
		v := folio.MarketValue(a)
		key := a.Name
		if a.IsStock() {
			stock = stock.Add(v)
			pnl = pnl.Add(folio.UnrealizedGain(a))
			if s := a.Symbol(); s != "" {
				key = s
				symbols[key] = s
			}
		} else {
			cash = cash.Add(v)
		}
		values[key] = values[key].Add(v)
	}
	total := stock.Add(cash)

	holdings := make([]Holding, 0, len(values))
	for name, v := range values {
		holdings = append(holdings, Holding{Name: name, Symbol: symbols[name], Value: f(v), AllocationPct: pct(v, total)})
	}
	slices.SortFunc(holdings, func(a, b Holding) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if len(holdings) > topHoldings {
		holdings = holdings[:topHoldings]
	}

	return Summary{
		NetWorth:           f(total),
		StockValue:         f(stock),
		CashValue:          f(cash),
		StockAllocationPct: pct(stock, total),
		UnrealizedStockPnL: f(pnl),
		TopHoldings:        holdings,
	}
}
