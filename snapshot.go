package folio

import (
	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
)

// Snapshot is the read-only view of the portfolio used for the whole duration of one command.
type Snapshot struct {
	Assets  []Asset
	Tickers []Ticker
	// History holds the recorded net-worth points.
	History date.History[float64]
}

// Ticker returns the ticker for symbol, or nil.
func (s *Snapshot) Ticker(symbol string) *Ticker {
	symbol = NormalizeSymbol(symbol)
	for i := range s.Tickers {
		if s.Tickers[i].Symbol == symbol {
			return &s.Tickers[i]
		}
	}
	return nil
}

// StockAssets returns the stock assets holding symbol.
func (s *Snapshot) StockAssets(symbol string) []Asset {
	symbol = NormalizeSymbol(symbol)
	var assets []Asset
	for _, a := range s.Assets {
		if a.IsStock() && a.Symbol() == symbol {
			assets = append(assets, a)
		}
	}
	return assets
}

// NetWorth returns the sum of the market values of every asset.
func (s *Snapshot) NetWorth() decimal.Decimal {
	total := decimal.Zero
	for _, a := range s.Assets {
		total = total.Add(MarketValue(a))
	}
	return total
}
