package analytics

import (
	"cmp"
	"slices"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
)

// PositionFilter selects positions. Empty fields match everything.
type PositionFilter struct {
	Symbols    []string
	AssetTypes []folio.AssetType
	Locations  []string
	Limit      int
}

// PositionRow is an asset projected for display.
type PositionRow struct {
	AssetID        string          `json:"assetId"`
	Name           string          `json:"name"`
	Type           folio.AssetType `json:"assetType"`
	Location       string          `json:"location"`
	Ownership      folio.Ownership `json:"ownership"`
	Symbol         string          `json:"symbol,omitempty"`
	Shares         float64         `json:"shares,omitempty"`
	Price          float64         `json:"price,omitempty"`
	Value          float64         `json:"value"`
	CostBasis      float64         `json:"costBasis,omitempty"`
	UnrealizedGain float64         `json:"unrealizedGain,omitempty"`
	// RSU shares of the asset's grants, reconciled against its vesting lots.
	VestedShares   float64 `json:"vestedShares,omitempty"`
	UnvestedShares float64 `json:"unvestedShares,omitempty"`
}

// Positions returns the assets matching the filter, by value descending then name.
func Positions(snap *folio.Snapshot, filter PositionFilter) []PositionRow {
	var rows []PositionRow
	for _, a := range snap.Assets {
		if len(filter.Symbols) > 0 && !(a.IsStock() && matchAny(filter.Symbols, a.Symbol())) {
			continue
		}
		if len(filter.AssetTypes) > 0 && !slices.Contains(filter.AssetTypes, a.Type) {
			continue
		}
		if !matchAny(filter.Locations, a.Location) {
			continue
		}
		row := PositionRow{
			AssetID:   a.ID,
			Name:      a.Name,
			Type:      a.Type,
			Location:  a.Location,
			Ownership: a.Ownership,
			Value:     f(folio.MarketValue(a)),
		}
		if a.IsStock() {
			row.Symbol = a.Symbol()
			row.Shares = folio.TotalShares(a).InexactFloat64()
			if a.Ticker != nil && a.Ticker.CurrentPrice != nil {
				row.Price = a.Ticker.CurrentPrice.InexactFloat64()
			}
			row.CostBasis = f(folio.CostBasis(a))
			row.UnrealizedGain = f(folio.UnrealizedGain(a))
			for _, v := range a.GrantVestings() {
				row.VestedShares += v.Vested.InexactFloat64()
				row.UnvestedShares += v.Unvested.InexactFloat64()
			}
		}
		rows = append(rows, row)
	}
	slices.SortFunc(rows, func(a, b PositionRow) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.AssetID, b.AssetID)
	})
	if n := limit(filter.Limit, DefaultPositionLimit, MaxPositionLimit); len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

// TransactionFilter selects lots. Empty fields match everything; Range boundaries are inclusive.
type TransactionFilter struct {
	Symbols  []string
	Subtypes []folio.SubtypeKind
	Range    date.Range
	Limit    int
}

// TransactionRow is a lot projected for display.
type TransactionRow struct {
	ID           string            `json:"id"`
	AssetID      string            `json:"assetId"`
	AssetName    string            `json:"assetName"`
	Location     string            `json:"location"`
	Symbol       string            `json:"symbol"`
	Subtype      folio.SubtypeKind `json:"subtype"`
	PurchaseDate date.Date         `json:"purchaseDate"`
	Count        float64           `json:"count"`
	CostPrice    float64           `json:"costPrice"`
	CostBasis    float64           `json:"costBasis"`
	Status       folio.GainsStatus `json:"capitalGainsStatus"`
	seq          int64
}

// Transactions returns the lots matching the filter, most recent purchase first. The
// capital-gains status is recomputed against today.
func Transactions(snap *folio.Snapshot, today date.Date, filter TransactionFilter) []TransactionRow {
	var rows []TransactionRow
	for _, a := range snap.Assets {
		if !a.IsStock() || !matchAny(filter.Symbols, a.Symbol()) {
			continue
		}
		for _, l := range a.Lots() {
			if len(filter.Subtypes) > 0 && !slices.Contains(filter.Subtypes, l.Subtype) {
				continue
			}
			if !filter.Range.Contains(l.PurchaseDate) {
				continue
			}
			rows = append(rows, TransactionRow{
				ID:           l.ID,
				AssetID:      a.ID,
				AssetName:    a.Name,
				Location:     a.Location,
				Symbol:       a.Symbol(),
				Subtype:      l.Subtype,
				PurchaseDate: l.PurchaseDate,
				Count:        l.Count.InexactFloat64(),
				CostPrice:    l.CostPrice.InexactFloat64(),
				CostBasis:    f(l.Count.Mul(l.CostPrice)),
				Status:       folio.Classify(l.PurchaseDate, today),
				seq:          l.Seq,
			})
		}
	}
	slices.SortFunc(rows, func(a, b TransactionRow) int {
		if c := b.PurchaseDate.Compare(a.PurchaseDate); c != 0 {
			return c
		}
		if c := cmp.Compare(b.seq, a.seq); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if n := limit(filter.Limit, DefaultTransactionLimit, MaxTransactionLimit); len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

// lotValue is the market value of a lot at the ticker price, zero if unknown.
func lotValue(a folio.Asset, tx folio.Transaction) (decimal.Decimal, bool) {
	if a.Ticker == nil || a.Ticker.CurrentPrice == nil {
		return decimal.Zero, false
	}
	return a.Ticker.CurrentPrice.Mul(tx.Count), true
}
