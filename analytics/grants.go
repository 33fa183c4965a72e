package analytics

import (
	"slices"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
)

// GrantRow is an RSU grant with its reconciled vesting.
type GrantRow struct {
	Symbol         string     `json:"symbol"`
	GrantDate      date.Date  `json:"grantDate"`
	VestStart      date.Date  `json:"vestStart"`
	VestEnd        date.Date  `json:"vestEnd"`
	CliffDate      *date.Date `json:"cliffDate,omitempty"`
	Ended          bool       `json:"ended"`
	TotalShares    float64    `json:"totalShares"`
	VestedShares   float64    `json:"vestedShares"`
	UnvestedShares float64    `json:"unvestedShares"`
	// UnvestedValue is the unvested shares at the current price.
	UnvestedValue float64 `json:"unvestedValue"`
	VestingLots   int     `json:"vestingLots"`
}

// Grants reconciles the RSU grants of every symbol, or of symbols when given. Rows are sorted
// by symbol then grant date.
func Grants(snap *folio.Snapshot, symbols ...string) []GrantRow {
	var held []string
	for _, a := range snap.Assets {
		if a.IsStock() && matchAny(symbols, a.Symbol()) && !slices.Contains(held, a.Symbol()) {
			held = append(held, a.Symbol())
		}
	}
	slices.Sort(held)

	var rows []GrantRow
	for _, sym := range held {
		vestings := snap.GrantVestings(sym)
		slices.SortStableFunc(vestings, func(a, b folio.GrantVesting) int {
			return a.Grant.GrantDate.Compare(b.Grant.GrantDate)
		})
		for _, v := range vestings {
			row := GrantRow{
				Symbol:         sym,
				GrantDate:      v.Grant.GrantDate,
				VestStart:      v.Grant.VestStart,
				VestEnd:        v.Grant.VestEnd,
				CliffDate:      v.Grant.CliffDate,
				Ended:          !v.Grant.Active(),
				TotalShares:    v.Grant.TotalShares.InexactFloat64(),
				VestedShares:   v.Vested.InexactFloat64(),
				UnvestedShares: v.Unvested.InexactFloat64(),
				VestingLots:    len(v.Transactions),
			}
			if t := snap.Ticker(sym); t != nil && t.CurrentPrice != nil {
				row.UnvestedValue = f(v.Unvested.Mul(*t.CurrentPrice))
			}
			rows = append(rows, row)
		}
	}
	return rows
}
