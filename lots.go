package folio

import (
	"cmp"
	"slices"

	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
)

// LotChange is the effect of a sale on a single lot row.
type LotChange struct {
	ID        string
	Sold      decimal.Decimal
	Remaining decimal.Decimal
}

// Removed reports whether the row is fully sold and must be deleted.
func (c LotChange) Removed() bool { return c.Remaining.IsZero() }

// Deplete plans the sale of count shares out of the rows purchased on the same day.
//
// Rows are consumed in insertion order: a row holding no more than what is left to sell is
// removed, otherwise it is decremented. If the rows hold fewer than count shares, nothing is
// planned and an InsufficientSharesError reports what is available.
func Deplete(symbol string, on date.Date, rows []Transaction, count decimal.Decimal) ([]LotChange, error) {
	if !count.IsPositive() {
		return nil, ValidationError{Field: "count", Reason: "must be positive, got " + count.String()}
	}
	ordered := slices.Clone(rows)
	slices.SortStableFunc(ordered, func(a, b Transaction) int { return cmp.Compare(a.Seq, b.Seq) })

	available := decimal.Zero
	for _, r := range ordered {
		available = available.Add(r.Count)
	}
	if available.LessThan(count) {
		return nil, InsufficientSharesError{Symbol: symbol, Date: on, Requested: count, Available: available}
	}

	var changes []LotChange
	left := count
	for _, r := range ordered {
		if !left.IsPositive() {
			break
		}
		if r.Count.LessThanOrEqual(left) {
			changes = append(changes, LotChange{ID: r.ID, Sold: r.Count, Remaining: decimal.Zero})
			left = left.Sub(r.Count)
			continue
		}
		changes = append(changes, LotChange{ID: r.ID, Sold: left, Remaining: r.Count.Sub(left)})
		left = decimal.Zero
	}
	return changes, nil
}
