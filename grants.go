package folio

import (
	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
)

// GrantVesting is the reconciled state of one RSU grant.
type GrantVesting struct {
	Grant        RsuGrant        `json:"grant"`
	Vested       decimal.Decimal `json:"vestedShares"`
	Unvested     decimal.Decimal `json:"unvestedShares"`
	Transactions []Transaction   `json:"transactions"`
}

// AssignGrant returns the index of the grant a vesting transaction dated on belongs to, or -1
// if there are no grants.
//
// The cascade is, in order:
//  1. grants whose vesting window [VestStart, EffectiveVestEnd] contains the date, the latest
//     VestStart wins;
//  2. grants granted on or before the date, the latest GrantDate wins;
//  3. the grant whose GrantDate is closest to the date.
//
// Ties keep the first grant in input order.
func AssignGrant(grants []RsuGrant, on date.Date) int {
	best := -1
	for i, g := range grants {
		if on.Before(g.VestStart) || on.After(g.EffectiveVestEnd()) {
			continue
		}
		if best < 0 || g.VestStart.After(grants[best].VestStart) {
			best = i
		}
	}
	if best >= 0 {
		return best
	}

	for i, g := range grants {
		if g.GrantDate.After(on) {
			continue
		}
		if best < 0 || g.GrantDate.After(grants[best].GrantDate) {
			best = i
		}
	}
	if best >= 0 {
		return best
	}

	bestDistance := 0
	for i, g := range grants {
		d := abs(on.DaysSince(g.GrantDate))
		if best < 0 || d < bestDistance {
			best, bestDistance = i, d
		}
	}
	return best
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}

// Reconcile assigns every vesting transaction to a grant and returns the vesting state of each
// grant, in input order.
//
// Vested shares are the assigned counts clamped to [0, TotalShares]; an ended grant has no
// unvested shares left. There is no persisted link between a transaction and a grant: the
// result is recomputed on every call and follows any later change of the grant windows.
func Reconcile(grants []RsuGrant, txs []Transaction) []GrantVesting {
	result := make([]GrantVesting, len(grants))
	assigned := make([]decimal.Decimal, len(grants))
	for i, g := range grants {
		result[i].Grant = g
	}
	for _, tx := range txs {
		i := AssignGrant(grants, tx.PurchaseDate)
		if i < 0 {
			continue
		}
		assigned[i] = assigned[i].Add(tx.Count)
		result[i].Transactions = append(result[i].Transactions, tx)
	}
	for i, g := range grants {
		vested := decimal.Max(decimal.Zero, decimal.Min(assigned[i], g.TotalShares))
		result[i].Vested = vested
		if g.Active() {
			result[i].Unvested = g.TotalShares.Sub(vested)
		} else {
			result[i].Unvested = decimal.Zero
		}
	}
	return result
}

// rsu returns the RSU grants and lots of a.
func (a Asset) rsu() (grants []RsuGrant, txs []Transaction) {
	for _, st := range a.Subtypes {
		if st.Kind != RSU {
			continue
		}
		grants = append(grants, st.Grants...)
		txs = append(txs, st.Transactions...)
	}
	return grants, txs
}

// GrantVestings reconciles the RSU grants of the asset against its RSU lots. It is nil when
// the asset has no grant.
func (a Asset) GrantVestings() []GrantVesting {
	grants, txs := a.rsu()
	if len(grants) == 0 {
		return nil
	}
	return Reconcile(grants, txs)
}

// GrantVestings reconciles the RSU grants of every asset holding symbol against their RSU lots.
func (s *Snapshot) GrantVestings(symbol string) []GrantVesting {
	symbol = NormalizeSymbol(symbol)
	var grants []RsuGrant
	var txs []Transaction
	for _, a := range s.Assets {
		if !a.IsStock() || a.Symbol() != symbol {
			continue
		}
		g, t := a.rsu()
		grants = append(grants, g...)
		txs = append(txs, t...)
	}
	return Reconcile(grants, txs)
}
