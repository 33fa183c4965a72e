package folio

import (
	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
)

// cents rounds an amount to the cent.
func cents(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// TotalShares returns the number of shares held by an asset across all its subtypes.
func TotalShares(a Asset) decimal.Decimal {
	total := decimal.Zero
	for _, st := range a.Subtypes {
		for _, tx := range st.Transactions {
			total = total.Add(tx.Count)
		}
	}
	return total
}

// MarketValue returns the current value of an asset, rounded to the cent.
//
// A stock is worth its ticker price times its shares, or nothing while the price is unknown.
// Any other asset is worth its direct price. A market value is never negative.
func MarketValue(a Asset) decimal.Decimal {
	var v decimal.Decimal
	if a.IsStock() {
		if a.Ticker == nil || a.Ticker.CurrentPrice == nil {
			return decimal.Zero
		}
		v = a.Ticker.CurrentPrice.Mul(TotalShares(a))
	} else if a.Price != nil {
		v = *a.Price
	}
	if v.IsNegative() {
		return decimal.Zero
	}
	return cents(v)
}

// CostBasis returns Σ count × costPrice over the asset's lots, rounded to the cent.
func CostBasis(a Asset) decimal.Decimal {
	total := decimal.Zero
	for _, st := range a.Subtypes {
		for _, tx := range st.Transactions {
			total = total.Add(tx.Count.Mul(tx.CostPrice))
		}
	}
	return cents(total)
}

// UnrealizedGain is MarketValue minus CostBasis.
func UnrealizedGain(a Asset) decimal.Decimal { return MarketValue(a).Sub(CostBasis(a)) }

// Classify returns Long Term if the lot was purchased strictly before the same calendar day one
// year ago, and Short Term otherwise.
func Classify(purchase, today date.Date) GainsStatus {
	if purchase.Before(today.AddYears(-1)) {
		return LongTerm
	}
	return ShortTerm
}
