package analytics

import (
	"cmp"
	"slices"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
)

// Tax-lot analysis defaults.
const (
	DefaultHarvestThresholdPct  = -5.0
	DefaultUpcomingLongTermDays = 45
	longTermDays                = 365
	topLots                     = 10
)

// TaxLotOptions tune the analysis; use DefaultTaxLotOptions as a starting point.
type TaxLotOptions struct {
	Symbols              []string
	HarvestThresholdPct  float64
	UpcomingLongTermDays int
}

// DefaultTaxLotOptions returns the options with the default thresholds.
func DefaultTaxLotOptions() TaxLotOptions {
	return TaxLotOptions{
		HarvestThresholdPct:  DefaultHarvestThresholdPct,
		UpcomingLongTermDays: DefaultUpcomingLongTermDays,
	}
}

// LotAnalysis is a priced lot.
type LotAnalysis struct {
	ID             string            `json:"id"`
	AssetName      string            `json:"assetName"`
	Location       string            `json:"location"`
	Symbol         string            `json:"symbol"`
	Subtype        folio.SubtypeKind `json:"subtype"`
	PurchaseDate   date.Date         `json:"purchaseDate"`
	Count          float64           `json:"count"`
	CostBasis      float64           `json:"costBasis"`
	MarketValue    float64           `json:"marketValue"`
	UnrealizedGain float64           `json:"unrealizedGain"`
	GainPct        float64           `json:"gainPct"`
	DaysHeld       int               `json:"daysHeld"`
	DaysToLongTerm int               `json:"daysToLongTerm"`
	Status         folio.GainsStatus `json:"capitalGainsStatus"`
}

// TaxLotAnalysis groups lots by the tax action they suggest.
type TaxLotAnalysis struct {
	AsOf                 date.Date     `json:"asOf"`
	LotCount             int           `json:"lotCount"`
	HarvestThresholdPct  float64       `json:"harvestThresholdPct"`
	UpcomingLongTermDays int           `json:"upcomingLongTermDays"`
	HarvestCandidates    []LotAnalysis `json:"harvestCandidates"`
	UpcomingLongTerm     []LotAnalysis `json:"upcomingLongTerm"`
	TopWinners           []LotAnalysis `json:"topWinners"`
	TopLosers            []LotAnalysis `json:"topLosers"`
}

// TaxLots analyses every priced lot of the portfolio as of today.
//
// Harvest candidates have a gain percentage at or below the threshold, worst first. Upcoming
// promotions are short-term lots with a positive gain that turn long term within the window,
// soonest first. Winners and losers are ranked by signed unrealized gain. Each list holds at
// most ten lots; lots of unpriced tickers are skipped.
func TaxLots(snap *folio.Snapshot, today date.Date, opts TaxLotOptions) TaxLotAnalysis {
	var lots []LotAnalysis
	for _, a := range snap.Assets {
		if !a.IsStock() || !matchAny(opts.Symbols, a.Symbol()) {
			continue
		}
		for _, l := range a.Lots() {
			value, priced := lotValue(a, l.Transaction)
			if !priced {
				continue
			}
			cost := l.Count.Mul(l.CostPrice)
			gain := value.Sub(cost)
			gainPct := 0.0
			if cost.IsPositive() {
				gainPct = gain.Div(cost).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
			}
			held := today.DaysSince(l.PurchaseDate)
			lots = append(lots, LotAnalysis{
				ID:             l.ID,
				AssetName:      a.Name,
				Location:       a.Location,
				Symbol:         a.Symbol(),
				Subtype:        l.Subtype,
				PurchaseDate:   l.PurchaseDate,
				Count:          l.Count.InexactFloat64(),
				CostBasis:      f(cost),
				MarketValue:    f(value),
				UnrealizedGain: f(gain),
				GainPct:        gainPct,
				DaysHeld:       held,
				DaysToLongTerm: max(0, longTermDays-held),
				Status:         folio.Classify(l.PurchaseDate, today),
			})
		}
	}

	result := TaxLotAnalysis{
		AsOf:                 today,
		LotCount:             len(lots),
		HarvestThresholdPct:  opts.HarvestThresholdPct,
		UpcomingLongTermDays: opts.UpcomingLongTermDays,
	}
	result.HarvestCandidates = top(lots,
		func(l LotAnalysis) bool { return l.GainPct <= opts.HarvestThresholdPct },
		func(a, b LotAnalysis) int { return cmp.Compare(a.GainPct, b.GainPct) })
	result.UpcomingLongTerm = top(lots,
		func(l LotAnalysis) bool {
			return l.Status == folio.ShortTerm && l.DaysToLongTerm <= opts.UpcomingLongTermDays && l.UnrealizedGain > 0
		},
		func(a, b LotAnalysis) int { return cmp.Compare(a.DaysToLongTerm, b.DaysToLongTerm) })
	result.TopWinners = top(lots,
		func(l LotAnalysis) bool { return l.UnrealizedGain > 0 },
		func(a, b LotAnalysis) int { return cmp.Compare(b.UnrealizedGain, a.UnrealizedGain) })
	result.TopLosers = top(lots,
		func(l LotAnalysis) bool { return l.UnrealizedGain < 0 },
		func(a, b LotAnalysis) int { return cmp.Compare(a.UnrealizedGain, b.UnrealizedGain) })
	return result
}

// top keeps the lots matching keep, sorted by order with purchase date and id as tie-breaks,
// and returns the first ten.
func top(lots []LotAnalysis, keep func(LotAnalysis) bool, order func(a, b LotAnalysis) int) []LotAnalysis {
	list := []LotAnalysis{}
	for _, l := range lots {
		if keep(l) {
			list = append(list, l)
		}
	}
	slices.SortFunc(list, func(a, b LotAnalysis) int {
		if c := order(a, b); c != 0 {
			return c
		}
		if c := a.PurchaseDate.Compare(b.PurchaseDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if len(list) > topLots {
		list = list[:topLots]
	}
	return list
}
