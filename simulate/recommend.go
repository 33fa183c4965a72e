package simulate

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/etnz/folio"
	"github.com/etnz/folio/analytics"
	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
)

// Goal of a recommendation request.
type Goal string

const (
	ReduceConcentration    Goal = "reduce_concentration"
	ImproveDiversification Goal = "improve_diversification"
	ReduceTaxBurden        Goal = "reduce_tax_burden"
	RaiseCashBuffer        Goal = "raise_cash_buffer"
)

// Goals lists the supported goals.
var Goals = []Goal{ReduceConcentration, ImproveDiversification, ReduceTaxBurden, RaiseCashBuffer}

// ParseGoal returns the goal named s.
func ParseGoal(s string) (Goal, error) {
	g := Goal(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(Goals, g) {
		return g, nil
	}
	return "", folio.ValidationError{Field: "goal", Reason: fmt.Sprintf("unknown goal %q", s)}
}

// Default recommendation parameters.
const (
	DefaultMaxPositionPct = 20.0
	DefaultMinPositions   = 10
	DefaultTargetCashPct  = 10.0
	moderateHHI           = 0.15
	highHHI               = 0.25
)

// Params tune the recommendations. Zero values mean the defaults.
type Params struct {
	MaxPositionPct float64 `json:"maxPositionPct,omitempty"`
	MinPositions   int     `json:"minPositions,omitempty"`
	TargetCashPct  float64 `json:"targetCashPct,omitempty"`
}

func (p Params) withDefaults() Params {
	if p.MaxPositionPct <= 0 {
		p.MaxPositionPct = DefaultMaxPositionPct
	}
	if p.MinPositions <= 0 {
		p.MinPositions = DefaultMinPositions
	}
	if p.TargetCashPct <= 0 {
		p.TargetCashPct = DefaultTargetCashPct
	}
	return p
}

// Priority of a recommendation.
type Priority string

const (
	High   Priority = "high"
	Medium Priority = "medium"
	Low    Priority = "low"
)

func (p Priority) rank() int {
	switch p {
	case High:
		return 0
	case Medium:
		return 1
	}
	return 2
}

// Recommendation is a textual suggestion, optionally backed by a simulated trade.
type Recommendation struct {
	Priority  Priority `json:"priority"`
	Title     string   `json:"title"`
	Detail    string   `json:"detail"`
	Symbol    string   `json:"symbol,omitempty"`
	Action    *Action  `json:"suggestedAction,omitempty"`
	Projected *Summary `json:"projected,omitempty"`
}

// Recommendations answers a goal.
type Recommendations struct {
	Goal            Goal             `json:"goal"`
	Params          Params           `json:"params"`
	Current         Summary          `json:"current"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Recommend returns prioritized recommendations for goal, high priority first.
func Recommend(snap *folio.Snapshot, today date.Date, goal Goal, params Params) (Recommendations, error) {
	params = params.withDefaults()
	s, _ := seed(snap)
	current := s.summary()
	r := Recommendations{Goal: goal, Params: params, Current: current}

	switch goal {
	case ReduceConcentration:
		r.Recommendations = concentration(snap, s, current, params)
	case ImproveDiversification:
		r.Recommendations = diversification(current, params)
	case ReduceTaxBurden:
		r.Recommendations = taxes(analytics.TaxLots(snap, today, analytics.DefaultTaxLotOptions()))
	case RaiseCashBuffer:
		r.Recommendations = cashBuffer(snap, s, current, params)
	default:
		return Recommendations{}, folio.ValidationError{Field: "goal", Reason: fmt.Sprintf("unknown goal %q", goal)}
	}
	slices.SortStableFunc(r.Recommendations, func(a, b Recommendation) int {
		return cmp.Compare(a.Priority.rank(), b.Priority.rank())
	})
	return r, nil
}

// trim builds the sale of symbol worth amount at its current price, capped to the held shares,
// and simulates it.
func trim(snap *folio.Snapshot, s *state, symbol string, amount float64) (*Action, *Summary) {
	p, ok := s.positions[symbol]
	if !ok || !p.currentPrice.IsPositive() || amount <= 0 {
		return nil, nil
	}
	shares := decimal.Min(decimal.NewFromFloat(amount).Div(p.currentPrice).Ceil(), p.shares.Floor())
	if !shares.IsPositive() {
		shares = p.shares
	}
	a := Action{Type: Sell, Symbol: symbol, Shares: shares.InexactFloat64(), Price: p.currentPrice.InexactFloat64()}
	after := RunActions(snap, []Action{a}).After
	return &a, &after
}

func concentration(snap *folio.Snapshot, s *state, current Summary, params Params) []Recommendation {
	if len(current.Holdings) == 0 {
		return []Recommendation{{Priority: Low, Title: "No stock holdings", Detail: "There is no stock position to trim."}}
	}
	var recs []Recommendation
	for i, h := range current.Holdings {
		if h.AllocationPct <= params.MaxPositionPct {
			if i == 0 {
				recs = append(recs, Recommendation{
					Priority: Low,
					Symbol:   h.Symbol,
					Title:    "Largest holding within the cap",
					Detail:   fmt.Sprintf("%s is %.2f%% of net worth, below the %.0f%% cap.", h.Symbol, h.AllocationPct, params.MaxPositionPct),
				})
			}
			break
		}
		excess := h.Value - params.MaxPositionPct/100*current.NetWorth
		rec := Recommendation{
			Priority: Medium,
			Symbol:   h.Symbol,
			Title:    "Trim " + h.Symbol,
			Detail: fmt.Sprintf("%s is %.2f%% of net worth, above the %.0f%% cap; selling about %s brings it back to the cap.",
				h.Symbol, h.AllocationPct, params.MaxPositionPct, folio.USD(excess)),
		}
		if i == 0 {
			rec.Priority = High
			rec.Action, rec.Projected = trim(snap, s, h.Symbol, excess)
		}
		recs = append(recs, rec)
	}
	return recs
}

func diversification(current Summary, params Params) []Recommendation {
	var recs []Recommendation
	if current.PositionCount < params.MinPositions {
		p := Medium
		if current.PositionCount < params.MinPositions/2 {
			p = High
		}
		recs = append(recs, Recommendation{
			Priority: p,
			Title:    "Few positions",
			Detail:   fmt.Sprintf("The portfolio holds %d stock positions, fewer than the %d suggested.", current.PositionCount, params.MinPositions),
		})
	}
	switch hhi := current.Concentration; {
	case hhi > highHHI:
		recs = append(recs, Recommendation{
			Priority: High,
			Title:    "Highly concentrated",
			Detail:   fmt.Sprintf("The concentration index is %.4f (above %.2f): a few holdings dominate the stock value.", hhi, highHHI),
		})
	case hhi > moderateHHI:
		recs = append(recs, Recommendation{
			Priority: Medium,
			Title:    "Moderately concentrated",
			Detail:   fmt.Sprintf("The concentration index is %.4f (above %.2f).", hhi, moderateHHI),
		})
	}
	if len(recs) == 0 {
		recs = append(recs, Recommendation{
			Priority: Low,
			Title:    "Well diversified",
			Detail:   fmt.Sprintf("%d positions with a concentration index of %.4f.", current.PositionCount, current.Concentration),
		})
	}
	return recs
}

func taxes(lots analytics.TaxLotAnalysis) []Recommendation {
	var recs []Recommendation
	for _, l := range lots.UpcomingLongTerm {
		p := Medium
		if l.DaysToLongTerm <= 14 {
			p = High
		}
		recs = append(recs, Recommendation{
			Priority: p,
			Symbol:   l.Symbol,
			Title:    "Wait before selling " + l.Symbol,
			Detail: fmt.Sprintf("The %v lot of %g shares in %s turns long term in %d days with a gain of %s.",
				l.PurchaseDate, l.Count, l.AssetName, l.DaysToLongTerm, folio.USD(l.UnrealizedGain)),
		})
	}
	for _, l := range lots.HarvestCandidates {
		recs = append(recs, Recommendation{
			Priority: Medium,
			Symbol:   l.Symbol,
			Title:    "Harvest the " + l.Symbol + " loss",
			Detail: fmt.Sprintf("The %v lot of %g shares in %s is down %.2f%% (%s); selling it realizes a deductible loss.",
				l.PurchaseDate, l.Count, l.AssetName, -l.GainPct, folio.USD(l.UnrealizedGain)),
		})
	}
	if len(recs) == 0 {
		recs = append(recs, Recommendation{
			Priority: Low,
			Title:    "No tax action",
			Detail:   "No lot is a harvest candidate or close to long-term status.",
		})
	}
	return recs
}

func cashBuffer(snap *folio.Snapshot, s *state, current Summary, params Params) []Recommendation {
	target := params.TargetCashPct / 100 * current.NetWorth
	shortfall := target - current.CashValue
	if shortfall <= 0 {
		return []Recommendation{{
			Priority: Low,
			Title:    "Cash buffer on target",
			Detail:   fmt.Sprintf("Cash-like assets are %.2f%% of net worth, above the %.0f%% target.", current.CashAllocationPct, params.TargetCashPct),
		}}
	}
	p := Medium
	if current.CashAllocationPct < params.TargetCashPct/2 {
		p = High
	}
	recs := []Recommendation{{
		Priority: p,
		Title:    "Raise the cash buffer",
		Detail: fmt.Sprintf("Cash-like assets are %.2f%% of net worth; %s more is needed to reach the %.0f%% target.",
			current.CashAllocationPct, folio.USD(shortfall), params.TargetCashPct),
	}}
	if len(current.Holdings) > 0 {
		largest := current.Holdings[0]
		action, projected := trim(snap, s, largest.Symbol, shortfall)
		if action != nil {
			recs = append(recs, Recommendation{
				Priority:  p,
				Symbol:    largest.Symbol,
				Title:     "Fund it from " + largest.Symbol,
				Detail:    fmt.Sprintf("Selling %g %s shares from the largest holding covers the shortfall.", action.Shares, largest.Symbol),
				Action:    action,
				Projected: projected,
			})
		}
	}
	return recs
}
