// Package simulate runs what-if scenarios on an in-memory copy of the portfolio and derives
// goal-based recommendations from it.
//
// A simulation never fails: unsupported or malformed actions are skipped and reported as
// warnings, so a batch of actions always returns a result.
package simulate

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/etnz/folio"
	"github.com/shopspring/decimal"
)

// epsilon below which a position is considered empty.
var epsilon = decimal.New(1, -6)

var hundred = decimal.NewFromInt(100)

// Action types.
const (
	Buy          = "buy"
	Sell         = "sell"
	SetPrice     = "set_price"
	AddCash      = "add_cash"
	RemoveCash   = "remove_cash"
	SetCashTotal = "set_cash_total"
)

// Action is a single what-if operation. Optional booleans default to true.
type Action struct {
	Type               string  `json:"type"`
	Symbol             string  `json:"symbol,omitempty"`
	Shares             float64 `json:"shares,omitempty"`
	Price              float64 `json:"price,omitempty"`
	Amount             float64 `json:"amount,omitempty"`
	UseCash            *bool   `json:"useCash,omitempty"`
	MoveProceedsToCash *bool   `json:"moveProceedsToCash,omitempty"`
}

func (a Action) String() string {
	switch a.Type {
	case Buy, Sell:
		return fmt.Sprintf("%s %g %s @ %g", a.Type, a.Shares, a.Symbol, a.Price)
	case SetPrice:
		return fmt.Sprintf("%s %s %g", a.Type, a.Symbol, a.Price)
	}
	return fmt.Sprintf("%s %g", a.Type, a.Amount)
}

func orTrue(b *bool) bool { return b == nil || *b }

// ParseActions decodes raw actions as sent by the reasoning service. Items that cannot be
// decoded are dropped and reported as warnings.
func ParseActions(raw []any) (actions []Action, warnings []string) {
	for i, item := range raw {
		data, err := json.Marshal(item)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("action #%d: cannot read it: %v", i+1, err))
			continue
		}
		var a Action
		if err := json.Unmarshal(data, &a); err != nil {
			warnings = append(warnings, fmt.Sprintf("action #%d: malformed action %s: %v", i+1, data, err))
			continue
		}
		a.Type = strings.ToLower(strings.TrimSpace(a.Type))
		a.Symbol = folio.NormalizeSymbol(a.Symbol)
		actions = append(actions, a)
	}
	return actions, warnings
}

// position is the simulated holding of a symbol.
type position struct {
	shares       decimal.Decimal
	costBasis    decimal.Decimal
	currentPrice decimal.Decimal
}

func (p position) value() decimal.Decimal { return p.shares.Mul(p.currentPrice) }

// state is the working copy of the portfolio.
type state struct {
	positions map[string]*position
	cash      decimal.Decimal
}

// seed builds the working copy: stock assets are aggregated per symbol, every other asset
// collapses into the cash-like value.
func seed(snap *folio.Snapshot) (*state, []string) {
	s := &state{positions: map[string]*position{}}
	var assumptions []string
	unpriced := map[string]bool{}
	for _, a := range snap.Assets {
		if !a.IsStock() {
			s.cash = s.cash.Add(folio.MarketValue(a))
			continue
		}
		sym := a.Symbol()
		p, ok := s.positions[sym]
		if !ok {
			p = &position{}
			s.positions[sym] = p
		}
		p.shares = p.shares.Add(folio.TotalShares(a))
		p.costBasis = p.costBasis.Add(folio.CostBasis(a))
		if a.Ticker != nil && a.Ticker.CurrentPrice != nil {
			p.currentPrice = *a.Ticker.CurrentPrice
		} else {
			unpriced[sym] = true
		}
	}
	for _, sym := range slices.Sorted(maps.Keys(unpriced)) {
		assumptions = append(assumptions, fmt.Sprintf("%s has no current price and is valued at 0", sym))
	}
	return s, assumptions
}

func (s *state) clone() *state {
	c := &state{positions: make(map[string]*position, len(s.positions)), cash: s.cash}
	for k, p := range s.positions {
		cp := *p
		c.positions[k] = &cp
	}
	return c
}

// priceOf returns the explicit price, or the current price of the symbol, or 0.
func (s *state) priceOf(symbol string, explicit decimal.Decimal) decimal.Decimal {
	if explicit.IsPositive() {
		return explicit
	}
	if p, ok := s.positions[symbol]; ok {
		return p.currentPrice
	}
	return decimal.Zero
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// apply runs one action on the state. It returns the realized P&L of the action, or an error
// that the caller turns into a warning.
func (s *state) apply(a Action, snap *folio.Snapshot) (realized decimal.Decimal, err error) {
	if !finite(a.Shares, a.Price, a.Amount) {
		return decimal.Zero, fmt.Errorf("not a number")
	}
	count := decimal.NewFromFloat(a.Shares)
	amount := decimal.NewFromFloat(a.Amount)
	switch a.Type {
	case Buy:
		if a.Symbol == "" {
			return decimal.Zero, fmt.Errorf("missing symbol")
		}
		if !count.IsPositive() {
			return decimal.Zero, fmt.Errorf("shares must be positive")
		}
		price := s.priceOf(a.Symbol, decimal.NewFromFloat(a.Price))
		if !price.IsPositive() {
			if t := snap.Ticker(a.Symbol); t != nil && t.CurrentPrice != nil {
				price = *t.CurrentPrice
			}
		}
		if !price.IsPositive() {
			return decimal.Zero, fmt.Errorf("no price for %s", a.Symbol)
		}
		p, ok := s.positions[a.Symbol]
		if !ok {
			p = &position{currentPrice: price}
			s.positions[a.Symbol] = p
		}
		if !p.currentPrice.IsPositive() {
			p.currentPrice = price
		}
		cost := count.Mul(price)
		p.shares = p.shares.Add(count)
		p.costBasis = p.costBasis.Add(cost)
		if orTrue(a.UseCash) {
			s.cash = s.cash.Sub(cost)
		}
		return decimal.Zero, nil

	case Sell:
		p, ok := s.positions[a.Symbol]
		if !ok {
			return decimal.Zero, fmt.Errorf("no %s position to sell", a.Symbol)
		}
		if !count.IsPositive() {
			return decimal.Zero, fmt.Errorf("shares must be positive")
		}
		price := s.priceOf(a.Symbol, decimal.NewFromFloat(a.Price))
		if !price.IsPositive() {
			return decimal.Zero, fmt.Errorf("no price for %s", a.Symbol)
		}
		sold := decimal.Min(count, p.shares)
		avgCost := decimal.Zero
		if p.shares.IsPositive() {
			avgCost = p.costBasis.Div(p.shares)
		}
		realized = price.Sub(avgCost).Mul(sold)
		p.costBasis = p.costBasis.Sub(avgCost.Mul(sold))
		p.shares = p.shares.Sub(sold)
		if p.shares.LessThan(epsilon) {
			delete(s.positions, a.Symbol)
		}
		if orTrue(a.MoveProceedsToCash) {
			s.cash = s.cash.Add(sold.Mul(price))
		}
		if sold.LessThan(count) {
			return realized, errCapped{requested: count, sold: sold, symbol: a.Symbol}
		}
		return realized, nil

	case SetPrice:
		p, ok := s.positions[a.Symbol]
		if !ok {
			return decimal.Zero, fmt.Errorf("no %s position to reprice", a.Symbol)
		}
		if a.Price <= 0 {
			return decimal.Zero, fmt.Errorf("price must be positive")
		}
		p.currentPrice = decimal.NewFromFloat(a.Price)
		return decimal.Zero, nil

	case AddCash:
		if !amount.IsPositive() {
			return decimal.Zero, fmt.Errorf("amount must be positive")
		}
		s.cash = s.cash.Add(amount)
		return decimal.Zero, nil

	case RemoveCash:
		if !amount.IsPositive() {
			return decimal.Zero, fmt.Errorf("amount must be positive")
		}
		s.cash = s.cash.Sub(amount)
		return decimal.Zero, nil

	case SetCashTotal:
		if amount.IsNegative() {
			return decimal.Zero, fmt.Errorf("amount must not be negative")
		}
		s.cash = amount
		return decimal.Zero, nil
	}
	return decimal.Zero, fmt.Errorf("unsupported action type %q", a.Type)
}

// errCapped reports a sale capped to the available shares. The action is still applied.
type errCapped struct {
	requested, sold decimal.Decimal
	symbol          string
}

func (e errCapped) Error() string {
	return fmt.Sprintf("only %s %s shares available, sold %s instead of %s", e.sold, e.symbol, e.sold, e.requested)
}

// HoldingWeight is a simulated holding.
type HoldingWeight struct {
	Symbol        string  `json:"symbol"`
	Shares        float64 `json:"shares"`
	Value         float64 `json:"value"`
	AllocationPct float64 `json:"allocationPct"`
}

// Summary describes a (simulated) portfolio state.
type Summary struct {
	NetWorth          float64         `json:"netWorth"`
	StockValue        float64         `json:"stockValue"`
	CashValue         float64         `json:"cashValue"`
	CashAllocationPct float64         `json:"cashAllocationPct"`
	PositionCount     int             `json:"positionCount"`
	Concentration     float64         `json:"concentrationHHI"`
	Holdings          []HoldingWeight `json:"holdings"`
}

// toFloat rounds d for the JSON views.
func toFloat(d decimal.Decimal, places int32) float64 { return d.Round(places).InexactFloat64() }

func percent(part, total decimal.Decimal) float64 {
	if total.IsZero() {
		return 0
	}
	return toFloat(part.Div(total).Mul(hundred), 2)
}

// summary describes the state. Concentration is the Herfindahl index of the stock weights.
func (s *state) summary() Summary {
	stock := decimal.Zero
	for _, p := range s.positions {
		stock = stock.Add(p.value())
	}
	nw := stock.Add(s.cash)
	sum := Summary{
		NetWorth:          toFloat(nw, 2),
		StockValue:        toFloat(stock, 2),
		CashValue:         toFloat(s.cash, 2),
		CashAllocationPct: percent(s.cash, nw),
		PositionCount:     len(s.positions),
		Holdings:          []HoldingWeight{},
	}
	hhi := decimal.Zero
	for sym, p := range s.positions {
		v := p.value()
		if stock.IsPositive() {
			w := v.Div(stock)
			hhi = hhi.Add(w.Mul(w))
		}
		sum.Holdings = append(sum.Holdings, HoldingWeight{
			Symbol:        sym,
			Shares:        toFloat(p.shares, 6),
			Value:         toFloat(v, 2),
			AllocationPct: percent(v, nw),
		})
	}
	sum.Concentration = toFloat(hhi, 4)
	slices.SortFunc(sum.Holdings, func(a, b HoldingWeight) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Symbol, b.Symbol)
	})
	return sum
}

// Delta is After minus Before.
type Delta struct {
	NetWorth          float64 `json:"netWorth"`
	StockValue        float64 `json:"stockValue"`
	CashValue         float64 `json:"cashValue"`
	CashAllocationPct float64 `json:"cashAllocationPct"`
	PositionCount     int     `json:"positionCount"`
	Concentration     float64 `json:"concentrationHHI"`
}

// Result is the outcome of a simulation.
type Result struct {
	Before         Summary  `json:"before"`
	After          Summary  `json:"after"`
	Delta          Delta    `json:"delta"`
	RealizedPnL    float64  `json:"realizedPnL"`
	AppliedActions []Action `json:"appliedActions"`
	Warnings       []string `json:"warnings"`
	Assumptions    []string `json:"assumptions"`
}

// Current summarizes the snapshot without applying any action.
func Current(snap *folio.Snapshot) Summary {
	s, _ := seed(snap)
	return s.summary()
}

// Run decodes raw actions and simulates them on the snapshot.
func Run(snap *folio.Snapshot, raw []any) Result {
	actions, warnings := ParseActions(raw)
	r := RunActions(snap, actions)
	r.Warnings = append(warnings, r.Warnings...)
	return r
}

// RunActions simulates the actions, in order, on a copy of the snapshot.
func RunActions(snap *folio.Snapshot, actions []Action) (r Result) {
	r = Result{AppliedActions: []Action{}, Warnings: []string{}}
	s, assumptions := seed(snap)
	r.Assumptions = append(assumptions,
		"sales realize P&L against the average cost basis",
		"buys without a price use the current ticker price")
	r.Before = s.summary()

	after := s.clone()
	defer func() {
		// A simulation must always return a result.
		if p := recover(); p != nil {
			r.Warnings = append(r.Warnings, fmt.Sprintf("simulation stopped early: %v", p))
			r.After = after.summary()
			r.Delta = delta(r.Before, r.After)
		}
	}()

	realized := decimal.Zero
	for i, a := range actions {
		pnl, err := after.apply(a, snap)
		var capped errCapped
		switch {
		case err == nil:
		case errors.As(err, &capped):
			r.Warnings = append(r.Warnings, fmt.Sprintf("action #%d (%s): %v", i+1, a, err))
		default:
			r.Warnings = append(r.Warnings, fmt.Sprintf("action #%d (%s) skipped: %v", i+1, a, err))
			continue
		}
		realized = realized.Add(pnl)
		r.AppliedActions = append(r.AppliedActions, a)
	}
	if after.cash.IsNegative() {
		r.Warnings = append(r.Warnings, fmt.Sprintf("cash-like value is negative (%s) after the actions", after.cash.StringFixed(2)))
	}
	r.RealizedPnL = toFloat(realized, 2)
	r.After = after.summary()
	r.Delta = delta(r.Before, r.After)
	return r
}

// sub returns a-b, rounded, without float drift.
func sub(a, b float64, places int32) float64 {
	return toFloat(decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)), places)
}

func delta(before, after Summary) Delta {
	return Delta{
		NetWorth:          sub(after.NetWorth, before.NetWorth, 2),
		StockValue:        sub(after.StockValue, before.StockValue, 2),
		CashValue:         sub(after.CashValue, before.CashValue, 2),
		CashAllocationPct: sub(after.CashAllocationPct, before.CashAllocationPct, 2),
		PositionCount:     after.PositionCount - before.PositionCount,
		Concentration:     sub(after.Concentration, before.Concentration, 4),
	}
}
