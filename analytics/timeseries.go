package analytics

import (
	"fmt"
	"strings"

	"github.com/etnz/folio/date"
)

// Range is a net-worth time-series window.
type Range string

const (
	OneMonth    Range = "1M"
	ThreeMonths Range = "3M"
	SixMonths   Range = "6M"
	OneYear     Range = "1Y"
	All         Range = "ALL"
)

// ParseRange returns the window named s; the empty string means All.
func ParseRange(s string) (Range, error) {
	switch r := Range(strings.ToUpper(strings.TrimSpace(s))); r {
	case "":
		return All, nil
	case OneMonth, ThreeMonths, SixMonths, OneYear, All:
		return r, nil
	}
	return "", fmt.Errorf("unknown range %q, want one of 1M, 3M, 6M, 1Y, ALL", s)
}

// start returns the first day of the window ending on last.
func (r Range) start(last date.Date) date.Date {
	switch r {
	case OneMonth:
		return last.AddMonths(-1)
	case ThreeMonths:
		return last.AddMonths(-3)
	case SixMonths:
		return last.AddMonths(-6)
	case OneYear:
		return last.AddYears(-1)
	}
	return date.Date{}
}

// Point is a net-worth sample.
type Point struct {
	Date  date.Date `json:"date"`
	Value float64   `json:"value"`
}

// NetWorthTimeseries returns the points of h inside the window ending at its latest point.
//
// A window holding fewer than two points falls back to the last two points of h (or all of
// them if there are fewer), so a chart never collapses to a single dot.
func NetWorthTimeseries(h *date.History[float64], r Range) []Point {
	if h.Len() == 0 {
		return []Point{}
	}
	last, _ := h.Latest()
	window := h.Within(date.Range{From: r.start(last), To: last})
	if window.Len() < 2 {
		window = h.Tail(2)
	}
	points := make([]Point, 0, window.Len())
	for on, v := range window.Values() {
		points = append(points, Point{Date: on, Value: v})
	}
	return points
}
