package analytics

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/etnz/folio"
	"github.com/shopspring/decimal"
)

// Dimension along which exposure is bucketed.
type Dimension string

const (
	ByTicker    Dimension = "ticker"
	ByTheme     Dimension = "theme"
	ByAssetType Dimension = "asset_type"
	ByLocation  Dimension = "location"
)

// Uncategorized is the theme bucket of stocks whose ticker has no theme.
const Uncategorized = "Uncategorized"

// cashBucket collects cash-like assets when a dimension does not classify them.
const cashBucket = "Cash"

// ParseDimension returns the dimension named s.
func ParseDimension(s string) (Dimension, error) {
	switch d := Dimension(strings.ToLower(strings.TrimSpace(s))); d {
	case ByTicker, ByTheme, ByAssetType, ByLocation:
		return d, nil
	}
	return "", fmt.Errorf("unknown dimension %q, want one of ticker, theme, asset_type, location", s)
}

// Bucket is a share of the exposure.
type Bucket struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Pct   float64 `json:"pct"`
}

// Exposure is the portfolio value split along a dimension.
type Exposure struct {
	Dimension   Dimension `json:"dimension"`
	IncludeCash bool      `json:"includeCash"`
	Total       float64   `json:"total"`
	Buckets     []Bucket  `json:"buckets"`
}

// buckets accumulates values per name.
type buckets map[string]decimal.Decimal

func (b buckets) add(name string, v decimal.Decimal) { b[name] = b[name].Add(v) }

// sorted returns the buckets by value descending then name, with their share of the total.
func (b buckets) sorted() (decimal.Decimal, []Bucket) {
	total := decimal.Zero
	for _, v := range b {
		total = total.Add(v)
	}
	list := make([]Bucket, 0, len(b))
	for name, v := range b {
		list = append(list, Bucket{Name: name, Value: f(v), Pct: pct(v, total)})
	}
	slices.SortFunc(list, func(x, y Bucket) int {
		if c := cmp.Compare(y.Value, x.Value); c != 0 {
			return c
		}
		return cmp.Compare(x.Name, y.Name)
	})
	return total, list
}

// ExposureBreakdown buckets the portfolio value along dim. Cash-like assets only count when
// includeCash is set.
func ExposureBreakdown(snap *folio.Snapshot, dim Dimension, includeCash bool) (Exposure, error) {
	b := buckets{}
	switch dim {
	case ByTheme:
		themes(snap, b)
		if includeCash {
			for _, a := range snap.Assets {
				if !a.IsStock() {
					b.add(cashBucket, folio.MarketValue(a))
				}
			}
		}
	case ByTicker, ByAssetType, ByLocation:
		for _, a := range snap.Assets {
			if !a.IsStock() && !includeCash {
				continue
			}
			b.add(bucketName(a, dim), folio.MarketValue(a))
		}
	default:
		return Exposure{}, fmt.Errorf("unknown dimension %q", dim)
	}
	total, list := b.sorted()
	return Exposure{Dimension: dim, IncludeCash: includeCash, Total: f(total), Buckets: list}, nil
}

func bucketName(a folio.Asset, dim Dimension) string {
	switch dim {
	case ByTicker:
		if a.IsStock() && a.Symbol() != "" {
			return a.Symbol()
		}
		return cashBucket
	case ByAssetType:
		return string(a.Type)
	default:
		return a.Location
	}
}

// ThemeDistribution splits every stock value equally across the themes of its ticker. Stocks
// whose ticker has no theme are booked under Uncategorized.
func ThemeDistribution(snap *folio.Snapshot) []Bucket {
	b := buckets{}
	themes(snap, b)
	_, list := b.sorted()
	return list
}

func themes(snap *folio.Snapshot, b buckets) {
	for _, a := range snap.Assets {
		if !a.IsStock() {
			continue
		}
		v := folio.MarketValue(a)
		if a.Ticker == nil || len(a.Ticker.Themes) == 0 {
			b.add(Uncategorized, v)
			continue
		}
		share := v.Div(decimal.NewFromInt(int64(len(a.Ticker.Themes))))
		for _, t := range a.Ticker.Themes {
			b.add(t, share)
		}
	}
}
