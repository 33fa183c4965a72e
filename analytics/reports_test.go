package analytics

import (
	"testing"

	"github.com/etnz/folio/date"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func history(points map[string]float64) *date.History[float64] {
	h := new(date.History[float64])
	for on, v := range points {
		h.Append(date.MustParse(on), v)
	}
	return h
}

func TestNetWorthTimeseries(t *testing.T) {
	h := history(map[string]float64{
		"2025-01-01": 100,
		"2025-01-15": 110,
		"2025-03-01": 130,
	})

	testCases := []struct {
		r    Range
		want []Point
	}{
		// The one-month window only holds the last point: fall back to the last two.
		{OneMonth, []Point{{date.New(2025, 1, 15), 110}, {date.New(2025, 3, 1), 130}}},
		{ThreeMonths, []Point{{date.New(2025, 1, 1), 100}, {date.New(2025, 1, 15), 110}, {date.New(2025, 3, 1), 130}}},
		{All, []Point{{date.New(2025, 1, 1), 100}, {date.New(2025, 1, 15), 110}, {date.New(2025, 3, 1), 130}}},
	}
	for _, tc := range testCases {
		t.Run(string(tc.r), func(t *testing.T) {
			if diff := cmp.Diff(tc.want, NetWorthTimeseries(h, tc.r)); diff != "" {
				t.Errorf("NetWorthTimeseries(%s) mismatch (-want +got):\n%s", tc.r, diff)
			}
		})
	}
}

func TestNetWorthTimeseriesShortHistory(t *testing.T) {
	assert.Empty(t, NetWorthTimeseries(new(date.History[float64]), OneYear))

	single := history(map[string]float64{"2025-01-01": 100})
	assert.Len(t, NetWorthTimeseries(single, OneMonth), 1)
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("1y")
	require.NoError(t, err)
	assert.Equal(t, OneYear, r)

	r, err = ParseRange("")
	require.NoError(t, err)
	assert.Equal(t, All, r)

	_, err = ParseRange("2W")
	assert.Error(t, err)
}

func TestExposureBreakdown(t *testing.T) {
	snap := fixture()

	got, err := ExposureBreakdown(snap, ByTheme, false)
	require.NoError(t, err)
	assert.Equal(t, 2700.0, got.Total)
	assert.Equal(t, []Bucket{
		{Name: Uncategorized, Value: 1700, Pct: 62.96},
		{Name: "AI", Value: 500, Pct: 18.52},
		{Name: "Cloud", Value: 500, Pct: 18.52},
	}, got.Buckets)

	got, err = ExposureBreakdown(snap, ByTheme, true)
	require.NoError(t, err)
	assert.Equal(t, 4700.0, got.Total)
	assert.Equal(t, "Cash", got.Buckets[0].Name)

	got, err = ExposureBreakdown(snap, ByTicker, false)
	require.NoError(t, err)
	names := []string{}
	for _, b := range got.Buckets {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{"AAPL", "MSFT", "NOPE"}, names)

	got, err = ExposureBreakdown(snap, ByLocation, true)
	require.NoError(t, err)
	assert.Equal(t, Bucket{Name: "Fidelity", Value: 2500, Pct: 53.19}, got.Buckets[0])

	got, err = ExposureBreakdown(snap, ByAssetType, true)
	require.NoError(t, err)
	assert.Equal(t, "Stock", got.Buckets[0].Name)

	_, err = ExposureBreakdown(snap, Dimension("sector"), false)
	assert.Error(t, err)
}

func TestThemeDistributionSplitsEqually(t *testing.T) {
	buckets := ThemeDistribution(fixture())
	total := 0.0
	for _, b := range buckets {
		total += b.Value
	}
	assert.Equal(t, 2700.0, total)
}

func TestTaxLots(t *testing.T) {
	got := TaxLots(fixture(), date.New(2025, 6, 1), DefaultTaxLotOptions())

	ids := func(lots []LotAnalysis) []string {
		out := []string{}
		for _, l := range lots {
			out = append(out, l.ID)
		}
		return out
	}

	assert.Equal(t, 4, got.LotCount, "the unpriced lot is skipped")
	assert.Equal(t, []string{"t4", "t2"}, ids(got.HarvestCandidates))
	assert.Equal(t, []string{"t3"}, ids(got.UpcomingLongTerm))
	assert.Equal(t, []string{"t1", "t3"}, ids(got.TopWinners))
	assert.Equal(t, []string{"t4", "t2"}, ids(got.TopLosers))

	require.Len(t, got.UpcomingLongTerm, 1)
	assert.Equal(t, 346, got.UpcomingLongTerm[0].DaysHeld)
	assert.Equal(t, 19, got.UpcomingLongTerm[0].DaysToLongTerm)
	assert.Equal(t, -16.67, got.HarvestCandidates[0].GainPct)
}

func TestTaxLotsSymbolsAndThresholds(t *testing.T) {
	opts := DefaultTaxLotOptions()
	opts.Symbols = []string{"MSFT"}
	got := TaxLots(fixture(), date.New(2025, 6, 1), opts)
	assert.Equal(t, 1, got.LotCount)

	opts = TaxLotOptions{HarvestThresholdPct: -20, UpcomingLongTermDays: 10}
	got = TaxLots(fixture(), date.New(2025, 6, 1), opts)
	assert.Empty(t, got.HarvestCandidates)
	assert.Empty(t, got.UpcomingLongTerm)
}
