package simulate

import (
	"errors"
	"testing"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = date.New(2025, 6, 1)

func TestRecommendReduceConcentration(t *testing.T) {
	r, err := Recommend(fixture(), today, ReduceConcentration, Params{})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxPositionPct, r.Params.MaxPositionPct)

	require.Len(t, r.Recommendations, 2)
	first := r.Recommendations[0]
	assert.Equal(t, High, first.Priority)
	assert.Equal(t, "AAPL", first.Symbol)
	require.NotNil(t, first.Action)
	// AAPL is 1000 of 2750, the cap is 550: sell 4.5 rounded up.
	assert.Equal(t, 5.0, first.Action.Shares)
	require.NotNil(t, first.Projected)
	assert.Equal(t, 1500.0, first.Projected.CashValue)

	assert.Equal(t, Medium, r.Recommendations[1].Priority)
	assert.Equal(t, "MSFT", r.Recommendations[1].Symbol)
}

func TestRecommendWithinCap(t *testing.T) {
	r, err := Recommend(fixture(), today, ReduceConcentration, Params{MaxPositionPct: 50})
	require.NoError(t, err)
	require.Len(t, r.Recommendations, 1)
	assert.Equal(t, Low, r.Recommendations[0].Priority)
}

func TestRecommendImproveDiversification(t *testing.T) {
	r, err := Recommend(fixture(), today, ImproveDiversification, Params{})
	require.NoError(t, err)
	require.Len(t, r.Recommendations, 2)
	for _, rec := range r.Recommendations {
		assert.Equal(t, High, rec.Priority, rec.Title)
	}
}

func TestRecommendReduceTaxBurden(t *testing.T) {
	r, err := Recommend(fixture(), today, ReduceTaxBurden, Params{})
	require.NoError(t, err)
	require.Len(t, r.Recommendations, 1)
	assert.Equal(t, "MSFT", r.Recommendations[0].Symbol)
	assert.Equal(t, Medium, r.Recommendations[0].Priority)
}

func TestRecommendRaiseCashBuffer(t *testing.T) {
	r, err := Recommend(fixture(), today, RaiseCashBuffer, Params{})
	require.NoError(t, err)
	require.Len(t, r.Recommendations, 1)
	assert.Equal(t, Low, r.Recommendations[0].Priority)

	r, err = Recommend(fixture(), today, RaiseCashBuffer, Params{TargetCashPct: 50})
	require.NoError(t, err)
	require.Len(t, r.Recommendations, 2)
	assert.Equal(t, Medium, r.Recommendations[0].Priority)
	funding := r.Recommendations[1]
	require.NotNil(t, funding.Action)
	assert.Equal(t, "AAPL", funding.Action.Symbol)
	assert.Equal(t, 4.0, funding.Action.Shares)
	assert.Equal(t, 1400.0, funding.Projected.CashValue)
}

func TestRecommendUnknownGoal(t *testing.T) {
	_, err := Recommend(fixture(), today, Goal("get_rich"), Params{})
	var verr folio.ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = ParseGoal("GET_RICH")
	assert.Error(t, err)
	g, err := ParseGoal("Raise_Cash_Buffer")
	require.NoError(t, err)
	assert.Equal(t, RaiseCashBuffer, g)
}
