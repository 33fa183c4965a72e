package analytics

import (
	"testing"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withGrant adds GOOG held at Schwab: 5 market shares and a 40 share grant of which 10 vested.
func withGrant(snap *folio.Snapshot) *folio.Snapshot {
	goog := &folio.Ticker{Symbol: "GOOG", CurrentPrice: decp("150")}
	a := stock("goog-sch", "Schwab", goog, folio.Market, lot("g1", 10, "5", "100", "2024-03-01"))
	a.Subtypes = append(a.Subtypes, folio.StockSubtype{
		ID:   "goog-rsu",
		Kind: folio.RSU,
		Grants: []folio.RsuGrant{{
			ID:          "grant",
			GrantDate:   date.MustParse("2024-01-01"),
			VestStart:   date.MustParse("2024-02-01"),
			VestEnd:     date.MustParse("2028-02-01"),
			TotalShares: dec("40"),
		}},
		Transactions: []folio.Transaction{
			lot("v1", 11, "5", "0", "2024-05-01"),
			lot("v2", 12, "5", "0", "2024-08-01"),
		},
	})
	snap.Assets = append(snap.Assets, a)
	snap.Tickers = append(snap.Tickers, *goog)
	return snap
}

func TestGrants(t *testing.T) {
	snap := withGrant(fixture())

	rows := Grants(snap)
	require.Len(t, rows, 1)
	assert.Equal(t, GrantRow{
		Symbol:         "GOOG",
		GrantDate:      date.New(2024, 1, 1),
		VestStart:      date.New(2024, 2, 1),
		VestEnd:        date.New(2028, 2, 1),
		TotalShares:    40,
		VestedShares:   10,
		UnvestedShares: 30,
		UnvestedValue:  4500,
		VestingLots:    2,
	}, rows[0])

	assert.Empty(t, Grants(snap, "AAPL"))
	assert.Empty(t, Grants(fixture()))
}

func TestPositionsCarryVesting(t *testing.T) {
	rows := Positions(withGrant(fixture()), PositionFilter{Symbols: []string{"goog"}})
	require.Len(t, rows, 1)
	assert.Equal(t, 15.0, rows[0].Shares)
	assert.Equal(t, 10.0, rows[0].VestedShares)
	assert.Equal(t, 30.0, rows[0].UnvestedShares)

	rows = Positions(fixture(), PositionFilter{Symbols: []string{"aapl"}})
	assert.Zero(t, rows[0].UnvestedShares)
}
