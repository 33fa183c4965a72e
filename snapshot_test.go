package folio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshot(t *testing.T) {
	fidelity := stockAsset("AAPL", decp("100"), lot("3", "80", "2024-01-01"))
	schwab := stockAsset("AAPL", decp("100"), lot("2", "90", "2024-02-01"))
	schwab.Location = "Schwab"
	snap := &Snapshot{
		Tickers: []Ticker{*fidelity.Ticker, {Symbol: "MSFT", WatchlistOnly: true}},
		Assets: []Asset{
			fidelity,
			schwab,
			{Name: "Savings", Type: Cash, Location: "Ally", Price: decp("500")},
		},
	}

	assert.Equal(t, "AAPL", snap.Ticker(" aapl ").Symbol)
	assert.Nil(t, snap.Ticker("GOOG"))
	assert.Len(t, snap.StockAssets("aapl"), 2)
	assert.Empty(t, snap.StockAssets("MSFT"))
	assert.Equal(t, "1000", snap.NetWorth().String())
}
