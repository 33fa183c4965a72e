package folio

import (
	"testing"

	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func stockAsset(symbol string, price *decimal.Decimal, lots ...Transaction) Asset {
	return Asset{
		ID:       "a-" + symbol,
		Name:     symbol + " shares",
		Type:     Stock,
		Location: "Brokerage",
		Ticker:   &Ticker{Symbol: symbol, CurrentPrice: price},
		Subtypes: []StockSubtype{{ID: "st-" + symbol, Kind: Market, Transactions: lots}},
	}
}

func lot(count, cost, on string) Transaction {
	return Transaction{Count: dec(count), CostPrice: dec(cost), PurchaseDate: date.MustParse(on)}
}

func TestLedgerPrimitives(t *testing.T) {
	testCases := []struct {
		name      string
		asset     Asset
		wantValue string
		wantCost  string
		wantGain  string
	}{
		{
			name:      "single market lot",
			asset:     stockAsset("AAPL", decp("100"), lot("10", "80", "2024-01-01")),
			wantValue: "1000", wantCost: "800", wantGain: "200",
		},
		{
			name:      "unknown price",
			asset:     stockAsset("MSFT", nil, lot("3", "250", "2024-01-01")),
			wantValue: "0", wantCost: "750", wantGain: "-750",
		},
		{
			name:      "rounded to cents",
			asset:     stockAsset("VT", decp("101.3333"), lot("3", "10.005", "2024-01-01")),
			wantValue: "304", wantCost: "30.02", wantGain: "273.98",
		},
		{
			name:      "cash asset",
			asset:     Asset{Name: "Checking", Type: Cash, Price: decp("1234.5")},
			wantValue: "1234.5", wantCost: "0", wantGain: "1234.5",
		},
		{
			name:      "cash without price",
			asset:     Asset{Name: "Empty", Type: Cash},
			wantValue: "0", wantCost: "0", wantGain: "0",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MarketValue(tc.asset); !got.Equal(dec(tc.wantValue)) {
				t.Errorf("MarketValue() = %v, want %v", got, tc.wantValue)
			}
			if got := CostBasis(tc.asset); !got.Equal(dec(tc.wantCost)) {
				t.Errorf("CostBasis() = %v, want %v", got, tc.wantCost)
			}
			if got := UnrealizedGain(tc.asset); !got.Equal(dec(tc.wantGain)) {
				t.Errorf("UnrealizedGain() = %v, want %v", got, tc.wantGain)
			}
		})
	}
}

func TestMarketValueNeverNegative(t *testing.T) {
	assets := []Asset{
		{Type: Cash, Price: decp("-10")},
		stockAsset("X", decp("-1"), lot("5", "1", "2024-01-01")),
		stockAsset("Y", decp("0"), lot("5", "1", "2024-01-01")),
	}
	for _, a := range assets {
		if v := MarketValue(a); v.IsNegative() {
			t.Errorf("MarketValue(%v) = %v, want >= 0", a.Name, v)
		}
		if !UnrealizedGain(a).Equal(MarketValue(a).Sub(CostBasis(a))) {
			t.Errorf("UnrealizedGain(%v) != MarketValue - CostBasis", a.Name)
		}
	}
}

func TestClassify(t *testing.T) {
	today := date.New(2025, 3, 15)
	testCases := []struct {
		purchase date.Date
		want     GainsStatus
	}{
		{date.New(2024, 3, 14), LongTerm},
		{date.New(2024, 3, 15), ShortTerm}, // exactly one calendar year
		{date.New(2024, 3, 16), ShortTerm},
		{date.New(2020, 1, 1), LongTerm},
		{date.New(2025, 3, 15), ShortTerm},
	}
	for _, tc := range testCases {
		got := Classify(tc.purchase, today)
		if got != tc.want {
			t.Errorf("Classify(%v, %v) = %v, want %v", tc.purchase, today, got, tc.want)
		}
		if again := Classify(tc.purchase, today); again != got {
			t.Errorf("Classify(%v, %v) is not deterministic: %v then %v", tc.purchase, today, got, again)
		}
	}
}

func TestClassifyLeapYear(t *testing.T) {
	// One calendar year before 2025-03-01 is 2024-03-01.
	today := date.New(2025, 3, 1)
	if got := Classify(date.New(2024, 2, 29), today); got != LongTerm {
		t.Errorf("Classify(2024-02-29) = %v, want %v", got, LongTerm)
	}
	if got := Classify(date.New(2024, 3, 1), today); got != ShortTerm {
		t.Errorf("Classify(2024-03-01) = %v, want %v", got, ShortTerm)
	}
}

func TestMoneyString(t *testing.T) {
	if got, want := USD(1234.5).String(), "$1,234.50"; got != want {
		t.Errorf("USD(1234.5).String() = %q, want %q", got, want)
	}
	if got, want := USD(12).SignedString(), "+$12.00"; got != want {
		t.Errorf("USD(12).SignedString() = %q, want %q", got, want)
	}
}
