package folio

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
)

// AssetType is the kind of an asset. Only Stock assets hold lots; every other type carries a
// direct price and is considered cash-like by the analytics.
type AssetType string

const (
	Stock         AssetType = "Stock"
	Cash          AssetType = "Cash"
	Retirement401 AssetType = "401k"
	CD            AssetType = "CD"
	Deposit       AssetType = "Deposit"
	HSA           AssetType = "HSA"
	IRA           AssetType = "IRA"
	BrokerageCash AssetType = "Brokerage Cash"
	OtherAsset    AssetType = "Other"
)

// AssetTypes lists every known asset type, in display order.
var AssetTypes = []AssetType{Stock, Cash, Retirement401, CD, Deposit, HSA, IRA, BrokerageCash, OtherAsset}

// ParseAssetType returns the asset type named s, case-insensitively.
func ParseAssetType(s string) (AssetType, error) {
	for _, t := range AssetTypes {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, nil
		}
	}
	return "", ValidationError{Field: "assetType", Reason: fmt.Sprintf("unknown asset type %q", s)}
}

// Ownership of an asset.
type Ownership string

const (
	Individual Ownership = "Individual"
	Joint      Ownership = "Joint"
)

// ParseOwnership returns the ownership named s. The empty string means Individual.
func ParseOwnership(s string) (Ownership, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "individual":
		return Individual, nil
	case "joint":
		return Joint, nil
	}
	return "", ValidationError{Field: "ownership", Reason: fmt.Sprintf("unknown ownership %q", s)}
}

// SubtypeKind is the acquisition mechanism of a stock subtype.
type SubtypeKind string

const (
	Market SubtypeKind = "Market"
	ESPP   SubtypeKind = "ESPP"
	RSU    SubtypeKind = "RSU"
)

// ParseSubtypeKind returns the subtype named s. The empty string means Market.
func ParseSubtypeKind(s string) (SubtypeKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "MARKET":
		return Market, nil
	case "ESPP":
		return ESPP, nil
	case "RSU":
		return RSU, nil
	}
	return "", ValidationError{Field: "subtype", Reason: fmt.Sprintf("unknown stock subtype %q", s)}
}

// GainsStatus is the capital-gains status of a lot.
type GainsStatus string

const (
	ShortTerm GainsStatus = "Short Term"
	LongTerm  GainsStatus = "Long Term"
)

// ParseGainsStatus returns the status named s.
func ParseGainsStatus(s string) (GainsStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "short term", "short":
		return ShortTerm, nil
	case "long term", "long":
		return LongTerm, nil
	}
	return "", ValidationError{Field: "capitalGainsStatus", Reason: fmt.Sprintf("unknown status %q", s)}
}

// Transaction is a tax lot: a number of shares bought (or vested) on a given day at a given cost.
type Transaction struct {
	ID           string          `json:"id"`
	Seq          int64           `json:"seq"` // stable insertion order
	Count        decimal.Decimal `json:"count"`
	CostPrice    decimal.Decimal `json:"costPrice"`
	PurchaseDate date.Date       `json:"purchaseDate"`
	Status       GainsStatus     `json:"capitalGainsStatus"`
}

// NewTransaction validates a lot and classifies it against today.
func NewTransaction(count, costPrice decimal.Decimal, purchase, today date.Date) (Transaction, error) {
	if !count.IsPositive() {
		return Transaction{}, ValidationError{Field: "count", Reason: "must be positive, got " + count.String()}
	}
	if costPrice.IsNegative() {
		return Transaction{}, ValidationError{Field: "costPrice", Reason: "must not be negative, got " + costPrice.String()}
	}
	if purchase.IsZero() {
		return Transaction{}, ValidationError{Field: "purchaseDate", Reason: "is required"}
	}
	return Transaction{
		Count:        count,
		CostPrice:    costPrice,
		PurchaseDate: purchase,
		Status:       Classify(purchase, today),
	}, nil
}

// RsuGrant is an award of restricted stock units vesting between VestStart and VestEnd.
type RsuGrant struct {
	ID          string          `json:"id"`
	GrantDate   date.Date       `json:"grantDate"`
	TotalShares decimal.Decimal `json:"totalShares"`
	VestStart   date.Date       `json:"vestStart"`
	VestEnd     date.Date       `json:"vestEnd"`
	CliffDate   *date.Date      `json:"cliffDate,omitempty"`
	EndedAt     *date.Date      `json:"endedAt,omitempty"`
}

// NewRsuGrant validates a grant schedule.
func NewRsuGrant(grantDate date.Date, totalShares decimal.Decimal, vestStart, vestEnd date.Date, cliff *date.Date) (RsuGrant, error) {
	if grantDate.IsZero() {
		return RsuGrant{}, ValidationError{Field: "grantDate", Reason: "is required"}
	}
	if !totalShares.IsPositive() {
		return RsuGrant{}, ValidationError{Field: "totalShares", Reason: "must be positive, got " + totalShares.String()}
	}
	if vestStart.IsZero() || vestEnd.IsZero() {
		return RsuGrant{}, ValidationError{Field: "vestStart", Reason: "vesting start and end are required"}
	}
	if vestEnd.Before(vestStart) {
		return RsuGrant{}, ValidationError{Field: "vestEnd", Reason: fmt.Sprintf("%v is before vesting start %v", vestEnd, vestStart)}
	}
	if cliff != nil && (cliff.Before(vestStart) || cliff.After(vestEnd)) {
		return RsuGrant{}, ValidationError{Field: "cliffDate", Reason: fmt.Sprintf("%v is outside the vesting window", *cliff)}
	}
	return RsuGrant{
		GrantDate:   grantDate,
		TotalShares: totalShares,
		VestStart:   vestStart,
		VestEnd:     vestEnd,
		CliffDate:   cliff,
	}, nil
}

// Active reports whether the grant has not ended.
func (g RsuGrant) Active() bool { return g.EndedAt == nil }

// EffectiveVestEnd is the vesting end, cut short by the end date of an ended grant.
func (g RsuGrant) EffectiveVestEnd() date.Date {
	if g.EndedAt != nil && g.EndedAt.Before(g.VestEnd) {
		return *g.EndedAt
	}
	return g.VestEnd
}

// StockSubtype buckets the lots of a stock asset by acquisition mechanism.
type StockSubtype struct {
	ID           string        `json:"id"`
	Kind         SubtypeKind   `json:"subtype"`
	Transactions []Transaction `json:"transactions"`
	Grants       []RsuGrant    `json:"rsuGrants,omitempty"`
}

// Ticker is a tracked symbol.
type Ticker struct {
	Symbol        string           `json:"symbol"`
	CurrentPrice  *decimal.Decimal `json:"currentPrice,omitempty"`
	LastUpdated   *time.Time       `json:"lastUpdated,omitempty"`
	Themes        []string         `json:"themes,omitempty"`
	WatchlistOnly bool             `json:"watchlistOnly"`
}

// NormalizeSymbol returns the canonical spelling of a ticker symbol.
func NormalizeSymbol(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

// Asset is a portfolio line. Stock assets reference a Ticker and own subtypes with lots,
// every other asset carries its value in Price.
type Asset struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Type      AssetType        `json:"assetType"`
	Location  string           `json:"location"`
	Ownership Ownership        `json:"ownership"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Ticker    *Ticker          `json:"ticker,omitempty"`
	Subtypes  []StockSubtype   `json:"stockSubtypes,omitempty"`
}

// IsStock reports whether the asset is a Stock asset.
func (a Asset) IsStock() bool { return a.Type == Stock }

// Symbol returns the ticker symbol of a stock asset, or "".
func (a Asset) Symbol() string {
	if a.Ticker == nil {
		return ""
	}
	return a.Ticker.Symbol
}

// Lots returns every lot of the asset across its subtypes, with the subtype they belong to.
func (a Asset) Lots() []Lot {
	var lots []Lot
	for _, st := range a.Subtypes {
		for _, tx := range st.Transactions {
			lots = append(lots, Lot{Transaction: tx, Subtype: st.Kind})
		}
	}
	return lots
}

// Lot is a transaction seen from its asset.
type Lot struct {
	Transaction
	Subtype SubtypeKind
}

// HasActiveGrant reports whether any RSU grant of the asset is still running.
func (a Asset) HasActiveGrant() bool {
	for _, st := range a.Subtypes {
		if slices.ContainsFunc(st.Grants, RsuGrant.Active) {
			return true
		}
	}
	return false
}
