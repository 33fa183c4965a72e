// Package mutation turns write requests into confirmable PendingWrite values and applies them
// to the store once the user confirms.
//
// Prepare validates the request without touching the store. Apply runs a PendingWrite inside
// a single store transaction: it either succeeds completely or changes nothing.
package mutation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind of a pending write. Kinds are named after the write tools that produce them.
type Kind string

const (
	AddStockTransaction  Kind = "add_stock_transaction"
	AddCashAsset         Kind = "add_cash_asset"
	AddTickerToWatchlist Kind = "add_ticker_to_watchlist"
	AddTickerThemes      Kind = "add_ticker_themes"
	AddRsuGrant          Kind = "add_rsu_grant"
	SellShares           Kind = "sell_shares"
	UpdateAssetValue     Kind = "update_asset_value"
)

// Kinds lists every write kind.
var Kinds = []Kind{AddStockTransaction, AddCashAsset, AddTickerToWatchlist, AddTickerThemes, AddRsuGrant, SellShares, UpdateAssetValue}

// IsWrite reports whether name is a write tool.
func IsWrite(name string) bool {
	for _, k := range Kinds {
		if string(k) == name {
			return true
		}
	}
	return false
}

// StockTransaction records a purchase (or vest) of shares.
type StockTransaction struct {
	Ticker       string          `json:"ticker"`
	Account      string          `json:"account"`
	AssetName    string          `json:"assetName,omitempty"`
	Subtype      string          `json:"subtype,omitempty"`
	Ownership    string          `json:"ownership,omitempty"`
	Count        decimal.Decimal `json:"count"`
	CostPrice    decimal.Decimal `json:"costPrice"`
	PurchaseDate date.Date       `json:"purchaseDate"`
}

// CashAsset creates a non-stock asset.
type CashAsset struct {
	Name      string          `json:"name"`
	AssetType string          `json:"assetType,omitempty"`
	Location  string          `json:"location,omitempty"`
	Ownership string          `json:"ownership,omitempty"`
	Value     decimal.Decimal `json:"value"`
}

// Watchlist tracks a ticker without owning it.
type Watchlist struct {
	Ticker string   `json:"ticker"`
	Themes []string `json:"themes,omitempty"`
}

// Themes tags an existing ticker.
type Themes struct {
	Ticker string   `json:"ticker"`
	Themes []string `json:"themes"`
}

// Grant records an RSU grant.
type Grant struct {
	Ticker      string          `json:"ticker"`
	Account     string          `json:"account"`
	GrantDate   date.Date       `json:"grantDate"`
	TotalShares decimal.Decimal `json:"totalShares"`
	VestStart   date.Date       `json:"vestStart"`
	VestEnd     date.Date       `json:"vestEnd"`
	CliffDate   date.Date       `json:"cliffDate,omitempty"`
}

// LotSale is the number of shares sold out of the lots bought on a day.
type LotSale struct {
	PurchaseDate date.Date       `json:"purchaseDate"`
	Count        decimal.Decimal `json:"count"`
}

// Sale sells shares out of one account, optionally moving the proceeds to a non-stock asset.
type Sale struct {
	Ticker         string           `json:"ticker"`
	SourceAccount  string           `json:"sourceAccount"`
	Lots           []LotSale        `json:"lots"`
	SalePrice      *decimal.Decimal `json:"salePrice,omitempty"`
	TransferTo     string           `json:"transferTo,omitempty"`
	TransferAmount *decimal.Decimal `json:"transferAmount,omitempty"`
}

// SharesSold is the total number of shares of the sale.
func (s Sale) SharesSold() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.Lots {
		total = total.Add(l.Count)
	}
	return total
}

// Transfer returns the amount moved to TransferTo: the explicit amount, or shares times price.
func (s Sale) Transfer() decimal.Decimal {
	if s.TransferAmount != nil {
		return *s.TransferAmount
	}
	if s.SalePrice == nil {
		return decimal.Zero
	}
	return s.SharesSold().Mul(*s.SalePrice).Round(2)
}

// AssetValue sets the value of a non-stock asset.
type AssetValue struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}

// PendingWrite is a validated write waiting for confirmation. Exactly one payload is set,
// matching Kind.
type PendingWrite struct {
	ID      string `json:"id"`
	Kind    Kind   `json:"kind"`
	Summary string `json:"summary"`

	StockTransaction *StockTransaction `json:"stockTransaction,omitempty"`
	CashAsset        *CashAsset        `json:"cashAsset,omitempty"`
	Watchlist        *Watchlist        `json:"watchlist,omitempty"`
	Themes           *Themes           `json:"themes,omitempty"`
	Grant            *Grant            `json:"grant,omitempty"`
	Sale             *Sale             `json:"sale,omitempty"`
	AssetValue       *AssetValue       `json:"assetValue,omitempty"`
}

// saleArgs is the sell_shares tool input: either a single lot (purchaseDate and count) or lots.
type saleArgs struct {
	Sale
	PurchaseDate date.Date        `json:"purchaseDate"`
	Count        *decimal.Decimal `json:"count"`
}

// decode converts tool arguments into v.
func decode(args map[string]any, v any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return folio.ValidationError{Reason: err.Error()}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return folio.ValidationError{Reason: err.Error()}
	}
	return nil
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return folio.ValidationError{Field: field, Reason: "is required"}
	}
	return nil
}

// Prepare validates the arguments of a write tool and returns the pending write to confirm.
// It never touches the store.
func Prepare(kind string, args map[string]any) (PendingWrite, error) {
	w := PendingWrite{ID: uuid.NewString(), Kind: Kind(kind)}
	var err error
	switch w.Kind {
	case AddStockTransaction:
		w.StockTransaction, err = prepareStockTransaction(args)
	case AddCashAsset:
		w.CashAsset, err = prepareCashAsset(args)
	case AddTickerToWatchlist:
		w.Watchlist, err = prepareWatchlist(args)
	case AddTickerThemes:
		w.Themes, err = prepareThemes(args)
	case AddRsuGrant:
		w.Grant, err = prepareGrant(args)
	case SellShares:
		w.Sale, err = prepareSale(args)
	case UpdateAssetValue:
		w.AssetValue, err = prepareAssetValue(args)
	default:
		return PendingWrite{}, folio.ValidationError{Field: "tool", Reason: fmt.Sprintf("%q is not a write tool", kind)}
	}
	if err != nil {
		return PendingWrite{}, fmt.Errorf("%s: %w", kind, err)
	}
	w.Summary = w.describe()
	return w, nil
}

func prepareStockTransaction(args map[string]any) (*StockTransaction, error) {
	var in StockTransaction
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	in.Ticker = folio.NormalizeSymbol(in.Ticker)
	if err := errorsFirst(required("ticker", in.Ticker), required("account", in.Account)); err != nil {
		return nil, err
	}
	kind, err := folio.ParseSubtypeKind(in.Subtype)
	if err != nil {
		return nil, err
	}
	in.Subtype = string(kind)
	own, err := folio.ParseOwnership(in.Ownership)
	if err != nil {
		return nil, err
	}
	in.Ownership = string(own)
	// today does not matter here: only the validation is kept.
	if _, err := folio.NewTransaction(in.Count, in.CostPrice, in.PurchaseDate, in.PurchaseDate); err != nil {
		return nil, err
	}
	return &in, nil
}

func prepareCashAsset(args map[string]any) (*CashAsset, error) {
	var in CashAsset
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	if err := required("name", in.Name); err != nil {
		return nil, err
	}
	if in.AssetType == "" {
		in.AssetType = string(folio.Cash)
	}
	typ, err := folio.ParseAssetType(in.AssetType)
	if err != nil {
		return nil, err
	}
	if typ == folio.Stock {
		return nil, folio.ValidationError{Field: "assetType", Reason: "stock assets are created by add_stock_transaction"}
	}
	in.AssetType = string(typ)
	own, err := folio.ParseOwnership(in.Ownership)
	if err != nil {
		return nil, err
	}
	in.Ownership = string(own)
	if in.Value.IsNegative() {
		return nil, folio.ValidationError{Field: "value", Reason: "must not be negative, got " + in.Value.String()}
	}
	return &in, nil
}

func cleanThemes(themes []string) []string {
	var out []string
	for _, t := range themes {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func prepareWatchlist(args map[string]any) (*Watchlist, error) {
	var in Watchlist
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	in.Ticker = folio.NormalizeSymbol(in.Ticker)
	in.Themes = cleanThemes(in.Themes)
	return &in, required("ticker", in.Ticker)
}

func prepareThemes(args map[string]any) (*Themes, error) {
	var in Themes
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	in.Ticker = folio.NormalizeSymbol(in.Ticker)
	in.Themes = cleanThemes(in.Themes)
	if err := required("ticker", in.Ticker); err != nil {
		return nil, err
	}
	if len(in.Themes) == 0 {
		return nil, folio.ValidationError{Field: "themes", Reason: "at least one theme is required"}
	}
	return &in, nil
}

func prepareGrant(args map[string]any) (*Grant, error) {
	var in Grant
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	in.Ticker = folio.NormalizeSymbol(in.Ticker)
	if err := errorsFirst(required("ticker", in.Ticker), required("account", in.Account)); err != nil {
		return nil, err
	}
	if _, err := folio.NewRsuGrant(in.GrantDate, in.TotalShares, in.VestStart, in.VestEnd, in.cliff()); err != nil {
		return nil, err
	}
	return &in, nil
}

func (g Grant) cliff() *date.Date {
	if g.CliffDate.IsZero() {
		return nil
	}
	return &g.CliffDate
}

func prepareSale(args map[string]any) (*Sale, error) {
	var in saleArgs
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	sale := in.Sale
	sale.Ticker = folio.NormalizeSymbol(sale.Ticker)
	if err := required("ticker", sale.Ticker); err != nil {
		return nil, err
	}
	single := !in.PurchaseDate.IsZero() || in.Count != nil
	switch {
	case single && len(sale.Lots) > 0:
		return nil, folio.ValidationError{Field: "lots", Reason: "give either purchaseDate and count, or lots, not both"}
	case single:
		lot := LotSale{PurchaseDate: in.PurchaseDate}
		if in.Count != nil {
			lot.Count = *in.Count
		}
		sale.Lots = []LotSale{lot}
	case len(sale.Lots) == 0:
		return nil, folio.ValidationError{Field: "lots", Reason: "at least one lot (purchaseDate and count) is required"}
	}
	for i, l := range sale.Lots {
		if l.PurchaseDate.IsZero() {
			return nil, folio.ValidationError{Field: fmt.Sprintf("lots[%d].purchaseDate", i), Reason: "is required"}
		}
		if !l.Count.IsPositive() {
			return nil, folio.ValidationError{Field: fmt.Sprintf("lots[%d].count", i), Reason: "must be positive, got " + l.Count.String()}
		}
	}
	if sale.SalePrice != nil && !sale.SalePrice.IsPositive() {
		return nil, folio.ValidationError{Field: "salePrice", Reason: "must be positive, got " + sale.SalePrice.String()}
	}
	sale.TransferTo = strings.TrimSpace(sale.TransferTo)
	if sale.TransferAmount != nil {
		if sale.TransferTo == "" {
			return nil, folio.ValidationError{Field: "transferTo", Reason: "is required with transferAmount"}
		}
		if sale.TransferAmount.IsNegative() {
			return nil, folio.ValidationError{Field: "transferAmount", Reason: "must not be negative, got " + sale.TransferAmount.String()}
		}
	}
	if sale.TransferTo != "" && sale.TransferAmount == nil && sale.SalePrice == nil {
		return nil, folio.ValidationError{Field: "salePrice", Reason: "is required to compute the amount transferred to " + sale.TransferTo}
	}
	return &sale, nil
}

func prepareAssetValue(args map[string]any) (*AssetValue, error) {
	var in AssetValue
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	if err := required("name", in.Name); err != nil {
		return nil, err
	}
	if in.Value.IsNegative() {
		return nil, folio.ValidationError{Field: "value", Reason: "must not be negative, got " + in.Value.String()}
	}
	return &in, nil
}

func errorsFirst(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// describe returns the human readable confirmation message.
func (w PendingWrite) describe() string {
	switch w.Kind {
	case AddStockTransaction:
		in := w.StockTransaction
		return fmt.Sprintf("Record a %s purchase of %s %s shares at %s on %v in %s.",
			in.Subtype, in.Count, in.Ticker, folio.USD(in.CostPrice), in.PurchaseDate, in.Account)
	case AddCashAsset:
		in := w.CashAsset
		s := fmt.Sprintf("Create the %s asset %q worth %s", in.AssetType, in.Name, folio.USD(in.Value))
		if in.Location != "" {
			s += " at " + in.Location
		}
		return s + "."
	case AddTickerToWatchlist:
		in := w.Watchlist
		s := fmt.Sprintf("Add %s to the watchlist", in.Ticker)
		if len(in.Themes) > 0 {
			s += " with themes " + strings.Join(in.Themes, ", ")
		}
		return s + "."
	case AddTickerThemes:
		in := w.Themes
		return fmt.Sprintf("Tag %s with %s.", in.Ticker, strings.Join(in.Themes, ", "))
	case AddRsuGrant:
		in := w.Grant
		return fmt.Sprintf("Record an RSU grant of %s %s shares granted on %v, vesting from %v to %v, in %s.",
			in.TotalShares, in.Ticker, in.GrantDate, in.VestStart, in.VestEnd, in.Account)
	case SellShares:
		in := w.Sale
		var lots []string
		for _, l := range in.Lots {
			lots = append(lots, fmt.Sprintf("%s bought on %v", l.Count, l.PurchaseDate))
		}
		s := fmt.Sprintf("Sell %s %s shares (%s)", in.SharesSold(), in.Ticker, strings.Join(lots, "; "))
		if in.SourceAccount != "" {
			s += " from " + in.SourceAccount
		}
		if in.SalePrice != nil {
			s += " at " + folio.USD(*in.SalePrice).String()
		}
		if in.TransferTo != "" {
			s += fmt.Sprintf(", and move %s to %s", folio.USD(in.Transfer()), in.TransferTo)
		}
		return s + "."
	case UpdateAssetValue:
		in := w.AssetValue
		return fmt.Sprintf("Set the value of %q to %s.", in.Name, folio.USD(in.Value))
	}
	return string(w.Kind)
}
