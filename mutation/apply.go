package mutation

import (
	"context"
	"fmt"
	"strings"

	"github.com/etnz/folio"
	"github.com/etnz/folio/store"
	"go.uber.org/zap"
)

// Store runs writes in a transaction. *store.Store implements it.
type Store interface {
	InTx(ctx context.Context, fn func(*store.Tx) error) error
}

// Outcome is the result of an applied write.
type Outcome struct {
	WriteID    string       `json:"writeId"`
	Kind       Kind         `json:"kind"`
	Message    string       `json:"message"`
	NewTickers []string     `json:"newTickers,omitempty"`
	Sale       *SaleOutcome `json:"sale,omitempty"`
}

// Applier applies pending writes. Backfill is optional: when set, tickers created by a write
// get their latest price fetched in the background.
type Applier struct {
	Store    Store
	Backfill *Backfill
	Log      *zap.Logger
}

// Apply executes w in a single store transaction.
func Apply(ctx context.Context, st Store, w PendingWrite) (Outcome, error) {
	return (&Applier{Store: st}).Apply(ctx, w)
}

// Apply executes w in a single store transaction.
func (a *Applier) Apply(ctx context.Context, w PendingWrite) (Outcome, error) {
	log := a.Log
	if log == nil {
		log = zap.NewNop()
	}
	out := Outcome{WriteID: w.ID, Kind: w.Kind}
	err := a.Store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		switch {
		case w.Kind == AddStockTransaction && w.StockTransaction != nil:
			err = addStockTransaction(ctx, tx, *w.StockTransaction, &out)
		case w.Kind == AddCashAsset && w.CashAsset != nil:
			err = addCashAsset(ctx, tx, *w.CashAsset, &out)
		case w.Kind == AddTickerToWatchlist && w.Watchlist != nil:
			err = addToWatchlist(ctx, tx, *w.Watchlist, &out)
		case w.Kind == AddTickerThemes && w.Themes != nil:
			err = addThemes(ctx, tx, *w.Themes, &out)
		case w.Kind == AddRsuGrant && w.Grant != nil:
			err = addGrant(ctx, tx, *w.Grant, &out)
		case w.Kind == SellShares && w.Sale != nil:
			var sale SaleOutcome
			sale, err = sell(ctx, tx, *w.Sale, log)
			out.Sale = &sale
			out.Message = describeSale(sale)
		case w.Kind == UpdateAssetValue && w.AssetValue != nil:
			err = updateAssetValue(ctx, tx, *w.AssetValue, &out)
		default:
			err = folio.ValidationError{Field: "write", Reason: fmt.Sprintf("%s carries no %s payload", w.ID, w.Kind)}
		}
		return err
	})
	if err != nil {
		log.Warn("write failed", zap.String("id", w.ID), zap.String("kind", string(w.Kind)), zap.Error(err))
		return Outcome{WriteID: w.ID, Kind: w.Kind}, err
	}
	log.Info("write applied", zap.String("id", w.ID), zap.String("kind", string(w.Kind)), zap.String("message", out.Message))
	if a.Backfill != nil && len(out.NewTickers) > 0 {
		a.Backfill.Start(ctx, out.NewTickers...)
	}
	return out, nil
}

// stockAsset returns the id of the stock asset holding symbol in account, creating it if needed.
func stockAsset(ctx context.Context, tx *store.Tx, symbol, account, name, ownership string) (string, error) {
	snap, err := tx.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	for _, a := range snap.StockAssets(symbol) {
		if !strings.EqualFold(a.Location, strings.TrimSpace(account)) {
			continue
		}
		if name == "" || strings.EqualFold(a.Name, strings.TrimSpace(name)) {
			return a.ID, nil
		}
	}
	if name == "" {
		name = symbol
	}
	return tx.CreateAsset(ctx, folio.Asset{
		Name:      name,
		Type:      folio.Stock,
		Location:  account,
		Ownership: folio.Ownership(ownership),
		Ticker:    &folio.Ticker{Symbol: symbol},
	})
}

func ensureTicker(ctx context.Context, tx *store.Tx, symbol string, out *Outcome) error {
	created, err := tx.EnsureTicker(ctx, symbol)
	if err != nil {
		return err
	}
	if created {
		out.NewTickers = append(out.NewTickers, symbol)
	}
	return nil
}

func addStockTransaction(ctx context.Context, tx *store.Tx, in StockTransaction, out *Outcome) error {
	if err := ensureTicker(ctx, tx, in.Ticker, out); err != nil {
		return err
	}
	assetID, err := stockAsset(ctx, tx, in.Ticker, in.Account, in.AssetName, in.Ownership)
	if err != nil {
		return err
	}
	subtypeID, err := tx.EnsureSubtype(ctx, assetID, folio.SubtypeKind(in.Subtype))
	if err != nil {
		return err
	}
	lot, err := folio.NewTransaction(in.Count, in.CostPrice, in.PurchaseDate, tx.Today())
	if err != nil {
		return err
	}
	if _, err := tx.InsertTransaction(ctx, subtypeID, lot); err != nil {
		return err
	}
	if err := tx.RefreshWatchlist(ctx, in.Ticker); err != nil {
		return err
	}
	out.Message = fmt.Sprintf("Recorded %s %s shares bought on %v at %s (%s).", in.Count, in.Ticker, in.PurchaseDate, folio.USD(in.CostPrice), lot.Status)
	return nil
}

func addCashAsset(ctx context.Context, tx *store.Tx, in CashAsset, out *Outcome) error {
	value := in.Value
	if _, err := tx.CreateAsset(ctx, folio.Asset{
		Name:      in.Name,
		Type:      folio.AssetType(in.AssetType),
		Location:  in.Location,
		Ownership: folio.Ownership(in.Ownership),
		Price:     &value,
	}); err != nil {
		return err
	}
	out.Message = fmt.Sprintf("Created %q worth %s.", in.Name, folio.USD(in.Value))
	return nil
}

func addToWatchlist(ctx context.Context, tx *store.Tx, in Watchlist, out *Outcome) error {
	if err := ensureTicker(ctx, tx, in.Ticker, out); err != nil {
		return err
	}
	if err := tx.AddThemes(ctx, in.Ticker, in.Themes); err != nil {
		return err
	}
	if len(out.NewTickers) == 0 {
		out.Message = in.Ticker + " is already tracked."
		return nil
	}
	out.Message = in.Ticker + " added to the watchlist."
	return nil
}

func addThemes(ctx context.Context, tx *store.Tx, in Themes, out *Outcome) error {
	snap, err := tx.Snapshot(ctx)
	if err != nil {
		return err
	}
	if snap.Ticker(in.Ticker) == nil {
		return folio.NotFoundError{Kind: "ticker", Name: in.Ticker}
	}
	if err := tx.AddThemes(ctx, in.Ticker, in.Themes); err != nil {
		return err
	}
	out.Message = fmt.Sprintf("%s tagged with %s.", in.Ticker, strings.Join(in.Themes, ", "))
	return nil
}

func addGrant(ctx context.Context, tx *store.Tx, in Grant, out *Outcome) error {
	if err := ensureTicker(ctx, tx, in.Ticker, out); err != nil {
		return err
	}
	grant, err := folio.NewRsuGrant(in.GrantDate, in.TotalShares, in.VestStart, in.VestEnd, in.cliff())
	if err != nil {
		return err
	}
	assetID, err := stockAsset(ctx, tx, in.Ticker, in.Account, "", "")
	if err != nil {
		return err
	}
	subtypeID, err := tx.EnsureSubtype(ctx, assetID, folio.RSU)
	if err != nil {
		return err
	}
	if _, err := tx.InsertGrant(ctx, subtypeID, grant); err != nil {
		return err
	}
	if err := tx.RefreshWatchlist(ctx, in.Ticker); err != nil {
		return err
	}
	out.Message = fmt.Sprintf("Recorded an RSU grant of %s %s shares granted on %v.", in.TotalShares, in.Ticker, in.GrantDate)
	return nil
}

func updateAssetValue(ctx context.Context, tx *store.Tx, in AssetValue, out *Outcome) error {
	snap, err := tx.Snapshot(ctx)
	if err != nil {
		return err
	}
	var matches []folio.Asset
	for _, a := range snap.Assets {
		if strings.EqualFold(a.Name, strings.TrimSpace(in.Name)) {
			matches = append(matches, a)
		}
	}
	switch {
	case len(matches) == 0:
		return folio.NotFoundError{Kind: "asset", Name: in.Name}
	case len(matches) > 1:
		var where []string
		for _, a := range matches {
			where = append(where, a.Name+" ("+a.Location+")")
		}
		return folio.AmbiguityError{Kind: "asset", Name: in.Name, Candidates: where}
	case matches[0].IsStock():
		return folio.ValidationError{Field: "name", Reason: fmt.Sprintf("%q is a stock asset, its value follows its ticker price", matches[0].Name)}
	}
	if err := tx.UpdateAssetPrice(ctx, matches[0].ID, in.Value); err != nil {
		return err
	}
	out.Message = fmt.Sprintf("%q is now worth %s.", matches[0].Name, folio.USD(in.Value))
	return nil
}

func describeSale(s SaleOutcome) string {
	msg := fmt.Sprintf("Sold %s %s shares from %s", s.SharesSold, s.Ticker, s.Account)
	if len(s.DeletedAssets) > 0 {
		msg += fmt.Sprintf("; %s fully divested and removed", strings.Join(s.DeletedAssets, ", "))
	}
	if s.TransferredTo != "" {
		msg += fmt.Sprintf("; %s moved to %s", folio.USD(s.Transferred), s.TransferredTo)
	}
	return msg + "."
}
