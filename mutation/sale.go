package mutation

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/etnz/folio"
	"github.com/etnz/folio/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SaleOutcome describes what a sale changed.
type SaleOutcome struct {
	Ticker        string          `json:"ticker"`
	Account       string          `json:"account"`
	SharesSold    decimal.Decimal `json:"sharesSold"`
	RemovedLots   int             `json:"removedLots"`
	UpdatedLots   int             `json:"updatedLots"`
	DeletedAssets []string        `json:"deletedAssets,omitempty"`
	TransferredTo string          `json:"transferredTo,omitempty"`
	Transferred   decimal.Decimal `json:"transferred"`
}

// resolveAccount returns the stock assets of candidates whose name or location contains account,
// case-insensitively. Matches must share a single location.
func resolveAccount(candidates []folio.Asset, symbol, account string) ([]folio.Asset, error) {
	needle := strings.ToLower(strings.TrimSpace(account))
	var matches []folio.Asset
	for _, a := range candidates {
		if strings.Contains(strings.ToLower(a.Name), needle) || strings.Contains(strings.ToLower(a.Location), needle) {
			matches = append(matches, a)
		}
	}
	if len(matches) == 0 {
		name := account
		if name == "" {
			name = symbol
		}
		return nil, folio.NotFoundError{Kind: symbol + " account", Name: name}
	}
	var locations []string
	for _, a := range matches {
		if !slices.Contains(locations, a.Location) {
			locations = append(locations, a.Location)
		}
	}
	if len(locations) > 1 {
		slices.Sort(locations)
		return nil, folio.AmbiguityError{Kind: "account", Name: account, Candidates: locations}
	}
	return matches, nil
}

// resolveDestination returns the single non-stock asset named name. An exact name wins, the
// case-insensitive match is only tried when no name is exact.
func resolveDestination(assets []folio.Asset, name string) (folio.Asset, error) {
	name = strings.TrimSpace(name)
	var matches []folio.Asset
	for _, a := range assets {
		if strings.TrimSpace(a.Name) == name {
			matches = append(matches, a)
		}
	}
	if len(matches) == 0 {
		for _, a := range assets {
			if strings.EqualFold(strings.TrimSpace(a.Name), name) {
				matches = append(matches, a)
			}
		}
	}
	switch {
	case len(matches) == 0:
		return folio.Asset{}, folio.NotFoundError{Kind: "destination asset", Name: name}
	case len(matches) > 1:
		var where []string
		for _, a := range matches {
			where = append(where, fmt.Sprintf("%s (%s)", a.Name, cmp.Or(a.Location, string(a.Type))))
		}
		return folio.Asset{}, folio.AmbiguityError{Kind: "destination asset", Name: name, Candidates: where}
	case matches[0].IsStock():
		return folio.Asset{}, folio.ValidationError{Field: "transferTo", Reason: fmt.Sprintf("%q is a stock asset, proceeds can only go to a cash-like asset", matches[0].Name)}
	}
	return matches[0], nil
}

// sell applies a sale inside tx.
func sell(ctx context.Context, tx *store.Tx, in Sale, log *zap.Logger) (SaleOutcome, error) {
	out := SaleOutcome{Ticker: in.Ticker, SharesSold: decimal.Zero, Transferred: decimal.Zero}
	snap, err := tx.Snapshot(ctx)
	if err != nil {
		return out, err
	}
	candidates := snap.StockAssets(in.Ticker)
	if len(candidates) == 0 {
		return out, folio.NotFoundError{Kind: "stock asset", Name: in.Ticker}
	}
	assets, err := resolveAccount(candidates, in.Ticker, in.SourceAccount)
	if err != nil {
		return out, err
	}
	out.Account = cmp.Or(assets[0].Location, assets[0].Name)

	for _, lot := range in.Lots {
		var rows []folio.Transaction
		for _, a := range assets {
			r, err := tx.TransactionsOn(ctx, a.ID, lot.PurchaseDate)
			if err != nil {
				return out, err
			}
			rows = append(rows, r...)
		}
		changes, err := folio.Deplete(in.Ticker, lot.PurchaseDate, rows, lot.Count)
		if err != nil {
			return out, err
		}
		for _, c := range changes {
			if c.Removed() {
				err = tx.DeleteTransaction(ctx, c.ID)
				out.RemovedLots++
			} else {
				err = tx.UpdateTransactionCount(ctx, c.ID, c.Remaining)
				out.UpdatedLots++
			}
			if err != nil {
				return out, err
			}
		}
		out.SharesSold = out.SharesSold.Add(lot.Count)
		log.Debug("lot sold", zap.String("ticker", in.Ticker), zap.Stringer("purchaseDate", lot.PurchaseDate),
			zap.Stringer("count", lot.Count), zap.Int("rows", len(changes)))
	}

	// Fully divested assets without a running grant are removed.
	after, err := tx.Snapshot(ctx)
	if err != nil {
		return out, err
	}
	for _, a := range after.Assets {
		if !slices.ContainsFunc(assets, func(r folio.Asset) bool { return r.ID == a.ID }) {
			continue
		}
		if folio.TotalShares(a).IsZero() && !a.HasActiveGrant() {
			if err := tx.DeleteAsset(ctx, a.ID); err != nil {
				return out, err
			}
			out.DeletedAssets = append(out.DeletedAssets, a.Name)
		}
	}
	if err := tx.RefreshWatchlist(ctx, in.Ticker); err != nil {
		return out, err
	}

	if in.TransferTo == "" {
		return out, nil
	}
	dest, err := resolveDestination(after.Assets, in.TransferTo)
	if err != nil {
		return out, err
	}
	amount := in.Transfer()
	current := decimal.Zero
	if dest.Price != nil {
		current = *dest.Price
	}
	if err := tx.UpdateAssetPrice(ctx, dest.ID, current.Add(amount)); err != nil {
		return out, err
	}
	out.TransferredTo, out.Transferred = dest.Name, amount
	return out, nil
}
