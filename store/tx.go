package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Tx is a store transaction. Writes are keyed by id; ids are generated here.
type Tx struct {
	tx    *sql.Tx
	today date.Date
	log   *zap.Logger
}

// Today returns the day used to classify lots.
func (t *Tx) Today() date.Date { return t.today }

// Snapshot loads the whole portfolio as seen by the transaction.
func (t *Tx) Snapshot(ctx context.Context) (*folio.Snapshot, error) {
	return loadSnapshot(ctx, t.tx, t.today)
}

// FindOrCreateLocation returns the id of the location named name, creating it if needed.
// Names are matched case-insensitively.
func (t *Tx) FindOrCreateLocation(ctx context.Context, name string) (string, error) {
	name = normalizeName(name)
	if name == "" {
		return "", folio.ValidationError{Field: "location", Reason: "is required"}
	}
	var id string
	err := t.tx.QueryRowContext(ctx, `SELECT id FROM locations WHERE LOWER(name) = LOWER($1)`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to look up location: %w", err)
	}
	id = uuid.NewString()
	if _, err := t.tx.ExecContext(ctx, `INSERT INTO locations (id, name) VALUES ($1, $2)`, id, name); err != nil {
		return "", fmt.Errorf("failed to create location: %w", err)
	}
	t.log.Debug("location created", zap.String("name", name), zap.String("id", id))
	return id, nil
}

// EnsureTicker creates the ticker if it does not exist yet and reports whether it did.
func (t *Tx) EnsureTicker(ctx context.Context, symbol string) (created bool, err error) {
	symbol = folio.NormalizeSymbol(symbol)
	if symbol == "" {
		return false, folio.ValidationError{Field: "symbol", Reason: "is required"}
	}
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO tickers (symbol, watchlist_only) VALUES ($1, $2)
		ON CONFLICT (symbol) DO NOTHING
	`, symbol, true)
	if err != nil {
		return false, fmt.Errorf("failed to create ticker: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to create ticker: %w", err)
	}
	return n > 0, nil
}

// AddThemes attaches themes to an existing ticker. Themes already present are ignored.
func (t *Tx) AddThemes(ctx context.Context, symbol string, themes []string) error {
	symbol = folio.NormalizeSymbol(symbol)
	for _, theme := range themes {
		theme = normalizeName(theme)
		if theme == "" {
			continue
		}
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO ticker_themes (symbol, theme) VALUES ($1, $2)
			ON CONFLICT (symbol, theme) DO NOTHING
		`, symbol, theme); err != nil {
			return fmt.Errorf("failed to add theme %q to %s: %w", theme, symbol, err)
		}
	}
	return nil
}

// SetTickerPrice records the latest price of a ticker.
func (t *Tx) SetTickerPrice(ctx context.Context, symbol string, price decimal.Decimal, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE tickers SET current_price = $2, last_updated = $3 WHERE symbol = $1
	`, folio.NormalizeSymbol(symbol), price, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to update %s price: %w", symbol, err)
	}
	return expectOne(res, folio.NotFoundError{Kind: "ticker", Name: symbol})
}

// RefreshWatchlist recomputes the watchlist-only flag of a ticker: it is set iff no stock
// asset references the ticker.
func (t *Tx) RefreshWatchlist(ctx context.Context, symbol string) error {
	symbol = folio.NormalizeSymbol(symbol)
	_, err := t.tx.ExecContext(ctx, `
		UPDATE tickers
		SET watchlist_only = NOT EXISTS (
			SELECT 1 FROM assets WHERE ticker_symbol = $1 AND asset_type = $2
		)
		WHERE symbol = $1
	`, symbol, string(folio.Stock))
	if err != nil {
		return fmt.Errorf("failed to refresh %s watchlist flag: %w", symbol, err)
	}
	return nil
}

// CreateAsset inserts an asset without subtypes and returns its id. The location is created
// if needed; a stock asset must reference an existing ticker.
func (t *Tx) CreateAsset(ctx context.Context, a folio.Asset) (string, error) {
	var locationID sql.NullString
	if normalizeName(a.Location) != "" {
		id, err := t.FindOrCreateLocation(ctx, a.Location)
		if err != nil {
			return "", err
		}
		locationID = sql.NullString{String: id, Valid: true}
	}
	var symbol sql.NullString
	if a.Ticker != nil {
		symbol = sql.NullString{String: folio.NormalizeSymbol(a.Ticker.Symbol), Valid: true}
	}
	var price any
	if a.Price != nil {
		price = a.Price.Round(2)
	}
	if a.Ownership == "" {
		a.Ownership = folio.Individual
	}
	id := uuid.NewString()
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO assets (id, name, asset_type, location_id, ownership, price, ticker_symbol)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, normalizeName(a.Name), string(a.Type), locationID, string(a.Ownership), price, symbol)
	if err != nil {
		return "", fmt.Errorf("failed to create asset %q: %w", a.Name, err)
	}
	t.log.Debug("asset created", zap.String("name", a.Name), zap.String("id", id))
	return id, nil
}

// UpdateAssetPrice sets the direct value of a non-stock asset.
func (t *Tx) UpdateAssetPrice(ctx context.Context, id string, price decimal.Decimal) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE assets SET price = $2 WHERE id = $1`, id, price.Round(2))
	if err != nil {
		return fmt.Errorf("failed to update asset value: %w", err)
	}
	return expectOne(res, folio.NotFoundError{Kind: "asset", Name: id})
}

// DeleteAsset deletes an asset with its subtypes, lots and grants.
func (t *Tx) DeleteAsset(ctx context.Context, id string) error {
	for _, q := range []string{
		`DELETE FROM transactions WHERE subtype_id IN (SELECT id FROM stock_subtypes WHERE asset_id = $1)`,
		`DELETE FROM rsu_grants WHERE subtype_id IN (SELECT id FROM stock_subtypes WHERE asset_id = $1)`,
		`DELETE FROM stock_subtypes WHERE asset_id = $1`,
	} {
		if _, err := t.tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("failed to delete asset %s: %w", id, err)
		}
	}
	res, err := t.tx.ExecContext(ctx, `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete asset %s: %w", id, err)
	}
	t.log.Debug("asset deleted", zap.String("id", id))
	return expectOne(res, folio.NotFoundError{Kind: "asset", Name: id})
}

// EnsureSubtype returns the id of the asset's subtype of the given kind, creating it if needed.
func (t *Tx) EnsureSubtype(ctx context.Context, assetID string, kind folio.SubtypeKind) (string, error) {
	var id string
	err := t.tx.QueryRowContext(ctx, `SELECT id FROM stock_subtypes WHERE asset_id = $1 AND kind = $2`, assetID, string(kind)).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to look up %s subtype: %w", kind, err)
	}
	id = uuid.NewString()
	if _, err := t.tx.ExecContext(ctx, `INSERT INTO stock_subtypes (id, asset_id, kind) VALUES ($1, $2, $3)`, id, assetID, string(kind)); err != nil {
		return "", fmt.Errorf("failed to create %s subtype: %w", kind, err)
	}
	return id, nil
}

func (t *Tx) nextSeq(ctx context.Context, table string) (int64, error) {
	var seq int64
	if err := t.tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM `+table).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to allocate %s sequence: %w", table, err)
	}
	return seq, nil
}

// InsertTransaction appends a lot to a subtype and returns its id.
func (t *Tx) InsertTransaction(ctx context.Context, subtypeID string, tx folio.Transaction) (string, error) {
	if !tx.Count.IsPositive() {
		return "", folio.ValidationError{Field: "count", Reason: "must be positive, got " + tx.Count.String()}
	}
	seq, err := t.nextSeq(ctx, "transactions")
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO transactions (id, subtype_id, seq, count, cost_price, purchase_date)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, subtypeID, seq, tx.Count, tx.CostPrice, tx.PurchaseDate)
	if err != nil {
		return "", fmt.Errorf("failed to insert transaction: %w", err)
	}
	return id, nil
}

// TransactionsOn returns the lots of an asset purchased on a given day, across its subtypes,
// in insertion order.
func (t *Tx) TransactionsOn(ctx context.Context, assetID string, on date.Date) ([]folio.Transaction, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT t.id, t.seq, t.count, t.cost_price, t.purchase_date
		FROM transactions t
		JOIN stock_subtypes s ON s.id = t.subtype_id
		WHERE s.asset_id = $1 AND t.purchase_date = $2
		ORDER BY t.seq
	`, assetID, on)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()
	var txs []folio.Transaction
	for rows.Next() {
		var tx folio.Transaction
		if err := rows.Scan(&tx.ID, &tx.Seq, &tx.Count, &tx.CostPrice, &tx.PurchaseDate); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.Status = folio.Classify(tx.PurchaseDate, t.today)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// UpdateTransactionCount sets the remaining shares of a lot.
func (t *Tx) UpdateTransactionCount(ctx context.Context, id string, count decimal.Decimal) error {
	if !count.IsPositive() {
		return folio.ValidationError{Field: "count", Reason: "must be positive, got " + count.String()}
	}
	res, err := t.tx.ExecContext(ctx, `UPDATE transactions SET count = $2 WHERE id = $1`, id, count)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", id, err)
	}
	return expectOne(res, folio.NotFoundError{Kind: "lot", Name: id})
}

// DeleteTransaction deletes a lot.
func (t *Tx) DeleteTransaction(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", id, err)
	}
	return expectOne(res, folio.NotFoundError{Kind: "lot", Name: id})
}

// InsertGrant appends an RSU grant to a subtype and returns its id.
func (t *Tx) InsertGrant(ctx context.Context, subtypeID string, g folio.RsuGrant) (string, error) {
	seq, err := t.nextSeq(ctx, "rsu_grants")
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO rsu_grants (id, subtype_id, seq, grant_date, total_shares, vest_start, vest_end, cliff_date, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, id, subtypeID, seq, g.GrantDate, g.TotalShares, g.VestStart, g.VestEnd, optionalDate(g.CliffDate), optionalDate(g.EndedAt))
	if err != nil {
		return "", fmt.Errorf("failed to insert rsu grant: %w", err)
	}
	return id, nil
}

func optionalDate(d *date.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return *d
}

// expectOne turns "no row affected" into notFound.
func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
