// Package store persists the portfolio in a SQL database.
//
// Two drivers are supported: "sqlite" (modernc.org/sqlite, the default, embedded) and
// "postgres" (lib/pq). Both share the same queries; the schema is created by Migrate.
//
// Reads go through Snapshot, which loads the full portfolio. Every write runs inside InTx so
// that a command either applies completely or not at all.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// Store is a portfolio store backed by a SQL database.
type Store struct {
	db     *sql.DB
	driver string
	log    *zap.Logger
	today  func() date.Date
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default logger discards everything.
func WithLogger(l *zap.Logger) Option { return func(s *Store) { s.log = l } }

// WithToday sets the clock used to classify lots on read.
func WithToday(today func() date.Date) Option { return func(s *Store) { s.today = today } }

// New wraps an open database.
func New(db *sql.DB, driver string, opts ...Option) *Store {
	s := &Store{db: db, driver: driver, log: zap.NewNop(), today: date.Today}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to the database. For sqlite the dsn is a file path or ":memory:".
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	switch driver {
	case SQLite, Postgres:
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == SQLite {
		// One connection: sqlite serializes writers anyway and ":memory:" is per connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, folio.ServiceError{Service: "store", Err: fmt.Errorf("failed to ping database: %w", err)}
	}
	if driver == SQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}
	s := New(db, driver, opts...)
	s.log.Debug("store opened", zap.String("driver", driver))
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// DB returns the underlying database.
func (s *Store) DB() *sql.DB { return s.db }

// querier is implemented by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Snapshot loads the whole portfolio.
func (s *Store) Snapshot(ctx context.Context) (*folio.Snapshot, error) {
	snap, err := loadSnapshot(ctx, s.db, s.today())
	if err != nil {
		return nil, folio.ServiceError{Service: "store", Err: err}
	}
	s.log.Debug("snapshot loaded",
		zap.Int("assets", len(snap.Assets)),
		zap.Int("tickers", len(snap.Tickers)),
		zap.Int("netWorthPoints", snap.History.Len()))
	return snap, nil
}

// InTx runs fn inside a database transaction. The transaction is committed if fn returns nil
// and rolled back otherwise; fn's error is returned unchanged.
func (s *Store) InTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return folio.ServiceError{Service: "store", Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx, today: s.today(), log: s.log}); err != nil {
		s.log.Debug("transaction rolled back", zap.Error(err))
		return err
	}
	if err := tx.Commit(); err != nil {
		return folio.ServiceError{Service: "store", Err: fmt.Errorf("failed to commit transaction: %w", err)}
	}
	return nil
}

// RecordNetWorth stores the net worth of a day, replacing any previous value for that day.
func (s *Store) RecordNetWorth(ctx context.Context, on date.Date, value decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO net_worth_points (on_date, value) VALUES ($1, $2)
		ON CONFLICT (on_date) DO UPDATE SET value = excluded.value
	`, on, value.Round(2))
	if err != nil {
		return fmt.Errorf("failed to record net worth: %w", err)
	}
	return nil
}

func loadSnapshot(ctx context.Context, q querier, today date.Date) (*folio.Snapshot, error) {
	tickers, err := loadTickers(ctx, q)
	if err != nil {
		return nil, err
	}
	assets, err := loadAssets(ctx, q, tickers, today)
	if err != nil {
		return nil, err
	}
	snap := &folio.Snapshot{Assets: assets}
	for _, sym := range tickers.order {
		snap.Tickers = append(snap.Tickers, *tickers.bySymbol[sym])
	}
	if err := loadNetWorth(ctx, q, &snap.History); err != nil {
		return nil, err
	}
	return snap, nil
}

type tickerSet struct {
	order    []string
	bySymbol map[string]*folio.Ticker
}

func loadTickers(ctx context.Context, q querier) (tickerSet, error) {
	set := tickerSet{bySymbol: map[string]*folio.Ticker{}}
	rows, err := q.QueryContext(ctx, `
		SELECT symbol, current_price, last_updated, watchlist_only
		FROM tickers
		ORDER BY symbol
	`)
	if err != nil {
		return set, fmt.Errorf("failed to query tickers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t folio.Ticker
		var price decimal.NullDecimal
		var updated sql.NullTime
		if err := rows.Scan(&t.Symbol, &price, &updated, &t.WatchlistOnly); err != nil {
			return set, fmt.Errorf("failed to scan ticker: %w", err)
		}
		if price.Valid {
			t.CurrentPrice = &price.Decimal
		}
		if updated.Valid {
			t.LastUpdated = &updated.Time
		}
		set.order = append(set.order, t.Symbol)
		set.bySymbol[t.Symbol] = &t
	}
	if err := rows.Err(); err != nil {
		return set, fmt.Errorf("failed to read tickers: %w", err)
	}
	rows.Close()

	themes, err := q.QueryContext(ctx, `SELECT symbol, theme FROM ticker_themes ORDER BY symbol, theme`)
	if err != nil {
		return set, fmt.Errorf("failed to query ticker themes: %w", err)
	}
	defer themes.Close()
	for themes.Next() {
		var sym, theme string
		if err := themes.Scan(&sym, &theme); err != nil {
			return set, fmt.Errorf("failed to scan ticker theme: %w", err)
		}
		if t, ok := set.bySymbol[sym]; ok {
			t.Themes = append(t.Themes, theme)
		}
	}
	return set, themes.Err()
}

func loadAssets(ctx context.Context, q querier, tickers tickerSet, today date.Date) ([]folio.Asset, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT a.id, a.name, a.asset_type, COALESCE(l.name, ''), a.ownership, a.price, COALESCE(a.ticker_symbol, '')
		FROM assets a
		LEFT JOIN locations l ON l.id = a.location_id
		ORDER BY a.name, a.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var assets []folio.Asset
	index := map[string]int{}
	for rows.Next() {
		var a folio.Asset
		var typ, ownership, symbol string
		var price decimal.NullDecimal
		if err := rows.Scan(&a.ID, &a.Name, &typ, &a.Location, &ownership, &price, &symbol); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		a.Type, a.Ownership = folio.AssetType(typ), folio.Ownership(ownership)
		if price.Valid {
			a.Price = &price.Decimal
		}
		if t, ok := tickers.bySymbol[symbol]; ok {
			a.Ticker = t
		}
		index[a.ID] = len(assets)
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read assets: %w", err)
	}
	rows.Close()

	// subtype id -> (asset index, subtype index)
	type ref struct{ asset, subtype int }
	subtypes := map[string]ref{}
	st, err := q.QueryContext(ctx, `SELECT id, asset_id, kind FROM stock_subtypes ORDER BY asset_id, kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock subtypes: %w", err)
	}
	defer st.Close()
	for st.Next() {
		var id, assetID, kind string
		if err := st.Scan(&id, &assetID, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan stock subtype: %w", err)
		}
		i, ok := index[assetID]
		if !ok {
			continue
		}
		subtypes[id] = ref{i, len(assets[i].Subtypes)}
		assets[i].Subtypes = append(assets[i].Subtypes, folio.StockSubtype{ID: id, Kind: folio.SubtypeKind(kind)})
	}
	if err := st.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stock subtypes: %w", err)
	}
	st.Close()

	txs, err := q.QueryContext(ctx, `
		SELECT id, subtype_id, seq, count, cost_price, purchase_date
		FROM transactions
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer txs.Close()
	for txs.Next() {
		var tx folio.Transaction
		var subtypeID string
		if err := txs.Scan(&tx.ID, &subtypeID, &tx.Seq, &tx.Count, &tx.CostPrice, &tx.PurchaseDate); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		r, ok := subtypes[subtypeID]
		if !ok {
			continue
		}
		tx.Status = folio.Classify(tx.PurchaseDate, today)
		sub := &assets[r.asset].Subtypes[r.subtype]
		sub.Transactions = append(sub.Transactions, tx)
	}
	if err := txs.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}
	txs.Close()

	grants, err := q.QueryContext(ctx, `
		SELECT id, subtype_id, grant_date, total_shares, vest_start, vest_end, cliff_date, ended_at
		FROM rsu_grants
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rsu grants: %w", err)
	}
	defer grants.Close()
	for grants.Next() {
		var g folio.RsuGrant
		var subtypeID string
		var cliff, ended date.Date
		if err := grants.Scan(&g.ID, &subtypeID, &g.GrantDate, &g.TotalShares, &g.VestStart, &g.VestEnd, &cliff, &ended); err != nil {
			return nil, fmt.Errorf("failed to scan rsu grant: %w", err)
		}
		if !cliff.IsZero() {
			g.CliffDate = &cliff
		}
		if !ended.IsZero() {
			g.EndedAt = &ended
		}
		r, ok := subtypes[subtypeID]
		if !ok {
			continue
		}
		sub := &assets[r.asset].Subtypes[r.subtype]
		sub.Grants = append(sub.Grants, g)
	}
	if err := grants.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rsu grants: %w", err)
	}
	return assets, nil
}

func loadNetWorth(ctx context.Context, q querier, h *date.History[float64]) error {
	rows, err := q.QueryContext(ctx, `SELECT on_date, value FROM net_worth_points ORDER BY on_date`)
	if err != nil {
		return fmt.Errorf("failed to query net worth points: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var on date.Date
		var v decimal.Decimal
		if err := rows.Scan(&on, &v); err != nil {
			return fmt.Errorf("failed to scan net worth point: %w", err)
		}
		h.Append(on, v.InexactFloat64())
	}
	return rows.Err()
}

// normalizeName trims and collapses inner spaces.
func normalizeName(s string) string { return strings.Join(strings.Fields(s), " ") }
