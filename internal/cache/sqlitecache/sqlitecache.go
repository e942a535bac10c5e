// Package sqlitecache is the durable tier 2 cache plus the catalogue and
// held-symbols tables, backed by a single SQLite file that survives process
// restarts.
package sqlitecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gary-Shen/wert-sub000/internal/cache"
	"github.com/gary-Shen/wert-sub000/internal/quote"
)

// Cache stores price rows keyed by (symbol, trading date). A same-day write
// replaces the existing row, so at most one row per symbol per day exists.
type Cache struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// WAL mode keeps concurrent readers cheap while the resolver writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	c := &Cache{db: db, now: time.Now}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return c, nil
}

func (c *Cache) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS price_cache (
			symbol     TEXT NOT NULL,
			trade_date TEXT NOT NULL,
			price      REAL NOT NULL,
			currency   TEXT NOT NULL,
			source     TEXT NOT NULL,
			cached_at  INTEGER NOT NULL,
			PRIMARY KEY (symbol, trade_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_cached_at ON price_cache(cached_at)`,

		`CREATE TABLE IF NOT EXISTS catalogue (
			symbol     TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			asset_type TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS holdings (
			symbol   TEXT PRIMARY KEY,
			added_at INTEGER NOT NULL
		)`,
	}
	for _, s := range stmts {
		if _, err := c.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:32], err)
		}
	}
	return nil
}

// Load returns the most recent row for symbol.
func (c *Cache) Load(ctx context.Context, symbol string) (quote.PriceRecord, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT price, currency, source, trade_date, cached_at
		 FROM price_cache WHERE symbol = ?
		 ORDER BY trade_date DESC LIMIT 1`, symbol)

	var rec quote.PriceRecord
	var cachedAt int64
	err := row.Scan(&rec.Price, &rec.Currency, &rec.Source, &rec.AsOf, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return quote.PriceRecord{}, cache.ErrNoEntry
	}
	if err != nil {
		return quote.PriceRecord{}, fmt.Errorf("load %s: %w", symbol, err)
	}
	rec.Symbol = symbol
	rec.CachedAt = time.Unix(cachedAt, 0)
	return rec, nil
}

// Save upserts the row for (symbol, trading date); last write wins.
func (c *Cache) Save(ctx context.Context, rec quote.PriceRecord) error {
	cachedAt := rec.CachedAt
	if cachedAt.IsZero() {
		cachedAt = c.now()
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO price_cache (symbol, trade_date, price, currency, source, cached_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(symbol, trade_date) DO UPDATE SET
		   price = excluded.price,
		   currency = excluded.currency,
		   source = excluded.source,
		   cached_at = excluded.cached_at`,
		rec.Symbol, rec.AsOf, rec.Price, rec.Currency, rec.Source, cachedAt.Unix())
	if err != nil {
		return fmt.Errorf("save %s: %w", rec.Symbol, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, symbol string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM price_cache WHERE symbol = ?`, symbol)
	return err
}

// PruneBefore removes rows with a trading date before cutoff (YYYY-MM-DD).
func (c *Cache) PruneBefore(ctx context.Context, cutoff string) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM price_cache WHERE trade_date < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Stats implements cache.StatsReader.
func (c *Cache) Stats(ctx context.Context) (cache.StoreStats, error) {
	var s cache.StoreStats
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM price_cache`).Scan(&s.Total); err != nil {
		return s, err
	}
	today := c.now().Format("2006-01-02")
	if err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM price_cache WHERE trade_date = ?`, today).Scan(&s.Today); err != nil {
		return s, err
	}
	return s, nil
}

// SaveCatalogue replaces catalogue rows for the given instruments.
func (c *Cache) SaveCatalogue(ctx context.Context, rows []quote.Instrument) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO catalogue (symbol, name, asset_type, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(symbol) DO UPDATE SET
		   name = excluded.name,
		   asset_type = excluded.asset_type,
		   updated_at = excluded.updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := c.now().Unix()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Symbol, r.Name, r.AssetType, now); err != nil {
			return fmt.Errorf("catalogue upsert %s: %w", r.Symbol, err)
		}
	}
	return tx.Commit()
}

// AssetType returns the authoritative classification for a canonical symbol,
// when the catalogue has one. Callers fall back to the routing heuristic
// otherwise.
func (c *Cache) AssetType(ctx context.Context, symbol string) (string, bool) {
	var at string
	err := c.db.QueryRowContext(ctx,
		`SELECT asset_type FROM catalogue WHERE symbol = ?`, symbol).Scan(&at)
	if err != nil {
		return "", false
	}
	return at, true
}

// Search matches catalogue rows by symbol or name substring.
func (c *Cache) Search(ctx context.Context, query string, limit int) ([]quote.Instrument, error) {
	if limit <= 0 {
		limit = 10
	}
	pat := "%" + strings.TrimSpace(query) + "%"
	rows, err := c.db.QueryContext(ctx,
		`SELECT symbol, name, asset_type FROM catalogue
		 WHERE symbol LIKE ? OR name LIKE ?
		 ORDER BY symbol LIMIT ?`, pat, pat, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []quote.Instrument
	for rows.Next() {
		var ins quote.Instrument
		if err := rows.Scan(&ins.Symbol, &ins.Name, &ins.AssetType); err != nil {
			return nil, err
		}
		out = append(out, ins)
	}
	return out, rows.Err()
}

// HeldSymbols lists the raw symbols the scheduled resync refreshes. It
// satisfies the resolver's holdings port; a real deployment can point the
// resolver at the main application database instead.
func (c *Cache) HeldSymbols(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT symbol FROM holdings ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (c *Cache) AddHolding(ctx context.Context, symbol string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO holdings (symbol, added_at) VALUES (?, ?)
		 ON CONFLICT(symbol) DO NOTHING`, symbol, c.now().Unix())
	return err
}

func (c *Cache) RemoveHolding(ctx context.Context, symbol string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM holdings WHERE symbol = ?`, symbol)
	return err
}

func (c *Cache) Close() error { return c.db.Close() }
