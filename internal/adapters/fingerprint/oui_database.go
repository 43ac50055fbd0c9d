package fingerprint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const ouiSchema = `
CREATE TABLE IF NOT EXISTS oui_registry (
	prefix TEXT PRIMARY KEY,
	vendor TEXT NOT NULL,
	vendor_short TEXT,
	country TEXT,
	last_updated INTEGER
);
CREATE INDEX IF NOT EXISTS idx_oui_vendor ON oui_registry(vendor);
`

const ouiUpsert = `
INSERT OR REPLACE INTO oui_registry (prefix, vendor, vendor_short, country, last_updated)
VALUES (?, ?, ?, ?, ?)`

// OUIEntry is one row of the registry.
type OUIEntry struct {
	Prefix      string
	Vendor      string
	VendorShort string
	Country     string
	LastUpdated time.Time
}

// OUIDatabase is a SQLite-backed registry with an LRU in front and an optional
// fallback repository for prefixes the registry lacks.
type OUIDatabase struct {
	mu       sync.RWMutex
	db       *sql.DB
	lookup   *sql.Stmt
	cache    *OUICache
	fallback VendorRepository
	closed   bool
}

// NewOUIDatabase opens (creating if needed) the registry at dbPath.
func NewOUIDatabase(dbPath string, cacheSize int, fallback VendorRepository) (*OUIDatabase, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, &DatabaseError{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &DatabaseError{Op: "ping", Err: errors.Join(ErrDatabaseUnavailable, err)}
	}
	if _, err := db.Exec(ouiSchema); err != nil {
		db.Close()
		return nil, &DatabaseError{Op: "schema", Err: err}
	}
	stmt, err := db.Prepare("SELECT COALESCE(NULLIF(vendor_short, ''), vendor) FROM oui_registry WHERE prefix = ?")
	if err != nil {
		db.Close()
		return nil, &DatabaseError{Op: "prepare", Err: err}
	}

	return &OUIDatabase{
		db:       db,
		lookup:   stmt,
		cache:    NewOUICache(cacheSize),
		fallback: fallback,
	}, nil
}

// LookupVendor checks the cache, then the registry, then the fallback.
func (o *OUIDatabase) LookupVendor(ctx context.Context, prefix Prefix) (string, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return "", ErrRepositoryClosed
	}

	key := prefix.String()
	if vendor, ok := o.cache.Get(key); ok {
		return vendor, nil
	}

	var vendor string
	err := o.lookup.QueryRowContext(ctx, key).Scan(&vendor)
	switch {
	case err == nil:
		o.cache.Set(key, vendor)
		return vendor, nil
	case errors.Is(err, sql.ErrNoRows):
		return o.fromFallback(ctx, prefix, ErrVendorNotFound)
	default:
		return o.fromFallback(ctx, prefix, &DatabaseError{Op: "lookup", Err: err})
	}
}

func (o *OUIDatabase) fromFallback(ctx context.Context, prefix Prefix, cause error) (string, error) {
	if o.fallback == nil {
		return "", cause
	}
	vendor, err := o.fallback.LookupVendor(ctx, prefix)
	if err != nil || vendor == "" {
		return "", cause
	}
	o.cache.Set(prefix.String(), vendor)
	return vendor, nil
}

// InsertOUI adds or replaces a registry row.
func (o *OUIDatabase) InsertOUI(ctx context.Context, entry OUIEntry) error {
	return o.BulkInsertOUIs(ctx, []OUIEntry{entry})
}

// BulkInsertOUIs writes entries in a single transaction.
func (o *OUIDatabase) BulkInsertOUIs(ctx context.Context, entries []OUIEntry) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrRepositoryClosed
	}

	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return &DatabaseError{Op: "begin", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, ouiUpsert)
	if err != nil {
		return &DatabaseError{Op: "prepare insert", Err: err}
	}
	defer stmt.Close()

	for _, e := range entries {
		p, err := ParsePrefix(e.Prefix)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, p.String(), e.Vendor, e.VendorShort, e.Country, e.LastUpdated.Unix()); err != nil {
			return &DatabaseError{Op: "insert", Err: fmt.Errorf("%s: %w", p, err)}
		}
		// a stale cached answer would shadow the new row
		o.cache.Set(p.String(), firstNonEmpty(e.VendorShort, e.Vendor))
	}

	if err := tx.Commit(); err != nil {
		return &DatabaseError{Op: "commit", Err: err}
	}
	return nil
}

// GetStats reports registry size and cache counters.
func (o *OUIDatabase) GetStats(ctx context.Context) (RepositoryStats, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return RepositoryStats{}, ErrRepositoryClosed
	}

	var count int
	var last int64
	err := o.db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(MAX(last_updated), 0) FROM oui_registry").Scan(&count, &last)
	if err != nil {
		return RepositoryStats{}, &DatabaseError{Op: "stats", Err: err}
	}

	cs := o.cache.Stats()
	return RepositoryStats{
		TotalEntries: count,
		CacheHits:    cs.Hits,
		CacheMisses:  cs.Misses,
		LastUpdated:  time.Unix(last, 0).Format("2006-01-02"),
	}, nil
}

// Close releases the statement and the connection pool.
func (o *OUIDatabase) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	o.lookup.Close()
	o.cache.Clear()
	return o.db.Close()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
