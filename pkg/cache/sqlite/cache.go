package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/llmstxt/pkg/cache"
	"github.com/pario-ai/llmstxt/pkg/models"
)

// Store is the generation cache backed by SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ cache.Store = (*Store)(nil)

// Rows are append-only; (url, no_limit) is indexed but not unique.
const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL,
	llmstxt TEXT NOT NULL,
	llmsfulltxt TEXT NOT NULL,
	no_limit BOOLEAN NOT NULL DEFAULT 0,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_cache_url_tier ON cache(url, no_limit, cached_at);
`

// New opens the database at dbPath and runs auto-migration.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Lookup returns the freshest row for host and tier, or cache.ErrNotFound.
func (s *Store) Lookup(ctx context.Context, host string, noLimit bool) (*models.CacheEntry, error) {
	var e models.CacheEntry
	err := s.db.QueryRowContext(ctx,
		`SELECT url, llmstxt, llmsfulltxt, no_limit, cached_at FROM cache
		 WHERE url = ? AND no_limit = ? ORDER BY cached_at DESC, id DESC LIMIT 1`,
		host, noLimit,
	).Scan(&e.URL, &e.LLMsTxt, &e.LLMsFullTxt, &e.NoLimit, &e.CachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	return &e, nil
}

// Insert appends a row. A zero CachedAt is stamped with the current time.
func (s *Store) Insert(ctx context.Context, entry models.CacheEntry) error {
	if entry.CachedAt.IsZero() {
		entry.CachedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache (url, llmstxt, llmsfulltxt, no_limit, cached_at) VALUES (?, ?, ?, ?, ?)`,
		entry.URL, entry.LLMsTxt, entry.LLMsFullTxt, entry.NoLimit, entry.CachedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("cache insert: %w", err)
	}
	return nil
}

// Stats returns row, host and stale-row counts.
func (s *Store) Stats(ctx context.Context, maxAge time.Duration) (models.CacheStats, error) {
	var st models.CacheStats
	cutoff := s.now().Add(-maxAge).UTC()
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT url), COALESCE(SUM(CASE WHEN cached_at <= ? THEN 1 ELSE 0 END), 0) FROM cache`,
		cutoff,
	).Scan(&st.Entries, &st.Hosts, &st.Stale)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return st, nil
}

// Clear removes rows older than olderThan, or all rows when olderThan is zero.
func (s *Store) Clear(ctx context.Context, olderThan time.Duration) (int64, error) {
	var res sql.Result
	var err error
	if olderThan > 0 {
		res, err = s.db.ExecContext(ctx, `DELETE FROM cache WHERE cached_at <= ?`, s.now().Add(-olderThan).UTC())
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM cache`)
	}
	if err != nil {
		return 0, fmt.Errorf("cache clear: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
