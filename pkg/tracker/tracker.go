package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/pario-ai/llmstxt/pkg/models"
)

// Tracker records and queries generation requests.
type Tracker interface {
	// Record stores a generation record.
	Record(ctx context.Context, rec models.GenerationRecord) error
	// Recent returns the newest records, at most limit.
	Recent(ctx context.Context, limit int) ([]models.GenerationRecord, error)
	// Summary returns records aggregated by host and tier, optionally filtered by host.
	Summary(ctx context.Context, host string) ([]models.GenerationSummary, error)
	// Close releases resources.
	Close() error
}

// SQLiteTracker implements Tracker with a SQLite database.
type SQLiteTracker struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS generations (
	id TEXT PRIMARY KEY,
	host TEXT NOT NULL,
	no_limit BOOLEAN NOT NULL,
	url_count INTEGER NOT NULL,
	page_count INTEGER NOT NULL,
	cache_hit BOOLEAN NOT NULL,
	prompt_tokens INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	total_tokens INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_generations_host_time ON generations(host, created_at);
`

// New creates a SQLiteTracker and runs auto-migration.
func New(dbPath string) (*SQLiteTracker, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open tracker db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tracker db: %w", err)
	}

	return &SQLiteTracker{db: db}, nil
}

// Record stores a generation record. Missing ids and timestamps are filled in.
func (t *SQLiteTracker) Record(ctx context.Context, rec models.GenerationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO generations (id, host, no_limit, url_count, page_count, cache_hit, prompt_tokens, completion_tokens, total_tokens, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Host, rec.NoLimit, rec.URLCount, rec.PageCount, rec.CacheHit,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.DurationMs, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record generation: %w", err)
	}
	return nil
}

// Recent returns the newest records, at most limit.
func (t *SQLiteTracker) Recent(ctx context.Context, limit int) ([]models.GenerationRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, host, no_limit, url_count, page_count, cache_hit, prompt_tokens, completion_tokens, total_tokens, duration_ms, created_at
		 FROM generations ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent generations: %w", err)
	}
	defer rows.Close()

	var records []models.GenerationRecord
	for rows.Next() {
		var r models.GenerationRecord
		if err := rows.Scan(&r.ID, &r.Host, &r.NoLimit, &r.URLCount, &r.PageCount, &r.CacheHit,
			&r.PromptTokens, &r.CompletionTokens, &r.TotalTokens, &r.DurationMs, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Summary returns aggregated generations grouped by host and tier.
func (t *SQLiteTracker) Summary(ctx context.Context, host string) ([]models.GenerationSummary, error) {
	query := `SELECT host, no_limit, COUNT(*), SUM(CASE WHEN cache_hit THEN 1 ELSE 0 END), SUM(page_count), SUM(total_tokens)
		 FROM generations`
	var args []any
	if host != "" {
		query += ` WHERE host = ?`
		args = append(args, host)
	}
	query += ` GROUP BY host, no_limit ORDER BY host, no_limit`

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.GenerationSummary
	for rows.Next() {
		var s models.GenerationSummary
		if err := rows.Scan(&s.Host, &s.NoLimit, &s.RequestCount, &s.CacheHits, &s.TotalPages, &s.TotalTokens); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Close releases the database connection.
func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}
