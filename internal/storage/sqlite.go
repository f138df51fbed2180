// Package storage persists engine activity to sqlite: an event log of
// notable engine actions and a ticker log of received quotes. Both tables
// are append-only and trimmed by the daily maintenance job.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"trade_engine/internal/core"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS event_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	category TEXT NOT NULL,
	message TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_event_log_created_at ON event_log (created_at);

CREATE TABLE IF NOT EXISTS ticker_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	exchange TEXT NOT NULL,
	symbol TEXT NOT NULL,
	bid TEXT NOT NULL,
	ask TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ticker_log_created_at ON ticker_log (created_at);
`

// Open opens (or creates) the engine database and applies the schema.
func Open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Enable WAL mode for crash recovery
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return db, nil
}

// EventLogRepository records engine actions worth keeping beyond the
// process lifetime (order placements, adjustments, shutdowns).
type EventLogRepository struct {
	db     *sql.DB
	maxAge time.Duration
}

func NewEventLogRepository(db *sql.DB, maxAge time.Duration) *EventLogRepository {
	return &EventLogRepository{db: db, maxAge: maxAge}
}

// Insert appends one entry.
func (r *EventLogRepository) Insert(ctx context.Context, category, message string) error {
	query := `INSERT INTO event_log (category, message, created_at) VALUES (?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, category, message, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert event log entry: %w", err)
	}
	return nil
}

// CleanOldEntries deletes entries older than the retention window.
func (r *EventLogRepository) CleanOldEntries(ctx context.Context) error {
	cutoff := time.Now().Add(-r.maxAge).UnixNano()
	_, err := r.db.ExecContext(ctx, `DELETE FROM event_log WHERE created_at < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to clean event log: %w", err)
	}
	return nil
}

// TickerLogRepository records every ticker the engine receives. Prices are
// stored as decimal strings so nothing is lost to float rounding.
type TickerLogRepository struct {
	db     *sql.DB
	maxAge time.Duration
}

func NewTickerLogRepository(db *sql.DB, maxAge time.Duration) *TickerLogRepository {
	return &TickerLogRepository{db: db, maxAge: maxAge}
}

// Insert appends one ticker observation.
func (r *TickerLogRepository) Insert(ctx context.Context, ticker core.Ticker) error {
	query := `INSERT INTO ticker_log (exchange, symbol, bid, ask, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		ticker.Exchange, ticker.Symbol,
		ticker.Bid.String(), ticker.Ask.String(),
		ticker.ObservedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert ticker log entry: %w", err)
	}
	return nil
}

// CleanOldEntries deletes entries older than the retention window.
func (r *TickerLogRepository) CleanOldEntries(ctx context.Context) error {
	cutoff := time.Now().Add(-r.maxAge).UnixNano()
	_, err := r.db.ExecContext(ctx, `DELETE FROM ticker_log WHERE created_at < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to clean ticker log: %w", err)
	}
	return nil
}
