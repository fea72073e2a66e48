// Package history keeps a SQLite journal of finished package operations.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/samhoang/ashpm/internal/engine"
)

const schema = `
CREATE TABLE IF NOT EXISTS operations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    op TEXT NOT NULL,
    package_id TEXT,
    source_url TEXT,
    ref TEXT,
    locator TEXT,
    changed BOOLEAN NOT NULL DEFAULT 0,
    error TEXT,
    started_at TIMESTAMP NOT NULL,
    duration_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_operations_package ON operations(package_id);
CREATE INDEX IF NOT EXISTS idx_operations_started ON operations(started_at);
`

// Entry is one journaled operation.
type Entry struct {
	ID        int64
	Op        string
	PackageID string
	SourceURL string
	Ref       string
	Locator   string
	Changed   bool
	Error     string
	Started   time.Time
	Duration  time.Duration
}

// Failed reports whether the operation ended in an error.
func (e Entry) Failed() bool {
	return e.Error != ""
}

// Query filters List.
type Query struct {
	PackageID  string // exact id, empty for all
	Limit      int    // 0 means no limit
	FailedOnly bool
}

// Journal records engine events. It implements engine.Recorder.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal at dbPath. Use ":memory:" in tests.
func Open(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record stores ev.
func (j *Journal) Record(ctx context.Context, ev engine.Event) error {
	var errText sql.NullString
	if ev.Err != nil {
		errText = sql.NullString{String: ev.Err.Error(), Valid: true}
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO operations (op, package_id, source_url, ref, locator, changed, error, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.Op, ev.PackageID, ev.SourceURL, ev.Ref, ev.Locator, ev.Changed, errText,
		ev.Started.UTC(), ev.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record %s: %w", ev.Op, err)
	}
	return nil
}

// List returns journaled operations, newest first.
func (j *Journal) List(ctx context.Context, q Query) ([]Entry, error) {
	query := `SELECT id, op, package_id, source_url, ref, locator, changed, error, started_at, duration_ms
		FROM operations WHERE 1=1`
	var args []any
	if q.PackageID != "" {
		query += " AND package_id = ?"
		args = append(args, q.PackageID)
	}
	if q.FailedOnly {
		query += " AND error IS NOT NULL"
	}
	query += " ORDER BY started_at DESC, id DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                               Entry
			pkg, url, ref, locator, errText sql.NullString
			durationMS                      int64
		)
		if err := rows.Scan(&e.ID, &e.Op, &pkg, &url, &ref, &locator, &e.Changed, &errText, &e.Started, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		e.PackageID, e.SourceURL, e.Ref, e.Locator, e.Error = pkg.String, url.String, ref.String, locator.String, errText.String
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes entries started before cutoff and returns how many went.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, "DELETE FROM operations WHERE started_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return res.RowsAffected()
}

var _ engine.Recorder = (*Journal)(nil)
