// Package journal records detection outcomes in a local SQLite database.
// It is write-only from the selection path: entries are diagnostics for
// operators and are never consulted when choosing a source.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS detections (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	at           TIMESTAMP NOT NULL,
	owner        TEXT NOT NULL,
	chosen       TEXT NOT NULL,
	used_fallback INTEGER NOT NULL,
	tried        INTEGER NOT NULL,
	diagnostic   TEXT NOT NULL DEFAULT ''
);
`

// Entry is one recorded detection outcome.
type Entry struct {
	ID           int64
	At           time.Time
	Owner        string
	Chosen       string
	UsedFallback bool
	Tried        int
	Diagnostic   string
}

// Journal is an append-only detection log.
type Journal struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal database at path.
func Open(ctx context.Context, path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: init schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record appends one detection outcome.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO detections (at, owner, chosen, used_fallback, tried, diagnostic)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		at.UTC(), e.Owner, e.Chosen, e.UsedFallback, e.Tried, e.Diagnostic)
	if err != nil {
		return fmt.Errorf("journal: record: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, at, owner, chosen, used_fallback, tried, diagnostic
		 FROM detections ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.At, &e.Owner, &e.Chosen, &e.UsedFallback, &e.Tried, &e.Diagnostic); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
