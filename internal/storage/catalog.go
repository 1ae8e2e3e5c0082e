package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// catalogDDL bootstraps the catalog schema. Applied on every open; CREATE IF
// NOT EXISTS keeps it idempotent.
const catalogDDL = `
CREATE TABLE IF NOT EXISTS traces (
    trace_id      TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    path          TEXT NOT NULL,
    span_count    INTEGER NOT NULL,
    event_count   INTEGER NOT NULL,
    duration_secs REAL,
    saved_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_traces_name ON traces(name);
`

// Entry is one catalog row describing a saved trace file.
type Entry struct {
	TraceID      string   `db:"trace_id"`
	Name         string   `db:"name"`
	Path         string   `db:"path"`
	SpanCount    int      `db:"span_count"`
	EventCount   int      `db:"event_count"`
	DurationSecs *float64 `db:"duration_secs"`
	SavedAt      int64    `db:"saved_at"`
}

// Catalog is a SQLite index over saved trace files. It never stores trace
// content — only enough metadata to list and locate traces by id.
type Catalog struct {
	db *sqlx.DB
}

// OpenCatalog opens (and if needed creates) the catalog database at path.
func OpenCatalog(path string) (*Catalog, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open catalog: %w", err)
	}
	if _, err := db.Exec(catalogDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: init catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Put inserts or replaces the catalog entry for a trace.
func (c *Catalog) Put(ctx context.Context, e Entry) error {
	const q = `
INSERT INTO traces (trace_id, name, path, span_count, event_count, duration_secs, saved_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(trace_id) DO UPDATE SET
    name = excluded.name,
    path = excluded.path,
    span_count = excluded.span_count,
    event_count = excluded.event_count,
    duration_secs = excluded.duration_secs,
    saved_at = excluded.saved_at`
	_, err := c.db.ExecContext(ctx, q,
		e.TraceID, e.Name, e.Path, e.SpanCount, e.EventCount, e.DurationSecs, e.SavedAt)
	if err != nil {
		return fmt.Errorf("storage: put catalog entry: %w", err)
	}
	return nil
}

// Get returns the entry for a trace id, or ErrNotFound.
func (c *Catalog) Get(ctx context.Context, traceID string) (Entry, error) {
	var e Entry
	err := c.db.GetContext(ctx, &e, `SELECT * FROM traces WHERE trace_id = ?`, traceID)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("storage: get catalog entry: %w", err)
	}
	return e, nil
}

// List returns all entries, most recently saved first.
func (c *Catalog) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := c.db.SelectContext(ctx, &entries,
		`SELECT * FROM traces ORDER BY saved_at DESC, trace_id`)
	if err != nil {
		return nil, fmt.Errorf("storage: list catalog: %w", err)
	}
	return entries, nil
}

// Remove deletes the entry for a trace id. Removing an absent id is a no-op.
func (c *Catalog) Remove(ctx context.Context, traceID string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM traces WHERE trace_id = ?`, traceID); err != nil {
		return fmt.Errorf("storage: remove catalog entry: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (c *Catalog) Close() error { return c.db.Close() }
