package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashita-ai/kiroku/internal/model"
)

// Store combines a trace directory with its catalog: saves write the JSONL
// file and index it, loads resolve either a file path or a cataloged
// trace id.
type Store struct {
	dir     string
	catalog *Catalog
	logger  *slog.Logger
}

// NewStore opens a store rooted at dir. The catalog database lives inside
// the directory as catalog.db.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create store dir: %w", err)
	}
	cat, err := OpenCatalog(filepath.Join(dir, "catalog.db"))
	if err != nil {
		return nil, err
	}
	return &Store{dir: dir, catalog: cat, logger: logger}, nil
}

// Save writes the trace to <dir>/<trace_id>.jsonl and records it in the
// catalog. Returns the file path.
func (s *Store) Save(ctx context.Context, tr *model.Trace) (string, error) {
	path := filepath.Join(s.dir, tr.TraceID+".jsonl")
	if err := Save(tr, path); err != nil {
		return "", err
	}

	entry := Entry{
		TraceID:    tr.TraceID,
		Name:       tr.Name,
		Path:       path,
		SpanCount:  len(tr.Spans),
		EventCount: tr.EventCount(),
		SavedAt:    time.Now().Unix(),
	}
	if d, ok := tr.Duration(); ok {
		entry.DurationSecs = &d
	}
	if err := s.catalog.Put(ctx, entry); err != nil {
		return "", err
	}

	s.logger.Debug("trace saved",
		"trace_id", tr.TraceID,
		"path", path,
		"spans", entry.SpanCount,
		"events", entry.EventCount)
	return path, nil
}

// Load resolves ref as a file path first, then as a cataloged trace id.
func (s *Store) Load(ctx context.Context, ref string) (*model.Trace, error) {
	if _, err := os.Stat(ref); err == nil {
		return Load(ref)
	}
	entry, err := s.catalog.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	return Load(entry.Path)
}

// List returns the catalog entries, most recent first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	return s.catalog.List(ctx)
}

// Remove drops a trace from the catalog and deletes its file.
func (s *Store) Remove(ctx context.Context, traceID string) error {
	entry, err := s.catalog.Get(ctx, traceID)
	if err != nil {
		return err
	}
	if err := os.Remove(entry.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: remove trace file: %w", err)
	}
	return s.catalog.Remove(ctx, traceID)
}

// Close releases the catalog handle.
func (s *Store) Close() error { return s.catalog.Close() }
