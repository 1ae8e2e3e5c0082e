package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kiroku/internal/storage"
)

func openCatalog(t *testing.T) *storage.Catalog {
	t.Helper()
	cat, err := storage.OpenCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })
	return cat
}

func TestCatalog_PutGet(t *testing.T) {
	ctx := context.Background()
	cat := openCatalog(t)

	dur := 1.25
	entry := storage.Entry{
		TraceID:      "abcd1234abcd1234",
		Name:         "run",
		Path:         "/tmp/run.jsonl",
		SpanCount:    2,
		EventCount:   5,
		DurationSecs: &dur,
		SavedAt:      100,
	}
	require.NoError(t, cat.Put(ctx, entry))

	got, err := cat.Get(ctx, entry.TraceID)
	require.NoError(t, err)
	assert.Equal(t, entry, got)
}

func TestCatalog_GetMissing(t *testing.T) {
	cat := openCatalog(t)
	_, err := cat.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCatalog_PutUpserts(t *testing.T) {
	ctx := context.Background()
	cat := openCatalog(t)

	entry := storage.Entry{TraceID: "id1", Name: "v1", Path: "/a", SavedAt: 1}
	require.NoError(t, cat.Put(ctx, entry))
	entry.Name = "v2"
	entry.EventCount = 9
	require.NoError(t, cat.Put(ctx, entry))

	got, err := cat.Get(ctx, "id1")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Name)
	assert.Equal(t, 9, got.EventCount)

	entries, err := cat.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCatalog_ListOrder(t *testing.T) {
	ctx := context.Background()
	cat := openCatalog(t)

	require.NoError(t, cat.Put(ctx, storage.Entry{TraceID: "old", Name: "a", Path: "/a", SavedAt: 10}))
	require.NoError(t, cat.Put(ctx, storage.Entry{TraceID: "new", Name: "b", Path: "/b", SavedAt: 20}))

	entries, err := cat.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "new", entries[0].TraceID, "most recently saved first")
	assert.Equal(t, "old", entries[1].TraceID)
}

func TestCatalog_Remove(t *testing.T) {
	ctx := context.Background()
	cat := openCatalog(t)

	require.NoError(t, cat.Put(ctx, storage.Entry{TraceID: "id1", Name: "a", Path: "/a", SavedAt: 1}))
	require.NoError(t, cat.Remove(ctx, "id1"))

	_, err := cat.Get(ctx, "id1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Removing an absent id is a no-op.
	assert.NoError(t, cat.Remove(ctx, "id1"))
}
