package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
)

func setupChunkStore(t *testing.T) *ChunkStore {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "data", "chunks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewChunkStore(context.Background(), db)
	require.NoError(t, err)
	return store
}

func TestChunkStore_ReplaceAllAndList(t *testing.T) {
	store := setupChunkStore(t)
	ctx := context.Background()

	chunks := []domain.Chunk{
		domain.NewChunk("Total revenue was 5.2bn", "acme.pdf", 12, "Acme Corp", map[string]string{"section": "financials"}),
		domain.NewChunk("Board of directors", "acme.pdf", 3, "Acme Corp", nil),
		domain.NewChunk("Cover page", "scan.pdf", 0, "", nil),
	}
	require.NoError(t, store.ReplaceAll(ctx, chunks))

	got, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "Total revenue was 5.2bn", got[0].Content)
	assert.Equal(t, 12, got[0].PageIndex)
	assert.Equal(t, "financials", got[0].Metadata["section"])
	assert.Equal(t, "acme.pdf", got[0].Metadata[domain.MetaSource])
	assert.Equal(t, "Board of directors", got[1].Content)
	assert.Equal(t, domain.UnknownCompany, got[2].CompanyName)
	assert.Equal(t, chunks[0].Key(), got[0].Key())
}

func TestChunkStore_ReplaceAllOverwrites(t *testing.T) {
	store := setupChunkStore(t)
	ctx := context.Background()

	require.NoError(t, store.ReplaceAll(ctx, []domain.Chunk{
		domain.NewChunk("old", "old.pdf", 0, "Old", nil),
		domain.NewChunk("older", "old.pdf", 1, "Old", nil),
	}))
	require.NoError(t, store.ReplaceAll(ctx, []domain.Chunk{
		domain.NewChunk("new", "new.pdf", 0, "New", nil),
	}))

	got, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Content)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestChunkStore_InvalidChunkKeepsPreviousCollection(t *testing.T) {
	store := setupChunkStore(t)
	ctx := context.Background()

	require.NoError(t, store.ReplaceAll(ctx, []domain.Chunk{domain.NewChunk("kept", "a.pdf", 0, "A", nil)}))

	err := store.ReplaceAll(ctx, []domain.Chunk{{Content: "x", SourceFilename: "a.pdf", PageIndex: -1}})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))

	got, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].Content)
}

func TestChunkStore_EmptyList(t *testing.T) {
	store := setupChunkStore(t)

	got, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}
