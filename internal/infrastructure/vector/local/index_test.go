package local

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
	"github.com/kirillkom/annual-report-rag/internal/infrastructure/repository/sqlite"
)

func setupIndex(t *testing.T, path string) *Index {
	t.Helper()
	db, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	idx, err := NewIndex(context.Background(), db)
	require.NoError(t, err)
	return idx
}

func TestIndex_SearchFiltersAndRanks(t *testing.T) {
	idx := setupIndex(t, filepath.Join(t.TempDir(), "vectors.db"))
	ctx := context.Background()

	chunks := []domain.Chunk{
		domain.NewChunk("acme revenue", "acme.pdf", 1, "Acme", nil),
		domain.NewChunk("acme staff", "acme.pdf", 2, "Acme", nil),
		domain.NewChunk("globex revenue", "globex.pdf", 1, "Globex", nil),
	}
	vectors := [][]float32{{1, 0}, {0, 1}, {1, 0.01}}
	require.NoError(t, idx.Add(ctx, chunks, vectors))

	got, err := idx.Search(ctx, []float32{1, 0}, 10, domain.SearchFilter{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "acme revenue", got[0].Chunk.Content)
	assert.Equal(t, "globex revenue", got[1].Chunk.Content)
	assert.Equal(t, []float32{1, 0}, got[0].Vector)

	got, err = idx.Search(ctx, []float32{1, 0}, 10, domain.SearchFilter{Company: "Globex"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Globex", got[0].Chunk.CompanyName)

	got, err = idx.Search(ctx, []float32{1, 0}, 1, domain.SearchFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestIndex_AddIsUpsert(t *testing.T) {
	idx := setupIndex(t, filepath.Join(t.TempDir(), "vectors.db"))
	ctx := context.Background()

	c := domain.NewChunk("same chunk", "a.pdf", 0, "A", nil)
	require.NoError(t, idx.Add(ctx, []domain.Chunk{c}, [][]float32{{1, 0}}))
	require.NoError(t, idx.Add(ctx, []domain.Chunk{c}, [][]float32{{0, 1}}))
	assert.Equal(t, 1, idx.Len())

	got, err := idx.Search(ctx, []float32{0, 1}, 5, domain.SearchFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
}

func TestIndex_PersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.db")
	idx := setupIndex(t, path)
	ctx := context.Background()

	exists, err := idx.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	persisted := domain.NewChunk("persisted", "a.pdf", 3, "A", map[string]string{"section": "risk"})
	require.NoError(t, idx.Add(ctx, []domain.Chunk{persisted}, [][]float32{{0.25, -0.5, 1}}))
	require.NoError(t, idx.Persist(ctx))

	require.NoError(t, idx.Add(ctx, []domain.Chunk{domain.NewChunk("unsaved", "a.pdf", 4, "A", nil)}, [][]float32{{1, 1, 1}}))
	require.NoError(t, idx.Reload(ctx))
	assert.Equal(t, 1, idx.Len())

	exists, err = idx.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	reopened := setupIndex(t, path)
	require.NoError(t, reopened.Reload(ctx))
	got, err := reopened.Search(ctx, []float32{0.25, -0.5, 1}, 5, domain.SearchFilter{Company: "A"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, persisted.Key(), got[0].Chunk.Key())
	assert.Equal(t, "risk", got[0].Chunk.Metadata["section"])
	assert.Equal(t, []float32{0.25, -0.5, 1}, got[0].Vector)
}

func TestIndex_AddRejectsMismatch(t *testing.T) {
	idx := setupIndex(t, filepath.Join(t.TempDir(), "vectors.db"))

	err := idx.Add(context.Background(), []domain.Chunk{domain.NewChunk("x", "a.pdf", 0, "A", nil)}, nil)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))
}

func TestFloat32RoundTrip(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3.4028235e38}
	assert.Equal(t, in, bytesToFloat32Slice(float32SliceToBytes(in)))
}

func TestIndex_ResetDropsPreviousCorpus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.db")
	ctx := context.Background()

	first := setupIndex(t, path)
	require.NoError(t, first.Reset(ctx))
	require.NoError(t, first.Add(ctx, []domain.Chunk{domain.NewChunk("old revenue", "old.pdf", 0, "Old Co", nil)}, [][]float32{{1, 0}}))
	require.NoError(t, first.Persist(ctx))

	second := setupIndex(t, path)
	require.NoError(t, second.Reload(ctx))
	require.NoError(t, second.Reset(ctx))
	assert.Equal(t, 0, second.Len())
	require.NoError(t, second.Add(ctx, []domain.Chunk{domain.NewChunk("new revenue", "new.pdf", 0, "New Co", nil)}, [][]float32{{1, 0}}))
	require.NoError(t, second.Persist(ctx))

	reopened := setupIndex(t, path)
	require.NoError(t, reopened.Reload(ctx))
	got, err := reopened.Search(ctx, []float32{1, 0}, 10, domain.SearchFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new.pdf", got[0].Chunk.SourceFilename)
}
