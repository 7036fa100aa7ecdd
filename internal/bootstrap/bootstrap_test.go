package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/annual-report-rag/internal/config"
	"github.com/kirillkom/annual-report-rag/internal/core/domain"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		DataDir:           dir,
		PDFDir:            filepath.Join(dir, "pdfs"),
		ChunkDBPath:       filepath.Join(dir, "chunks.db"),
		IndexPath:         filepath.Join(dir, "vectors.db"),
		QuestionsPath:     filepath.Join(dir, "questions.json"),
		OutputDir:         filepath.Join(dir, "out"),
		OutputFile:        "answers.json",
		OllamaURL:         "http://127.0.0.1:1",
		OllamaGenModel:    "gen",
		OllamaEmbedModel:  "embed",
		ChunkSize:         400,
		ChunkOverlap:      20,
		RAGMatchThreshold: 60,
		RetryMaxAttempts:  1,
	}
}

func TestLoadInferenceRequiresArtifacts(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := New(ctx, testConfig(t), logger)
	require.NoError(t, err)
	defer app.Close()

	_, err = app.LoadInference(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrArtifactMissing), "empty chunk store: %v", err)

	chunks := []domain.Chunk{
		domain.NewChunk("Revenue grew to 12 million dollars.", "alpha.pdf", 0, "Alpha Corp", nil),
		domain.NewChunk("The board approved a dividend.", "beta.pdf", 3, "Beta Holdings", nil),
	}
	require.NoError(t, app.Chunks.ReplaceAll(ctx, chunks))

	_, err = app.LoadInference(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrArtifactMissing), "missing index: %v", err)

	require.NoError(t, app.VectorIndex.Add(ctx, chunks, [][]float32{{1, 0}, {0, 1}}))
	require.NoError(t, app.VectorIndex.Persist(ctx))

	inf, err := app.LoadInference(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Alpha Corp", "Beta Holdings"}, inf.Catalog.Names())
	assert.NotNil(t, inf.Pipeline)
	assert.NotNil(t, inf.Batch)
}

func TestRunInferenceFailsBeforeQuestionsWithoutArtifacts(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	app, err := New(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer app.Close()

	_, err = app.RunInference(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrArtifactMissing))
	assert.NoFileExists(t, filepath.Join(cfg.OutputDir, cfg.OutputFile))
}

func TestResolveOutput(t *testing.T) {
	dir, key := resolveOutput(config.Config{OutputDir: "out", OutputFile: "answers.json"})
	assert.Equal(t, "out", dir)
	assert.Equal(t, "answers.json", key)

	dir, key = resolveOutput(config.Config{OutputDir: "out", OutputFile: "/tmp/run/answers.json"})
	assert.Equal(t, "/tmp/run", dir)
	assert.Equal(t, "answers.json", key)
}

func TestNewWarnsWhenRerankingWithoutCrossEncoder(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	app, err := New(context.Background(), testConfig(t), logger)
	require.NoError(t, err)
	defer app.Close()

	assert.Contains(t, logs.String(), "level=WARN msg=reranker_degraded")
	assert.Contains(t, logs.String(), "encoder=token_overlap")

	cfg := testConfig(t)
	cfg.RerankerURL = "http://127.0.0.1:1"
	logs.Reset()
	withTEI, err := New(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer withTEI.Close()
	assert.NotContains(t, logs.String(), "reranker_degraded")
}
