package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
	"github.com/kirillkom/annual-report-rag/internal/core/ports"
)

type IndexBuildConfig struct {
	BatchSize       int
	CheckpointEvery int
	ItemRetries     int
}

type buildState int

const (
	stateBuilding buildState = iota
	stateBatchFailed
	stateReloading
	stateRetryingItem
)

func (s buildState) String() string {
	switch s {
	case stateBuilding:
		return "building"
	case stateBatchFailed:
		return "batch_failed"
	case stateReloading:
		return "reloading"
	case stateRetryingItem:
		return "retrying_item"
	default:
		return "unknown"
	}
}

// VectorIndexBuilder embeds every stored chunk into the vector index in
// batches. A failed batch is recovered by persisting, reloading the index and
// retrying its items one at a time; an item that still fails aborts the build.
// The index is reset first, and VectorIndex.Add must be an upsert keyed by
// chunk identity.
type VectorIndexBuilder struct {
	store    ports.ChunkStore
	embedder ports.Embedder
	index    ports.VectorIndex
	cfg      IndexBuildConfig
	observer ports.PipelineObserver
	logger   *slog.Logger
	reclaim  func()
	state    buildState
}

func NewVectorIndexBuilder(
	store ports.ChunkStore,
	embedder ports.Embedder,
	index ports.VectorIndex,
	cfg IndexBuildConfig,
	observer ports.PipelineObserver,
	logger *slog.Logger,
) *VectorIndexBuilder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = 500
	}
	if cfg.ItemRetries <= 0 {
		cfg.ItemRetries = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorIndexBuilder{
		store:    store,
		embedder: embedder,
		index:    index,
		cfg:      cfg,
		observer: observerOrNoop(observer),
		logger:   logger,
		reclaim:  reclaimMemory,
	}
}

// Build returns the number of chunks indexed.
func (b *VectorIndexBuilder) Build(ctx context.Context) (int, error) {
	chunks, err := b.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("load chunks: %w", err)
	}
	if len(chunks) == 0 {
		return 0, domain.WrapError(domain.ErrArtifactMissing, "build index", errors.New("chunk store is empty, run ingest first"))
	}

	// Vectors of chunks dropped by a later ingest must not survive the rebuild.
	if err := b.index.Reset(ctx); err != nil {
		return 0, fmt.Errorf("reset vector index: %w", err)
	}

	b.transition(stateBuilding)
	indexed := 0
	sinceCheckpoint := 0
	for start := 0; start < len(chunks); start += b.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		end := start + b.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		if err := b.addBatch(ctx, batch); err != nil {
			b.observer.ObserveIndexBatch("failed")
			b.logger.Warn("index_batch_failed", "offset", start, "size", len(batch), "error", err)
			if err := b.recoverBatch(ctx, batch); err != nil {
				return indexed, err
			}
		} else {
			b.observer.ObserveIndexBatch("ok")
		}

		indexed += len(batch)
		sinceCheckpoint += len(batch)
		b.reclaim()

		if sinceCheckpoint >= b.cfg.CheckpointEvery {
			if err := b.index.Persist(ctx); err != nil {
				return indexed, fmt.Errorf("checkpoint vector index: %w", err)
			}
			sinceCheckpoint = 0
			b.logger.Info("index_checkpoint", "indexed", indexed, "total", len(chunks))
		}
	}

	if err := b.index.Persist(ctx); err != nil {
		return indexed, fmt.Errorf("persist vector index: %w", err)
	}
	b.logger.Info("index_built", "indexed", indexed)
	return indexed, nil
}

func (b *VectorIndexBuilder) recoverBatch(ctx context.Context, batch []domain.Chunk) error {
	b.transition(stateBatchFailed)
	if err := b.index.Persist(ctx); err != nil {
		return fmt.Errorf("persist after failed batch: %w", err)
	}
	b.reclaim()

	b.transition(stateReloading)
	if err := b.index.Reload(ctx); err != nil {
		return fmt.Errorf("reload vector index: %w", err)
	}

	b.transition(stateRetryingItem)
	for _, chunk := range batch {
		if err := b.retryItem(ctx, chunk); err != nil {
			return err
		}
	}
	b.transition(stateBuilding)
	return nil
}

func (b *VectorIndexBuilder) retryItem(ctx context.Context, chunk domain.Chunk) error {
	var lastErr error
	for attempt := 1; attempt <= b.cfg.ItemRetries; attempt++ {
		b.observer.ObserveItemRetry()
		lastErr = b.addBatch(ctx, []domain.Chunk{chunk})
		if lastErr == nil {
			return nil
		}
		b.logger.Warn("index_item_retry_failed",
			"source", chunk.SourceFilename,
			"page_index", chunk.PageIndex,
			"attempt", attempt,
			"error", lastErr,
		)
	}
	return fmt.Errorf("index chunk %s page %d after %d attempts: %w", chunk.SourceFilename, chunk.PageIndex, b.cfg.ItemRetries, lastErr)
}

func (b *VectorIndexBuilder) addBatch(ctx context.Context, batch []domain.Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}

	vectors, err := b.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(batch) {
		return domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(batch)),
		)
	}

	if err := b.index.Add(ctx, batch, vectors); err != nil {
		return fmt.Errorf("add to vector index: %w", err)
	}
	return nil
}

func (b *VectorIndexBuilder) transition(next buildState) {
	if b.state != next {
		b.logger.Debug("index_state", "from", b.state.String(), "to", next.String())
	}
	b.state = next
}

func reclaimMemory() {
	runtime.GC()
	debug.FreeOSMemory()
}
