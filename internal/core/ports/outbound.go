package ports

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
)

// ChunkStore persists the chunk collection produced by ingestion.
type ChunkStore interface {
	ReplaceAll(ctx context.Context, chunks []domain.Chunk) error
	List(ctx context.Context) ([]domain.Chunk, error)
}

// LexicalIndex ranks chunks by keyword relevance. It has no filtering capability.
type LexicalIndex interface {
	Search(query string, limit int) []domain.Candidate
}

// VectorIndex stores chunk embeddings and performs filtered similarity search.
// Search returns candidates with their stored vectors so callers can diversify.
type VectorIndex interface {
	Add(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.Candidate, error)
	Persist(ctx context.Context) error
	Reload(ctx context.Context) error
	// Reset removes every stored vector so a rebuild starts from an empty index.
	Reset(ctx context.Context) error
	Exists(ctx context.Context) (bool, error)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// CrossEncoder scores (query, document) pairs jointly. The result is aligned
// with docs.
type CrossEncoder interface {
	Score(ctx context.Context, query string, docs []string) ([]float64, error)
}

// StructuredRequest asks the language model for a JSON object matching Schema.
type StructuredRequest struct {
	Operation string
	System    string
	Prompt    string
	Schema    map[string]any
}

// StructuredGenerator returns the raw JSON object produced by the model.
// A response that is not a JSON object is reported as a contract violation.
type StructuredGenerator interface {
	GenerateStructured(ctx context.Context, req StructuredRequest) (json.RawMessage, error)
}

// ModelPuller makes the configured generation model available locally.
type ModelPuller interface {
	PullModel(ctx context.Context) error
}

// PageExtractor returns the text of each physical page of a document.
type PageExtractor interface {
	ExtractPages(ctx context.Context, path string) ([]string, error)
}

// Chunker splits text into semantically usable chunks.
type Chunker interface {
	Split(text string) []string
}

// ObjectStorage stores run artifacts.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// AnswerPublisher announces finished answer records to downstream consumers.
type AnswerPublisher interface {
	PublishAnswer(ctx context.Context, record domain.AnswerRecord) error
}

// PipelineObserver receives pipeline measurements.
type PipelineObserver interface {
	ObserveQuestion(status string, duration time.Duration)
	ObserveRetrieval(fused, context int)
	ObserveContractViolation(operation string)
	ObserveIndexBatch(status string)
	ObserveItemRetry()
}
