package ports

import (
	"context"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
)

// QuestionAnswerer is the inbound contract for answering a single question.
type QuestionAnswerer interface {
	Answer(ctx context.Context, question domain.Question) (domain.AnswerRecord, error)
}

// BatchAnswerer answers an ordered batch, never failing on a single question.
type BatchAnswerer interface {
	AnswerAll(ctx context.Context, questions []domain.Question) []domain.AnswerRecord
}

// CorpusIngestor converts source PDFs into persisted chunks.
type CorpusIngestor interface {
	IngestDirectory(ctx context.Context, dir string) (int, error)
}

// IndexBuilder embeds persisted chunks into the vector index.
type IndexBuilder interface {
	Build(ctx context.Context) (int, error)
}
