package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
	"github.com/kirillkom/annual-report-rag/internal/core/ports"
)

// Reranker reorders candidates by cross-encoder relevance to the query.
type Reranker struct {
	encoder ports.CrossEncoder
}

func NewReranker(encoder ports.CrossEncoder) *Reranker {
	return &Reranker{encoder: encoder}
}

// Rerank scores every (query, content) pair, sorts descending and keeps at
// most topN. Ties keep input order. The output is a subset of the input.
func (r *Reranker) Rerank(ctx context.Context, candidates []domain.Candidate, query string, topN int) ([]domain.Candidate, error) {
	if len(candidates) == 0 {
		return []domain.Candidate{}, nil
	}
	if topN <= 0 || topN > len(candidates) {
		topN = len(candidates)
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Chunk.Content
	}

	scores, err := r.encoder.Score(ctx, query, docs)
	if err != nil {
		return nil, fmt.Errorf("cross-encoder score: %w", err)
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("cross-encoder score: got %d scores for %d documents", len(scores), len(candidates))
	}

	out := make([]domain.Candidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		out[i].Score = scores[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out[:topN], nil
}
