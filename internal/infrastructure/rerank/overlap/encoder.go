// Package overlap scores documents by query token coverage. It is the
// cross-encoder used when no reranking service is configured.
package overlap

import (
	"context"

	"github.com/kirillkom/annual-report-rag/internal/infrastructure/lexical/bm25"
)

type Encoder struct{}

func New() *Encoder { return &Encoder{} }

// Score returns, per document, the share of distinct query tokens it contains
// plus a small bonus for adjacent query token pairs found in order.
func (e *Encoder) Score(ctx context.Context, query string, docs []string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryTokens := bm25.Tokenize(query)
	querySet := toTokenSet(queryTokens)
	queryPairs := toPairSet(queryTokens)

	out := make([]float64, len(docs))
	for i, doc := range docs {
		docTokens := bm25.Tokenize(doc)
		out[i] = 0.8*coverage(querySet, toTokenSet(docTokens)) + 0.2*coverage(queryPairs, toPairSet(docTokens))
	}
	return out, nil
}

func coverage(query, doc map[string]struct{}) float64 {
	if len(query) == 0 || len(doc) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := doc[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func toTokenSet(tokens []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		out[t] = struct{}{}
	}
	return out
}

func toPairSet(tokens []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens))
	for i := 1; i < len(tokens); i++ {
		out[tokens[i-1]+" "+tokens[i]] = struct{}{}
	}
	return out
}
