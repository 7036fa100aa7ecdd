package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
	"github.com/kirillkom/annual-report-rag/internal/core/ports"
)

type RetrievalConfig struct {
	LexicalK     int
	VectorFetchK int
	VectorK      int
	MMRLambda    float64
	Weights      FusionWeights
}

func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		LexicalK:     50,
		VectorFetchK: 1000,
		VectorK:      50,
		MMRLambda:    defaultMMRLambda,
		Weights:      DefaultFusionWeights(),
	}
}

func (c RetrievalConfig) normalize() RetrievalConfig {
	def := DefaultRetrievalConfig()
	if c.LexicalK <= 0 {
		c.LexicalK = def.LexicalK
	}
	if c.VectorK <= 0 {
		c.VectorK = def.VectorK
	}
	if c.VectorFetchK < c.VectorK {
		c.VectorFetchK = def.VectorFetchK
		if c.VectorFetchK < c.VectorK {
			c.VectorFetchK = c.VectorK
		}
	}
	if c.MMRLambda < 0 || c.MMRLambda > 1 {
		c.MMRLambda = def.MMRLambda
	}
	if c.Weights.Lexical < 0 || c.Weights.Semantic < 0 || c.Weights.Lexical+c.Weights.Semantic == 0 {
		c.Weights = def.Weights
	}
	return c
}

// HybridRetriever fuses keyword and embedding rankings into one candidate list.
type HybridRetriever struct {
	lexical  ports.LexicalIndex
	vectorDB ports.VectorIndex
	embedder ports.Embedder
	cfg      RetrievalConfig
	logger   *slog.Logger
}

func NewHybridRetriever(
	lexical ports.LexicalIndex,
	vectorDB ports.VectorIndex,
	embedder ports.Embedder,
	cfg RetrievalConfig,
	logger *slog.Logger,
) *HybridRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridRetriever{
		lexical:  lexical,
		vectorDB: vectorDB,
		embedder: embedder,
		cfg:      cfg.normalize(),
		logger:   logger,
	}
}

// Retrieve runs both rankings, fuses them and enforces the company filter on
// the fused list, since the lexical side cannot filter natively.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string, filter domain.SearchFilter) ([]domain.Candidate, error) {
	lexical := r.lexical.Search(query, r.cfg.LexicalK)

	semantic, err := r.semanticSearch(ctx, query, filter)
	if err != nil {
		return nil, err
	}

	fused := fuseWeighted(lexical, semantic, r.cfg.Weights)
	filtered := filterByCompany(fused, filter)

	r.logger.Debug("hybrid_retrieval",
		"lexical", len(lexical),
		"semantic", len(semantic),
		"fused", len(fused),
		"filtered", len(filtered),
		"company", filter.Company,
	)
	return filtered, nil
}

func (r *HybridRetriever) semanticSearch(ctx context.Context, query string, filter domain.SearchFilter) ([]domain.Candidate, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	queryVector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	pool, err := r.vectorDB.Search(ctx, queryVector, r.cfg.VectorFetchK, filter)
	if err != nil {
		return nil, fmt.Errorf("search vector index: %w", err)
	}
	return selectMMR(queryVector, pool, r.cfg.VectorK, r.cfg.MMRLambda), nil
}
