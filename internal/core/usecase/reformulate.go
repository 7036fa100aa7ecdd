package usecase

import (
	"context"
	"strings"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
	"github.com/kirillkom/annual-report-rag/internal/core/ports"
)

const (
	opReformulate = "reformulate_query"
	opAnalyze     = "analyze_query"
)

// QueryReformulator rewrites a raw question into a retrieval-oriented query.
// There is no fallback to the raw question: a non-conforming model response
// fails the question.
type QueryReformulator struct {
	generator ports.StructuredGenerator
}

func NewQueryReformulator(generator ports.StructuredGenerator) *QueryReformulator {
	return &QueryReformulator{generator: generator}
}

func (r *QueryReformulator) Reformulate(ctx context.Context, question string) (string, error) {
	fields, err := generateObject(ctx, r.generator, ports.StructuredRequest{
		Operation: opReformulate,
		Prompt:    reformulatePrompt + "\n" + question,
		Schema: stringSchema(map[string]string{
			"reformulated_query": "Reformulated query",
		}),
	}, "reformulated_query")
	if err != nil {
		return "", err
	}

	query, err := stringField(opReformulate, fields, "reformulated_query")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(query), nil
}

// QueryAnalyzer extracts the company mentioned in a question.
type QueryAnalyzer struct {
	generator ports.StructuredGenerator
}

func NewQueryAnalyzer(generator ports.StructuredGenerator) *QueryAnalyzer {
	return &QueryAnalyzer{generator: generator}
}

func (a *QueryAnalyzer) Analyze(ctx context.Context, question string) (domain.QueryAnalysis, error) {
	fields, err := generateObject(ctx, a.generator, ports.StructuredRequest{
		Operation: opAnalyze,
		Prompt:    analyzePrompt + question,
		Schema: stringSchema(map[string]string{
			"extracted_company": "Company name mentioned in the question. Return empty string if none.",
			"search_query":      "Refined search query for semantic search",
		}),
	}, "extracted_company", "search_query")
	if err != nil {
		return domain.QueryAnalysis{}, err
	}

	company, err := stringField(opAnalyze, fields, "extracted_company")
	if err != nil {
		return domain.QueryAnalysis{}, err
	}
	searchQuery, err := stringField(opAnalyze, fields, "search_query")
	if err != nil {
		return domain.QueryAnalysis{}, err
	}
	return domain.QueryAnalysis{
		ExtractedCompany: strings.TrimSpace(company),
		SearchQuery:      strings.TrimSpace(searchQuery),
	}, nil
}
