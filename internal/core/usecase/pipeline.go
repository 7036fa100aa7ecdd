package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
	"github.com/kirillkom/annual-report-rag/internal/core/ports"
)

type PipelineConfig struct {
	RerankPool int
	RerankTopN int
}

// AnswerPipeline answers one question: analyze, reformulate, resolve the
// company, retrieve, rerank and extract.
type AnswerPipeline struct {
	reformulator *QueryReformulator
	analyzer     *QueryAnalyzer
	catalog      *Catalog
	retriever    *HybridRetriever
	reranker     *Reranker
	extractor    *AnswerExtractor
	cfg          PipelineConfig
	observer     ports.PipelineObserver
	logger       *slog.Logger
}

func NewAnswerPipeline(
	reformulator *QueryReformulator,
	analyzer *QueryAnalyzer,
	catalog *Catalog,
	retriever *HybridRetriever,
	reranker *Reranker,
	extractor *AnswerExtractor,
	cfg PipelineConfig,
	observer ports.PipelineObserver,
	logger *slog.Logger,
) *AnswerPipeline {
	if cfg.RerankPool <= 0 {
		cfg.RerankPool = 50
	}
	if cfg.RerankTopN <= 0 {
		cfg.RerankTopN = 10
	}
	if cfg.RerankTopN > cfg.RerankPool {
		cfg.RerankTopN = cfg.RerankPool
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerPipeline{
		reformulator: reformulator,
		analyzer:     analyzer,
		catalog:      catalog,
		retriever:    retriever,
		reranker:     reranker,
		extractor:    extractor,
		cfg:          cfg,
		observer:     observerOrNoop(observer),
		logger:       logger,
	}
}

// Answer returns the record for a single question. Errors are returned to the
// caller; the batch runner decides how to degrade them.
func (p *AnswerPipeline) Answer(ctx context.Context, question domain.Question) (domain.AnswerRecord, error) {
	kind, err := domain.ParseAnswerKind(string(question.Kind))
	if err != nil {
		return domain.AnswerRecord{}, err
	}

	filter, err := p.resolveFilter(ctx, question.Text)
	if err != nil {
		return domain.AnswerRecord{}, err
	}

	query, err := p.reformulator.Reformulate(ctx, question.Text)
	if err != nil {
		return domain.AnswerRecord{}, fmt.Errorf("reformulate question: %w", err)
	}

	chunks, err := p.retrieveContext(ctx, query, filter)
	if err != nil {
		return domain.AnswerRecord{}, err
	}

	answer, err := p.extractor.Extract(ctx, question.Text, kind, chunks)
	if err != nil {
		return domain.AnswerRecord{}, fmt.Errorf("extract answer: %w", err)
	}

	return domain.AnswerRecord{
		QuestionText: question.Text,
		Kind:         kind,
		Value:        answer.Value,
		References:   answer.References,
	}, nil
}

func (p *AnswerPipeline) resolveFilter(ctx context.Context, question string) (domain.SearchFilter, error) {
	analysis, err := p.analyzer.Analyze(ctx, question)
	if err != nil {
		return domain.SearchFilter{}, fmt.Errorf("analyze question: %w", err)
	}

	match := p.catalog.Match(analysis.ExtractedCompany)
	p.logger.Debug("company_resolution",
		"extracted", analysis.ExtractedCompany,
		"resolved", match.Name,
		"score", match.Score,
		"exact", match.Exact,
		"matched", match.OK,
	)
	if !match.OK {
		return domain.SearchFilter{}, nil
	}
	return domain.SearchFilter{Company: match.Name}, nil
}

func (p *AnswerPipeline) retrieveContext(ctx context.Context, query string, filter domain.SearchFilter) ([]domain.Chunk, error) {
	fused, err := p.retriever.Retrieve(ctx, query, filter)
	if err != nil {
		return nil, fmt.Errorf("retrieve candidates: %w", err)
	}

	reranked, err := p.reranker.Rerank(ctx, fused, query, p.cfg.RerankPool)
	if err != nil {
		return nil, fmt.Errorf("rerank candidates: %w", err)
	}
	reranked = trimCandidates(reranked, p.cfg.RerankTopN)

	chunks := make([]domain.Chunk, 0, len(reranked))
	for _, c := range reranked {
		chunks = append(chunks, c.Chunk)
	}

	p.observer.ObserveRetrieval(len(fused), len(chunks))
	p.logger.Info("context_selected",
		"query", query,
		"company", filter.Company,
		"fused", len(fused),
		"chunks", len(chunks),
	)
	return chunks, nil
}

// BatchRunner answers questions in order and never aborts on a single failure.
type BatchRunner struct {
	answerer  ports.QuestionAnswerer
	publisher ports.AnswerPublisher
	observer  ports.PipelineObserver
	logger    *slog.Logger
}

func NewBatchRunner(
	answerer ports.QuestionAnswerer,
	publisher ports.AnswerPublisher,
	observer ports.PipelineObserver,
	logger *slog.Logger,
) *BatchRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchRunner{
		answerer:  answerer,
		publisher: publisher,
		observer:  observerOrNoop(observer),
		logger:    logger,
	}
}

// AnswerAll returns exactly one record per question, in input order. A failed
// question yields "N/A" with no references.
func (b *BatchRunner) AnswerAll(ctx context.Context, questions []domain.Question) []domain.AnswerRecord {
	records := make([]domain.AnswerRecord, 0, len(questions))
	for i, q := range questions {
		if ctx.Err() != nil {
			b.logger.Warn("batch_cancelled", "question_index", i, "error", ctx.Err())
			records = append(records, domain.FailedRecord(q))
			b.observer.ObserveQuestion(statusFailed, 0)
			continue
		}
		records = append(records, b.answerOne(ctx, i, q))
	}
	return records
}

func (b *BatchRunner) answerOne(ctx context.Context, index int, q domain.Question) domain.AnswerRecord {
	started := time.Now()
	record, err := b.answerer.Answer(ctx, q)
	elapsed := time.Since(started)

	if err != nil {
		if violation, ok := domain.AsContractViolation(err); ok {
			b.observer.ObserveContractViolation(violation.Operation)
		}
		b.observer.ObserveQuestion(statusFailed, elapsed)
		b.logger.Error("question_failed",
			"question_index", index,
			"question", q.Text,
			"kind", q.Kind,
			"error", err,
		)
		record = domain.FailedRecord(q)
	} else {
		status := statusAnswered
		if record.Value.IsNA() {
			status = statusNA
		}
		b.observer.ObserveQuestion(status, elapsed)
		b.logger.Info("question_answered",
			"question_index", index,
			"kind", record.Kind,
			"value", record.Value.String(),
			"references", len(record.References),
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	if b.publisher != nil {
		if err := b.publisher.PublishAnswer(ctx, record); err != nil {
			b.logger.Warn("publish_answer_failed", "question_index", index, "error", err)
		}
	}
	return record
}
