package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
	"github.com/kirillkom/annual-report-rag/internal/core/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// generatorFake answers structured requests by operation name.
type generatorFake struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	respond   func(req ports.StructuredRequest) (string, error)
	requests  []ports.StructuredRequest
}

func (f *generatorFake) GenerateStructured(_ context.Context, req ports.StructuredRequest) (json.RawMessage, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.respond != nil {
		raw, err := f.respond(req)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(raw), nil
	}
	if err := f.errs[req.Operation]; err != nil {
		return nil, err
	}
	raw, ok := f.responses[req.Operation]
	if !ok {
		return nil, errors.New("unexpected operation " + req.Operation)
	}
	return json.RawMessage(raw), nil
}

func (f *generatorFake) lastRequest(operation string) (ports.StructuredRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].Operation == operation {
			return f.requests[i], true
		}
	}
	return ports.StructuredRequest{}, false
}

type lexicalFake struct {
	results []domain.Candidate
	queries []string
}

func (f *lexicalFake) Search(query string, limit int) []domain.Candidate {
	f.queries = append(f.queries, query)
	if strings.TrimSpace(query) == "" {
		return nil
	}
	return trimCandidates(f.results, limit)
}

// vectorIndexFake filters server-side by company, like the real indexes.
type vectorIndexFake struct {
	stored   []domain.Candidate
	filters  []domain.SearchFilter
	searchFn func() error

	added     []domain.Chunk
	addErr    func(chunks []domain.Chunk) error
	persisted int
	reloaded  int
	resets    int
	exists    bool
}

func (f *vectorIndexFake) Add(_ context.Context, chunks []domain.Chunk, _ [][]float32) error {
	if f.addErr != nil {
		if err := f.addErr(chunks); err != nil {
			return err
		}
	}
	f.added = append(f.added, chunks...)
	return nil
}

func (f *vectorIndexFake) Search(_ context.Context, _ []float32, limit int, filter domain.SearchFilter) ([]domain.Candidate, error) {
	f.filters = append(f.filters, filter)
	if f.searchFn != nil {
		if err := f.searchFn(); err != nil {
			return nil, err
		}
	}
	out := make([]domain.Candidate, 0, len(f.stored))
	for _, c := range f.stored {
		if filter.Matches(c.Chunk) {
			out = append(out, c)
		}
	}
	return trimCandidates(out, limit), nil
}

func (f *vectorIndexFake) Persist(context.Context) error {
	f.persisted++
	return nil
}

func (f *vectorIndexFake) Reload(context.Context) error {
	f.reloaded++
	return nil
}

func (f *vectorIndexFake) Reset(context.Context) error {
	f.resets++
	f.added = nil
	f.stored = nil
	return nil
}

func (f *vectorIndexFake) Exists(context.Context) (bool, error) { return f.exists, nil }

type embedderFake struct {
	vector  []float32
	err     error
	calls   int
	batches [][]string
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, float32(i)}
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

// encoderFake scores a document by how many query words it contains.
type encoderFake struct {
	calls int
	err   error
}

func (f *encoderFake) Score(_ context.Context, query string, docs []string) ([]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	words := strings.Fields(strings.ToLower(query))
	out := make([]float64, len(docs))
	for i, doc := range docs {
		lower := strings.ToLower(doc)
		for _, w := range words {
			if strings.Contains(lower, w) {
				out[i]++
			}
		}
	}
	return out, nil
}

type chunkStoreFake struct {
	chunks   []domain.Chunk
	listErr  error
	replaced [][]domain.Chunk
}

func (f *chunkStoreFake) ReplaceAll(_ context.Context, chunks []domain.Chunk) error {
	f.replaced = append(f.replaced, chunks)
	f.chunks = chunks
	return nil
}

func (f *chunkStoreFake) List(context.Context) ([]domain.Chunk, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.chunks, nil
}

type observerFake struct {
	mu         sync.Mutex
	questions  map[string]int
	violations map[string]int
	batches    map[string]int
	retries    int
	retrievals int
}

func newObserverFake() *observerFake {
	return &observerFake{
		questions:  map[string]int{},
		violations: map[string]int{},
		batches:    map[string]int{},
	}
}

func (o *observerFake) ObserveQuestion(status string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.questions[status]++
}

func (o *observerFake) ObserveRetrieval(int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retrievals++
}

func (o *observerFake) ObserveContractViolation(operation string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.violations[operation]++
}

func (o *observerFake) ObserveIndexBatch(status string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.batches[status]++
}

func (o *observerFake) ObserveItemRetry() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retries++
}

func candidate(source string, page int, company, content string) domain.Candidate {
	return domain.Candidate{Chunk: domain.NewChunk(content, source, page, company, nil)}
}
