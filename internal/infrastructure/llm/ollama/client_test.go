package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
	"github.com/kirillkom/annual-report-rag/internal/core/ports"
	"github.com/kirillkom/annual-report-rag/internal/infrastructure/resilience"
)

func testExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		BreakerEnabled:      false,
	}, nil)
}

func TestGenerateStructuredSendsSchemaAndMessages(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"{\"reformulated_query\":\"revenue\"}"},"done":true}`))
	}))
	defer server.Close()

	gen := NewStructuredGenerator(New(Options{BaseURL: server.URL, GenModel: "gen"}, testExecutor()))
	raw, err := gen.GenerateStructured(context.Background(), ports.StructuredRequest{
		Operation: "reformulate_query",
		System:    "system rules",
		Prompt:    "question?",
		Schema:    map[string]any{"type": "object"},
	})
	if err != nil {
		t.Fatalf("GenerateStructured() error = %v", err)
	}
	if string(raw) != `{"reformulated_query":"revenue"}` {
		t.Fatalf("unexpected raw response %s", raw)
	}
	if captured.Model != "gen" || captured.Stream {
		t.Fatalf("unexpected request %+v", captured)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" || captured.Messages[1].Content != "question?" {
		t.Fatalf("unexpected messages %+v", captured.Messages)
	}
	if format, ok := captured.Format.(map[string]any); !ok || format["type"] != "object" {
		t.Fatalf("expected schema sent as format, got %#v", captured.Format)
	}
	if captured.Options["num_ctx"] != float64(defaultNumCtx) {
		t.Fatalf("expected default num_ctx, got %v", captured.Options["num_ctx"])
	}
}

func TestGenerateStructuredNonJSONIsContractViolation(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"The revenue was 120.5"}}`))
	}))
	defer server.Close()

	gen := NewStructuredGenerator(New(Options{BaseURL: server.URL, GenModel: "gen"}, testExecutor()))
	_, err := gen.GenerateStructured(context.Background(), ports.StructuredRequest{Operation: "extract_answer", Prompt: "q"})

	violation, ok := domain.AsContractViolation(err)
	if !ok {
		t.Fatalf("expected contract violation, got %v", err)
	}
	if violation.Operation != "extract_answer" || !strings.Contains(violation.Raw, "120.5") {
		t.Fatalf("unexpected violation %+v", violation)
	}
	if calls.Load() != 1 {
		t.Fatalf("contract violation must not be retried, got %d calls", calls.Load())
	}
}

func TestEmbedRetriesTemporaryStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "loading model", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2],[0.3,0.4]]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(Options{BaseURL: server.URL, EmbedModel: "embed"}, testExecutor()))
	vectors, err := embedder.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 2 || vectors[1][1] != 0.4 {
		t.Fatalf("unexpected vectors %v", vectors)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected one retry, got %d calls", calls.Load())
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(Options{BaseURL: server.URL, EmbedModel: "embed"}, testExecutor()))
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected bad gateway classified as temporary, got %v", err)
	}
}

func TestEmbedCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.1]]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(Options{BaseURL: server.URL, EmbedModel: "embed"}, nil))
	if _, err := embedder.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestPullModelPullsEachDistinctModel(t *testing.T) {
	var pulled []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		pulled = append(pulled, payload["model"].(string))
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer server.Close()

	client := New(Options{BaseURL: server.URL, GenModel: "gpt-oss:20b", EmbedModel: "qwen3-embedding:0.6b"}, nil)
	if err := client.PullModel(context.Background()); err != nil {
		t.Fatalf("PullModel() error = %v", err)
	}
	if len(pulled) != 2 || pulled[0] != "gpt-oss:20b" {
		t.Fatalf("unexpected pulls %v", pulled)
	}
}

func TestMissingModelIsArtifactMissing(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"model \"embed\" not found, try pulling it first"}`, http.StatusNotFound)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(Options{BaseURL: server.URL, EmbedModel: "embed"}, testExecutor()))
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if !domain.IsKind(err, domain.ErrArtifactMissing) {
		t.Fatalf("expected missing model reported as missing artifact, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("missing model must not be retried, got %d calls", calls.Load())
	}
}

func TestInputOverContextIsInvalidInput(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"the input length exceeds the context length"}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(Options{BaseURL: server.URL, EmbedModel: "embed"}, testExecutor()))
	_, err := embedder.Embed(context.Background(), []string{strings.Repeat("revenue ", 100)})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("oversized input must not be retried, got %d calls", calls.Load())
	}
}
