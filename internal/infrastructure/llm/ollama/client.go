package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
	"github.com/kirillkom/annual-report-rag/internal/core/ports"
	"github.com/kirillkom/annual-report-rag/internal/infrastructure/resilience"
)

const (
	defaultNumCtx  = 16384
	defaultTimeout = 10 * time.Minute
)

type Options struct {
	BaseURL    string
	GenModel   string
	EmbedModel string
	NumCtx     int
	Timeout    time.Duration
	// RequestsPerSecond <= 0 disables client-side throttling.
	RequestsPerSecond float64
}

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	numCtx     int
	httpClient *http.Client
	executor   *resilience.Executor
	limiter    *rate.Limiter
}

func New(opts Options, executor *resilience.Executor) *Client {
	if opts.NumCtx <= 0 {
		opts.NumCtx = defaultNumCtx
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		genModel:   opts.GenModel,
		embedModel: opts.EmbedModel,
		numCtx:     opts.NumCtx,
		httpClient: &http.Client{Timeout: opts.Timeout},
		executor:   executor,
		limiter:    limiter,
	}
}

// StructuredGenerator binds chat completions to a JSON schema via the
// "format" field.
type StructuredGenerator struct {
	client *Client
}

func NewStructuredGenerator(client *Client) *StructuredGenerator {
	return &StructuredGenerator{client: client}
}

func (g *StructuredGenerator) GenerateStructured(ctx context.Context, req ports.StructuredRequest) (json.RawMessage, error) {
	operation := req.Operation
	if operation == "" {
		operation = "chat"
	}

	payload := chatRequest{
		Model:    g.client.genModel,
		Messages: buildChatMessages(req),
		Stream:   false,
		Format:   req.Schema,
		Options: map[string]any{
			"temperature": 0,
			"num_ctx":     g.client.numCtx,
		},
	}

	var response chatResponse
	if err := g.client.postJSON(ctx, "/api/chat", payload, &response, operation); err != nil {
		return nil, err
	}

	content := strings.TrimSpace(response.Message.Content)
	if !json.Valid([]byte(content)) || !strings.HasPrefix(content, "{") {
		return nil, domain.NewContractViolation(operation, content, "response is not a JSON object")
	}
	return json.RawMessage(content), nil
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d embeddings for %d inputs", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// PullModel downloads the generation and embedding models if they are missing.
func (c *Client) PullModel(ctx context.Context) error {
	for _, model := range uniqueModels(c.genModel, c.embedModel) {
		var response struct {
			Status string `json:"status"`
		}
		request := map[string]any{"model": model, "stream": false}
		if err := c.postJSON(ctx, "/api/pull", request, &response, "pull"); err != nil {
			return fmt.Errorf("pull model %s: %w", model, err)
		}
		if response.Status != "success" {
			return fmt.Errorf("pull model %s: unexpected status %q", model, response.Status)
		}
	}
	return nil
}

func uniqueModels(models ...string) []string {
	out := make([]string, 0, len(models))
	seen := map[string]bool{}
	for _, m := range models {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}
