// Package tei calls a text-embeddings-inference compatible /rerank endpoint
// hosting a cross-encoder model.
package tei

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
	"github.com/kirillkom/annual-report-rag/internal/infrastructure/resilience"
)

const operation = "reranker.rerank"

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
	// Truncate lets the server cut texts to the model's token limit; chunks
	// are sized in runes and routinely exceed 512 tokens.
	Truncate  bool     `json:"truncate"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// StatusError is a non-2xx response from the reranking service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rerank status %d: %s", e.StatusCode, e.Body)
}

// Score returns one relevance score per document, aligned with docs.
func (c *Client) Score(ctx context.Context, query string, docs []string) ([]float64, error) {
	if len(docs) == 0 {
		return []float64{}, nil
	}
	body, err := json.Marshal(rerankRequest{Model: c.model, Query: query, Texts: docs, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	call := func(ctx context.Context) ([]rerankResult, error) {
		return c.post(ctx, body)
	}
	var results []rerankResult
	if c.executor == nil {
		results, err = call(ctx)
	} else {
		results, err = resilience.Call(ctx, c.executor, operation, call, classify)
	}
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(docs))
	seen := make([]bool, len(docs))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(docs) {
			return nil, domain.WrapError(domain.ErrInvalidInput, operation, fmt.Errorf("result index %d out of range", r.Index))
		}
		scores[r.Index] = r.Score
		seen[r.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, domain.WrapError(domain.ErrInvalidInput, operation, fmt.Errorf("missing score for document %d", i))
		}
	}
	return scores, nil
}

func (c *Client) post(ctx context.Context, body []byte) ([]rerankResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, domain.WrapError(domain.ErrTemporary, operation, statusErr)
		}
		return nil, statusErr
	}

	var out []rerankResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	return out, nil
}

func classify(err error) resilience.ErrorClassification {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode < 500 && statusErr.StatusCode != http.StatusTooManyRequests {
		return resilience.ErrorClassification{}
	}
	return resilience.ClassifyTemporary(err)
}
