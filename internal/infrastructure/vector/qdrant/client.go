// Package qdrant stores chunk embeddings in a Qdrant collection over REST.
package qdrant

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
	"github.com/kirillkom/annual-report-rag/internal/infrastructure/resilience"
)

// pointNamespace derives stable point ids from chunk identity so re-adding a
// chunk overwrites the same point.
var pointNamespace = uuid.MustParse("8a2c3f4e-6b1d-5e7a-9c0f-2d4b6a8e1c3f")

// Client is a VectorIndex backed by a Qdrant collection.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	mu sync.Mutex
	// ensuredSize is the vector size the collection was last created for; 0 means unchecked.
	ensuredSize int
}

func New(baseURL, collection string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

func PointID(chunk domain.Chunk) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunk.Key())).String()
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type searchRequest struct {
	Vector      []float32    `json:"vector"`
	Limit       int          `json:"limit"`
	WithPayload bool         `json:"with_payload"`
	WithVector  bool         `json:"with_vector"`
	Filter      *pointFilter `json:"filter,omitempty"`
}

type pointFilter struct {
	Must []fieldMatch `json:"must"`
}

type fieldMatch struct {
	Key   string `json:"key"`
	Match struct {
		Value string `json:"value"`
	} `json:"match"`
}

func companyFilter(filter domain.SearchFilter) *pointFilter {
	if !filter.Active() {
		return nil
	}
	cond := fieldMatch{Key: payloadCompanyKey}
	cond.Match.Value = domain.CompanyKey(filter.Company)
	return &pointFilter{Must: []fieldMatch{cond}}
}

func (c *Client) collectionURL(suffix string) string {
	return c.baseURL + "/collections/" + c.collection + suffix
}

func (c *Client) Add(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return domain.WrapError(domain.ErrInvalidInput, "qdrant add", fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors)))
	}
	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	points := make([]point, len(chunks))
	for i, chunk := range chunks {
		points[i] = point{ID: PointID(chunk), Vector: vectors[i], Payload: chunkPayload(chunk)}
	}
	body := struct {
		Points []point `json:"points"`
	}{Points: points}
	return c.do(ctx, "qdrant.upsert", http.MethodPut, c.collectionURL("/points?wait=true"), body, nil)
}

// Search returns stored vectors with each hit; the reranker uses them for
// diversification.
func (c *Client) Search(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.Candidate, error) {
	req := searchRequest{
		Vector:      queryVector,
		Limit:       limit,
		WithPayload: true,
		WithVector:  true,
		Filter:      companyFilter(filter),
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
			Vector  []float32      `json:"vector"`
		} `json:"result"`
	}
	if err := c.do(ctx, "qdrant.search", http.MethodPost, c.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.Candidate, len(resp.Result))
	for i, hit := range resp.Result {
		out[i] = domain.Candidate{Chunk: payloadChunk(hit.Payload), Score: hit.Score, Vector: hit.Vector}
	}
	return out, nil
}

// Persist is a no-op: upserts are sent with wait=true.
func (c *Client) Persist(context.Context) error {
	return nil
}

// Reload forgets cached collection state so the next write re-checks it.
func (c *Client) Reload(ctx context.Context) error {
	c.mu.Lock()
	c.ensuredSize = 0
	c.mu.Unlock()

	if _, err := c.Exists(ctx); err != nil {
		return fmt.Errorf("qdrant reload: %w", err)
	}
	return nil
}

// Reset drops the collection. The next Add recreates it for the vector size it
// receives.
func (c *Client) Reset(ctx context.Context) error {
	err := c.do(ctx, "qdrant.delete_collection", http.MethodDelete, c.collectionURL(""), nil, nil)
	if err != nil && !hasStatus(err, http.StatusNotFound) {
		return err
	}
	c.mu.Lock()
	c.ensuredSize = 0
	c.mu.Unlock()
	return nil
}

// Exists reports whether the collection is present and holds at least one point.
func (c *Client) Exists(ctx context.Context) (bool, error) {
	var info struct {
		Result struct {
			PointsCount int `json:"points_count"`
		} `json:"result"`
	}
	err := c.do(ctx, "qdrant.collection_info", http.MethodGet, c.collectionURL(""), nil, &info)
	switch {
	case hasStatus(err, http.StatusNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return info.Result.PointsCount > 0, nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.mu.Lock()
	ready := c.ensuredSize == vectorSize
	c.mu.Unlock()
	if ready {
		return nil
	}

	create := map[string]any{"vectors": map[string]any{"size": vectorSize, "distance": "Cosine"}}
	err := c.do(ctx, "qdrant.ensure_collection", http.MethodPut, c.collectionURL(""), create, nil)
	if err != nil && !hasStatus(err, http.StatusConflict) {
		return err
	}

	index := map[string]string{"field_name": payloadCompanyKey, "field_schema": "keyword"}
	if err := c.do(ctx, "qdrant.payload_index", http.MethodPut, c.collectionURL("/index?wait=true"), index, nil); err != nil {
		return err
	}

	c.mu.Lock()
	c.ensuredSize = vectorSize
	c.mu.Unlock()
	return nil
}
