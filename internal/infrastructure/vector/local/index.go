// Package local is a flat in-process vector index persisted to SQLite.
package local

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
)

const vectorSchema = `
CREATE TABLE IF NOT EXISTS chunk_vectors (
	chunk_key TEXT PRIMARY KEY,
	source_filename TEXT NOT NULL,
	page_index INTEGER NOT NULL,
	company_name TEXT NOT NULL,
	content TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	vector BLOB NOT NULL
);
`

type entry struct {
	chunk  domain.Chunk
	vector []float32
}

// Index keeps every vector in memory and searches by brute-force cosine
// similarity. Add only touches memory; Persist flushes to the database.
type Index struct {
	db *sql.DB

	mu      sync.RWMutex
	entries map[string]entry
	order   []string
	dirty   map[string]struct{}
}

func NewIndex(ctx context.Context, db *sql.DB) (*Index, error) {
	if _, err := db.ExecContext(ctx, vectorSchema); err != nil {
		return nil, fmt.Errorf("creating vector schema: %w", err)
	}
	return &Index{
		db:      db,
		entries: make(map[string]entry),
		dirty:   make(map[string]struct{}),
	}, nil
}

// Add upserts vectors keyed by chunk identity.
func (x *Index) Add(_ context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return domain.WrapError(domain.ErrInvalidInput, "add vectors", fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors)))
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for i, c := range chunks {
		if len(vectors[i]) == 0 {
			return domain.WrapError(domain.ErrInvalidInput, "add vectors", errors.New("empty vector"))
		}
		key := c.Key()
		if _, ok := x.entries[key]; !ok {
			x.order = append(x.order, key)
		}
		x.entries[key] = entry{chunk: c, vector: vectors[i]}
		x.dirty[key] = struct{}{}
	}
	return nil
}

func (x *Index) Search(_ context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.Candidate, error) {
	if limit <= 0 || len(queryVector) == 0 {
		return []domain.Candidate{}, nil
	}

	x.mu.RLock()
	out := make([]domain.Candidate, 0, len(x.entries))
	for _, key := range x.order {
		e := x.entries[key]
		if !filter.Matches(e.chunk) {
			continue
		}
		out = append(out, domain.Candidate{
			Chunk:  e.chunk,
			Score:  cosine(queryVector, e.vector),
			Vector: e.vector,
		})
	}
	x.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Persist writes entries added since the last flush.
func (x *Index) Persist(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if len(x.dirty) == 0 {
		return nil
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunk_vectors
			(chunk_key, source_filename, page_index, company_name, content, metadata, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for key := range x.dirty {
		e := x.entries[key]
		meta, err := json.Marshal(e.chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			key, e.chunk.SourceFilename, e.chunk.PageIndex, e.chunk.CompanyName, e.chunk.Content,
			string(meta), float32SliceToBytes(e.vector),
		); err != nil {
			return fmt.Errorf("upserting vector: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing vectors: %w", err)
	}
	x.dirty = make(map[string]struct{})
	return nil
}

// Reload replaces the in-memory state with what was last persisted.
func (x *Index) Reload(ctx context.Context) error {
	rows, err := x.db.QueryContext(ctx, `
		SELECT chunk_key, source_filename, page_index, company_name, content, metadata, vector
		FROM chunk_vectors ORDER BY rowid
	`)
	if err != nil {
		return fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]entry)
	order := make([]string, 0)
	for rows.Next() {
		var (
			key, source, company, content, metaJSON string
			page                                    int
			blob                                    []byte
		)
		if err := rows.Scan(&key, &source, &page, &company, &content, &metaJSON, &blob); err != nil {
			return fmt.Errorf("scanning vector: %w", err)
		}
		var meta map[string]string
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return fmt.Errorf("unmarshalling metadata: %w", err)
		}
		entries[key] = entry{
			chunk:  domain.NewChunk(content, source, page, company, meta),
			vector: bytesToFloat32Slice(blob),
		}
		order = append(order, key)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating vectors: %w", err)
	}

	x.mu.Lock()
	x.entries = entries
	x.order = order
	x.dirty = make(map[string]struct{})
	x.mu.Unlock()
	return nil
}

// Reset drops every persisted and in-memory vector.
func (x *Index) Reset(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, err := x.db.ExecContext(ctx, "DELETE FROM chunk_vectors"); err != nil {
		return fmt.Errorf("clearing vectors: %w", err)
	}
	x.entries = make(map[string]entry)
	x.order = nil
	x.dirty = make(map[string]struct{})
	return nil
}

// Exists reports whether a persisted index is available.
func (x *Index) Exists(ctx context.Context) (bool, error) {
	var n int
	if err := x.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunk_vectors").Scan(&n); err != nil {
		return false, fmt.Errorf("counting vectors: %w", err)
	}
	return n > 0, nil
}

// Len returns the number of vectors held in memory.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func float32SliceToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToFloat32Slice(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
