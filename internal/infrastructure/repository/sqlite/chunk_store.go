package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
)

const chunkSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_filename TEXT NOT NULL,
	page_index INTEGER NOT NULL,
	company_name TEXT NOT NULL,
	content TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_chunks_company ON chunks(company_name);
`

// ChunkStore is the default ChunkStore. Insertion order is the list order.
type ChunkStore struct {
	db *sql.DB
}

// NewChunkStore ensures the chunk table exists.
func NewChunkStore(ctx context.Context, db *sql.DB) (*ChunkStore, error) {
	if _, err := db.ExecContext(ctx, chunkSchema); err != nil {
		return nil, fmt.Errorf("creating chunk schema: %w", err)
	}
	return &ChunkStore{db: db}, nil
}

func (s *ChunkStore) ReplaceAll(ctx context.Context, chunks []domain.Chunk) error {
	for _, c := range chunks {
		if err := c.Validate(); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}
	// Restart ids so a rebuilt collection lists from 1 again.
	if _, err := tx.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name = 'chunks'"); err != nil {
		return fmt.Errorf("resetting chunk ids: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (source_filename, page_index, company_name, content, metadata)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, c.SourceFilename, c.PageIndex, c.CompanyName, c.Content, string(meta)); err != nil {
			return fmt.Errorf("inserting chunk: %w", err)
		}
	}
	return tx.Commit()
}

func (s *ChunkStore) List(ctx context.Context) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_filename, page_index, company_name, content, metadata
		FROM chunks ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var out []domain.Chunk
	for rows.Next() {
		var (
			source, company, content, metaJSON string
			page                               int
		)
		if err := rows.Scan(&source, &page, &company, &content, &metaJSON); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		var meta map[string]string
		if metaJSON != "" {
			if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
				return nil, fmt.Errorf("unmarshalling metadata: %w", err)
			}
		}
		out = append(out, domain.NewChunk(content, source, page, company, meta))
	}
	return out, rows.Err()
}

// Count returns the number of stored chunks.
func (s *ChunkStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}
