package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
	"github.com/kirillkom/annual-report-rag/internal/core/ports"
)

const (
	opCompanyName  = "extract_company_name"
	companySnippet = 2000
	pdfFileSuffix  = ".pdf"
)

// IngestCorpusUseCase turns a directory of annual-report PDFs into the
// persisted chunk collection.
type IngestCorpusUseCase struct {
	store     ports.ChunkStore
	extractor ports.PageExtractor
	chunker   ports.Chunker
	generator ports.StructuredGenerator
	logger    *slog.Logger
}

func NewIngestCorpusUseCase(
	store ports.ChunkStore,
	extractor ports.PageExtractor,
	chunker ports.Chunker,
	generator ports.StructuredGenerator,
	logger *slog.Logger,
) *IngestCorpusUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestCorpusUseCase{
		store:     store,
		extractor: extractor,
		chunker:   chunker,
		generator: generator,
		logger:    logger,
	}
}

// IngestDirectory replaces the stored chunks with those of every PDF in dir.
// Unreadable files are logged and skipped.
func (uc *IngestCorpusUseCase) IngestDirectory(ctx context.Context, dir string) (int, error) {
	paths, err := listPDFs(dir)
	if err != nil {
		return 0, err
	}
	uc.logger.Info("ingest_started", "dir", dir, "files", len(paths))

	chunks := make([]domain.Chunk, 0)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		fileChunks, err := uc.ingestFile(ctx, path)
		if err != nil {
			uc.logger.Error("ingest_file_failed", "file", filepath.Base(path), "error", err)
			continue
		}
		chunks = append(chunks, fileChunks...)
	}

	if len(chunks) == 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "ingest directory", fmt.Errorf("no chunks produced from %s", dir))
	}
	if err := uc.store.ReplaceAll(ctx, chunks); err != nil {
		return 0, fmt.Errorf("save chunks: %w", err)
	}
	uc.logger.Info("ingest_finished", "chunks", len(chunks))
	return len(chunks), nil
}

func (uc *IngestCorpusUseCase) ingestFile(ctx context.Context, path string) ([]domain.Chunk, error) {
	pages, err := uc.extractor.ExtractPages(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("extract pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract pages", errors.New("document has no pages"))
	}

	filename := filepath.Base(path)
	company := uc.companyName(ctx, filename, pages)

	chunks := make([]domain.Chunk, 0, len(pages))
	for pageIndex, text := range pages {
		for _, piece := range uc.chunker.Split(text) {
			if strings.TrimSpace(piece) == "" {
				continue
			}
			chunks = append(chunks, domain.NewChunk(piece, filename, pageIndex, company, nil))
		}
	}
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero chunks"))
	}

	uc.logger.Info("file_ingested", "file", filename, "pages", len(pages), "chunks", len(chunks), "company", company)
	return chunks, nil
}

// companyName asks the model for the owning company using the opening text of
// the document. Any failure yields domain.UnknownCompany.
func (uc *IngestCorpusUseCase) companyName(ctx context.Context, filename string, pages []string) string {
	snippet := openingText(pages, companySnippet)
	if strings.TrimSpace(snippet) == "" {
		return domain.UnknownCompany
	}

	fields, err := generateObject(ctx, uc.generator, ports.StructuredRequest{
		Operation: opCompanyName,
		Prompt:    companyNamePrompt + snippet,
		Schema: stringSchema(map[string]string{
			"company_name": "The exact name of the company this annual report belongs to, if there is no name, return 'Unknown'",
		}),
	}, "company_name")
	if err == nil {
		var name string
		name, err = stringField(opCompanyName, fields, "company_name")
		if err == nil && strings.TrimSpace(name) != "" {
			return strings.TrimSpace(name)
		}
	}
	uc.logger.Warn("company_name_extraction_failed", "file", filename, "error", err)
	return domain.UnknownCompany
}

func openingText(pages []string, limit int) string {
	var b strings.Builder
	for _, page := range pages {
		b.WriteString(page)
		b.WriteString("\n")
		if b.Len() >= limit*4 {
			break
		}
	}
	runes := []rune(b.String())
	if len(runes) > limit {
		runes = runes[:limit]
	}
	return string(runes)
}

func listPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrArtifactMissing, "list pdfs", err)
		}
		return nil, fmt.Errorf("read pdf dir: %w", err)
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), pdfFileSuffix) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
