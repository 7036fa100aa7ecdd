// Package pdf reads the text layer of PDF files page by page.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractPages returns one entry per physical page, zero-based. Pages without
// a text layer are returned as empty strings so indexes stay aligned.
func (e *Extractor) ExtractPages(ctx context.Context, path string) (pages []string, err error) {
	if _, statErr := os.Stat(path); statErr != nil {
		if errors.Is(statErr, os.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrArtifactMissing, "extract pages", statErr)
		}
		return nil, fmt.Errorf("stat pdf: %w", statErr)
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = domain.WrapError(domain.ErrInvalidInput, "extract pages", fmt.Errorf("malformed pdf %s: %v", path, r))
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract pages", fmt.Errorf("open pdf: %w", err))
	}
	defer f.Close()

	total := reader.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i-1, err)
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	return pages, nil
}
