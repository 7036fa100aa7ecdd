package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
	"github.com/kirillkom/annual-report-rag/internal/core/ports"
)

type Writer struct {
	storage ports.ObjectStorage
}

func NewWriter(storage ports.ObjectStorage) *Writer {
	return &Writer{storage: storage}
}

// Encode renders the submission as indented JSON.
func Encode(sub domain.Submission) ([]byte, error) {
	if sub.Answers == nil {
		sub.Answers = []domain.AnswerRecord{}
	}
	for i := range sub.Answers {
		if sub.Answers[i].References == nil {
			sub.Answers[i].References = []domain.Reference{}
		}
	}
	raw, err := json.MarshalIndent(sub, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal submission: %w", err)
	}
	return append(raw, '\n'), nil
}

// WriteJSON stores the encoded submission under key and returns the bytes
// written so callers can upload them.
func (w *Writer) WriteJSON(ctx context.Context, key string, sub domain.Submission) ([]byte, error) {
	raw, err := Encode(sub)
	if err != nil {
		return nil, err
	}
	if err := w.storage.Save(ctx, key, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("save submission: %w", err)
	}
	return raw, nil
}

// WriteWorkbook stores a review workbook of the submission under key.
func (w *Writer) WriteWorkbook(ctx context.Context, key string, sub domain.Submission) error {
	buf, err := BuildWorkbook(sub)
	if err != nil {
		return err
	}
	if err := w.storage.Save(ctx, key, buf); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
