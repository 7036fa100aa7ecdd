package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
)

func TestRerankOrdersByScoreAndTruncates(t *testing.T) {
	in := []domain.Candidate{
		candidate("a.pdf", 0, "A", "unrelated text"),
		candidate("b.pdf", 0, "A", "risk report with risk level"),
		candidate("c.pdf", 0, "A", "risk only"),
	}

	out, err := NewReranker(&encoderFake{}).Rerank(context.Background(), in, "risk report", 2)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(out))
	}
	if out[0].Chunk.SourceFilename != "b.pdf" || out[1].Chunk.SourceFilename != "c.pdf" {
		t.Fatalf("unexpected order: %s, %s", out[0].Chunk.SourceFilename, out[1].Chunk.SourceFilename)
	}
	if out[0].Score < out[1].Score {
		t.Fatalf("expected descending scores")
	}

	keys := map[string]bool{}
	for _, c := range in {
		keys[c.Chunk.Key()] = true
	}
	for _, c := range out {
		if !keys[c.Chunk.Key()] {
			t.Fatalf("output contains chunk not present in input")
		}
	}
}

func TestRerankStableOnTiesAndRepeatable(t *testing.T) {
	in := []domain.Candidate{
		candidate("a.pdf", 0, "A", "same"),
		candidate("b.pdf", 0, "A", "same"),
		candidate("c.pdf", 0, "A", "same"),
	}
	reranker := NewReranker(&encoderFake{})

	first, err := reranker.Rerank(context.Background(), in, "same", 10)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	second, err := reranker.Rerank(context.Background(), in, "same", 10)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	for i := range in {
		if first[i].Chunk.SourceFilename != in[i].Chunk.SourceFilename {
			t.Fatalf("ties must keep input order, got %s at %d", first[i].Chunk.SourceFilename, i)
		}
		if first[i].Chunk.Key() != second[i].Chunk.Key() {
			t.Fatalf("rerank not repeatable at %d", i)
		}
	}
}

func TestRerankHandlesEmptyInputWithoutModelCall(t *testing.T) {
	encoder := &encoderFake{}
	out, err := NewReranker(encoder).Rerank(context.Background(), nil, "risk", 10)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty output, got %d", len(out))
	}
	if encoder.calls != 0 {
		t.Fatalf("expected no model call, got %d", encoder.calls)
	}
}

func TestRerankPropagatesModelFailure(t *testing.T) {
	in := []domain.Candidate{candidate("a.pdf", 0, "A", "x")}
	if _, err := NewReranker(&encoderFake{err: errors.New("boom")}).Rerank(context.Background(), in, "x", 1); err == nil {
		t.Fatalf("expected error")
	}
}
