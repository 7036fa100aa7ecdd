package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
)

func TestSaveAndOpen(t *testing.T) {
	base := t.TempDir()
	s, err := New(base)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	if err := s.Save(ctx, "runs/submission.json", strings.NewReader(`{"answers":[]}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save(ctx, "runs/submission.json", strings.NewReader(`{"answers":[1]}`)); err != nil {
		t.Fatalf("Save() overwrite error = %v", err)
	}

	rc, err := s.Open(ctx, "runs/submission.json")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	raw, _ := io.ReadAll(rc)
	if string(raw) != `{"answers":[1]}` {
		t.Fatalf("unexpected content %q", raw)
	}

	entries, err := os.ReadDir(filepath.Join(base, "runs"))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files cleaned up, got %d entries", len(entries))
	}
}

func TestPathStaysInsideBase(t *testing.T) {
	base := t.TempDir()
	s, err := New(base)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	path, err := s.Path("../../etc/passwd")
	if err != nil {
		t.Fatalf("Path() error = %v", err)
	}
	if !strings.HasPrefix(path, base) {
		t.Fatalf("path escaped base: %s", path)
	}
	if _, err := s.Path(""); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty key, got %v", err)
	}
}

func TestOpenMissing(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := s.Open(context.Background(), "absent.json"); !domain.IsKind(err, domain.ErrArtifactMissing) {
		t.Fatalf("expected ErrArtifactMissing, got %v", err)
	}
}
