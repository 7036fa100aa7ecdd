// Package submission reads question files and produces the answer submission
// artifacts: the JSON file, a review workbook and the upload to the
// evaluation endpoint.
package submission

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
)

// ReadQuestions decodes a JSON list of {text, kind}. Kinds are normalized to
// lower case; unknown kinds are kept and rejected per question later.
func ReadQuestions(r io.Reader) ([]domain.Question, error) {
	var questions []domain.Question
	if err := json.NewDecoder(r).Decode(&questions); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read questions", err)
	}
	for i := range questions {
		questions[i].Kind = domain.AnswerKind(strings.ToLower(strings.TrimSpace(string(questions[i].Kind))))
	}
	return questions, nil
}

func LoadQuestions(path string) ([]domain.Question, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.WrapError(domain.ErrArtifactMissing, "load questions", err)
		}
		return nil, fmt.Errorf("open questions: %w", err)
	}
	defer f.Close()
	return ReadQuestions(f)
}
