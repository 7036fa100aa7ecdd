package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
	"github.com/kirillkom/annual-report-rag/internal/core/ports"
)

const opExtract = "extract_answer"

// AnswerExtractor asks the model for a typed, cited answer over bounded context.
type AnswerExtractor struct {
	generator ports.StructuredGenerator
	logger    *slog.Logger
}

func NewAnswerExtractor(generator ports.StructuredGenerator, logger *slog.Logger) *AnswerExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerExtractor{generator: generator, logger: logger}
}

// Extract returns an answer whose value matches kind (or is N/A) and whose
// references are limited to pages present in chunks.
func (e *AnswerExtractor) Extract(
	ctx context.Context,
	question string,
	kind domain.AnswerKind,
	chunks []domain.Chunk,
) (domain.Answer, error) {
	blocks := SerializeContext(chunks)
	prompt := fmt.Sprintf("Question: %s\nOutput Kind: %s\n\nCONTEXT:\n%s", question, kind, strings.Join(blocks, "\n\n"))

	fields, err := generateObject(ctx, e.generator, ports.StructuredRequest{
		Operation: opExtract,
		System:    extractSystemPrompt,
		Prompt:    prompt,
		Schema:    answerSchema(kind),
	}, "value")
	if err != nil {
		return domain.Answer{}, err
	}

	value, err := domain.ParseValue(kind, fields["value"])
	if err != nil {
		return domain.Answer{}, domain.NewContractViolation(opExtract, string(fields["value"]), err.Error())
	}

	var cited []domain.Reference
	if raw, ok := fields["references"]; ok && strings.TrimSpace(string(raw)) != "null" {
		if err := json.Unmarshal(raw, &cited); err != nil {
			return domain.Answer{}, domain.NewContractViolation(opExtract, string(raw), "references is not a list of {pdf_sha1, page_index}")
		}
	}

	answer := domain.Answer{Value: value, References: []domain.Reference{}}
	if value.IsNA() {
		return answer, nil
	}

	allowed := contextReferences(chunks)
	seen := make(map[domain.Reference]struct{}, len(cited))
	dropped := 0
	for _, ref := range cited {
		ref.PDFSha1 = strings.TrimSpace(ref.PDFSha1)
		if _, ok := allowed[ref]; !ok {
			dropped++
			continue
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		answer.References = append(answer.References, ref)
	}
	if dropped > 0 {
		e.logger.Warn("references_outside_context_dropped", "dropped", dropped, "kept", len(answer.References))
	}
	return answer, nil
}

// SerializeContext renders each chunk as a delimited block exposing filename,
// page index, metadata and content.
func SerializeContext(chunks []domain.Chunk) []string {
	blocks := make([]string, 0, len(chunks))
	for _, c := range chunks {
		var b strings.Builder
		b.WriteString("--- DOCUMENT START ---\n")
		fmt.Fprintf(&b, "Filename: %s\n", c.SourceFilename)
		fmt.Fprintf(&b, "Page Index: %d\n", c.PageIndex)
		fmt.Fprintf(&b, "Metadata: %s\n", formatMetadata(c.Metadata))
		fmt.Fprintf(&b, "Content: %s\n", c.Content)
		b.WriteString("--- DOCUMENT END ---\n")
		blocks = append(blocks, b.String())
	}
	return blocks
}

func formatMetadata(meta map[string]string) string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, meta[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func contextReferences(chunks []domain.Chunk) map[domain.Reference]struct{} {
	out := make(map[domain.Reference]struct{}, len(chunks))
	for _, c := range chunks {
		out[domain.Reference{PDFSha1: c.SourceFilename, PageIndex: c.PageIndex}] = struct{}{}
	}
	return out
}

func answerSchema(kind domain.AnswerKind) map[string]any {
	na := map[string]any{"type": "string", "enum": []string{domain.NotAvailable}}
	var typed map[string]any
	switch kind {
	case domain.KindNumber:
		typed = map[string]any{"type": "number"}
	case domain.KindBoolean:
		typed = map[string]any{"type": "boolean"}
	case domain.KindNames:
		typed = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	default:
		typed = map[string]any{"type": "string"}
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"value": map[string]any{
				"description": "Answer to the question",
				"anyOf":       []any{typed, na},
			},
			"references": map[string]any{
				"type":        "array",
				"description": "List of exact filenames and pages used",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"pdf_sha1":   map[string]any{"type": "string", "description": "PDF filename"},
						"page_index": map[string]any{"type": "integer", "description": "Zero-based physical page number in the PDF file"},
					},
					"required": []string{"pdf_sha1", "page_index"},
				},
			},
		},
		"required": []string{"value", "references"},
	}
}
