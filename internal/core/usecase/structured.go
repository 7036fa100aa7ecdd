package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
	"github.com/kirillkom/annual-report-rag/internal/core/ports"
)

// generateObject performs a structured call and checks that the response is a
// JSON object carrying every required key. Any mismatch is a contract violation.
func generateObject(
	ctx context.Context,
	generator ports.StructuredGenerator,
	req ports.StructuredRequest,
	required ...string,
) (map[string]json.RawMessage, error) {
	raw, err := generator.GenerateStructured(ctx, req)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, domain.NewContractViolation(req.Operation, string(raw), "response is not a JSON object")
	}
	for _, key := range required {
		value, ok := fields[key]
		if !ok || bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			return nil, domain.NewContractViolation(req.Operation, string(raw), fmt.Sprintf("missing field %q", key))
		}
	}
	return fields, nil
}

func stringField(operation string, fields map[string]json.RawMessage, key string) (string, error) {
	var out string
	if err := json.Unmarshal(fields[key], &out); err != nil {
		return "", domain.NewContractViolation(operation, string(fields[key]), fmt.Sprintf("field %q is not a string", key))
	}
	return out, nil
}

func stringSchema(fields map[string]string) map[string]any {
	props := make(map[string]any, len(fields))
	required := make([]string, 0, len(fields))
	for name, description := range fields {
		props[name] = map[string]any{"type": "string", "description": description}
		required = append(required, name)
	}
	sort.Strings(required)
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}
