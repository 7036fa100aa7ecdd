package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
	"github.com/kirillkom/annual-report-rag/internal/infrastructure/resilience"
)

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("ollama %s: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("ollama %s: %s: %s", e.Operation, e.Status, body)
}

// modelMissing reports Ollama's 404 for a model that has not been pulled.
func (e *HTTPStatusError) modelMissing() bool {
	return e.StatusCode == http.StatusNotFound && strings.Contains(strings.ToLower(e.Body), "not found")
}

// inputTooLong reports a prompt or embedding input over the model context.
func (e *HTTPStatusError) inputTooLong() bool {
	body := strings.ToLower(e.Body)
	return strings.Contains(body, "context length") || strings.Contains(body, "input length")
}

var (
	retryRecord   = resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	retryNoRecord = resilience.ErrorClassification{Retryable: true}
	failRecord    = resilience.ErrorClassification{RecordFailure: true}
	failSilently  = resilience.ErrorClassification{}
)

func classifyOllamaError(err error) resilience.ErrorClassification {
	var statusErr *HTTPStatusError
	var netErr net.Error
	var syntaxErr *json.SyntaxError

	switch {
	case err == nil:
		return failSilently
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return failSilently
	case domain.IsKind(err, domain.ErrContractViolated):
		return failSilently
	case errors.As(err, &statusErr):
		switch {
		case statusErr.modelMissing(), statusErr.inputTooLong():
			return failSilently
		case retryableStatus(statusErr.StatusCode):
			return retryRecord
		default:
			return failSilently
		}
	case errors.As(err, &netErr):
		return retryRecord
	case errors.As(err, &syntaxErr):
		// A truncated stream from an overloaded server; the next attempt usually decodes.
		return retryNoRecord
	default:
		return failRecord
	}
}

// domainError maps a final client error onto the domain kinds callers
// branch on.
func domainError(operation string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.modelMissing():
			return domain.WrapError(domain.ErrArtifactMissing, operation, fmt.Errorf("%w (run setup to pull models)", err))
		case statusErr.inputTooLong():
			return domain.WrapError(domain.ErrInvalidInput, operation, err)
		}
	}

	if classifyOllamaError(err).Retryable || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
}
