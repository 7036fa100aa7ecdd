package resilience

import (
	"context"
	"errors"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
)

// ErrorClassification tells the executor whether to try again and whether
// the failure counts against the operation's breaker.
type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

// ClassifyTemporary retries errors marked domain.ErrTemporary. Contract
// violations and invalid input are final and do not count against the breaker.
func ClassifyTemporary(err error) ErrorClassification {
	switch {
	case err == nil,
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, domain.ErrContractViolated),
		errors.Is(err, domain.ErrInvalidInput):
		return ErrorClassification{}
	case errors.Is(err, domain.ErrTemporary):
		return ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return ErrorClassification{RecordFailure: true}
	}
}
