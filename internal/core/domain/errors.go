package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")
	ErrArtifactMissing  = errors.New("required artifact missing")
	ErrContractViolated = errors.New("structured output contract violated")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ContractViolationError reports a model response that does not conform to the
// schema requested by the caller. Raw keeps the response for diagnostics.
type ContractViolationError struct {
	Operation string
	Raw       string
	Reason    string
}

func (e *ContractViolationError) Error() string {
	raw := strings.TrimSpace(e.Raw)
	if len(raw) > 200 {
		raw = raw[:200] + "..."
	}
	return fmt.Sprintf("%s: %s: %s (raw=%q)", e.Operation, ErrContractViolated, e.Reason, raw)
}

func (e *ContractViolationError) Unwrap() error {
	return ErrContractViolated
}

func NewContractViolation(operation, raw, reason string) error {
	return &ContractViolationError{Operation: operation, Raw: raw, Reason: reason}
}

// AsContractViolation extracts the violation from an error chain.
func AsContractViolation(err error) (*ContractViolationError, bool) {
	var violation *ContractViolationError
	if errors.As(err, &violation) {
		return violation, true
	}
	return nil, false
}
