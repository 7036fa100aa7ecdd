package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
	"github.com/kirillkom/annual-report-rag/internal/infrastructure/resilience"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrContractViolated):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrArtifactMissing),
		domain.IsKind(err, domain.ErrTemporary),
		resilience.IsCircuitOpen(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
