package usecase

import (
	"time"

	"github.com/kirillkom/annual-report-rag/internal/core/ports"
)

const (
	statusAnswered = "answered"
	statusNA       = "not_available"
	statusFailed   = "failed"
)

type noopObserver struct{}

func (noopObserver) ObserveQuestion(string, time.Duration) {}
func (noopObserver) ObserveRetrieval(int, int) {}
func (noopObserver) ObserveContractViolation(string) {}
func (noopObserver) ObserveIndexBatch(string) {}
func (noopObserver) ObserveItemRetry() {}

func observerOrNoop(o ports.PipelineObserver) ports.PipelineObserver {
	if o == nil {
		return noopObserver{}
	}
	return o
}
