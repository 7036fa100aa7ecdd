package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
)

func retryOnlyExecutor(attempts int) *Executor {
	return NewExecutor(Config{
		RetryMaxAttempts:    attempts,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	}, nil)
}

func TestExecuteRetryPolicy(t *testing.T) {
	errOverloaded := domain.WrapError(domain.ErrTemporary, "generate", errors.New("503 model busy"))
	errBadSchema := domain.NewContractViolation("extract_answer", "{}", "missing value")

	cases := []struct {
		name         string
		failures     []error
		wantErr      error
		wantAttempts int
	}{
		{name: "recovers after temporary failures", failures: []error{errOverloaded, errOverloaded}, wantAttempts: 3},
		{name: "gives up after max attempts", failures: []error{errOverloaded, errOverloaded, errOverloaded, errOverloaded}, wantErr: domain.ErrTemporary, wantAttempts: 3},
		{name: "contract violation is final", failures: []error{errBadSchema}, wantErr: domain.ErrContractViolated, wantAttempts: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			attempts := 0
			err := retryOnlyExecutor(3).Execute(context.Background(), "ollama.generate", func(context.Context) error {
				attempts++
				if attempts <= len(tc.failures) {
					return tc.failures[attempts-1]
				}
				return nil
			}, ClassifyTemporary)

			if tc.wantErr == nil && err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if attempts != tc.wantAttempts {
				t.Fatalf("expected %d attempts, got %d", tc.wantAttempts, attempts)
			}
		})
	}
}

func TestExecuteStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := NewExecutor(Config{
		RetryMaxAttempts:    5,
		RetryInitialBackoff: time.Hour,
		BreakerEnabled:      false,
	}, nil).Execute(ctx, "ollama.embed", func(context.Context) error {
		attempts++
		cancel()
		return domain.WrapError(domain.ErrTemporary, "embed", errors.New("connection reset"))
	}, ClassifyTemporary)

	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected last call error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected no retry after cancellation, got %d attempts", attempts)
	}
}

func TestBackoffGrowsToCeiling(t *testing.T) {
	b := newBackoff(Config{RetryInitialBackoff: 500 * time.Millisecond, RetryMaxBackoff: 2 * time.Second, RetryMultiplier: 2})
	want := []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second, 2 * time.Second}
	for i, w := range want {
		if got := b.next(); got != w {
			t.Fatalf("delay %d = %s, want %s", i, got, w)
		}
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	}, nil)

	errTemp := errors.New("temporary")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: true,
		}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errTemp
		}, classifier)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected open circuit reported as temporary, got %v", err)
	}
}

func TestCallReturnsValueAfterRetry(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		BreakerEnabled:      false,
	}, nil)

	attempts := 0
	got, err := Call(context.Background(), exec, "embed", func(context.Context) (int, error) {
		attempts++
		if attempts == 1 {
			return 0, domain.WrapError(domain.ErrTemporary, "embed", errors.New("503"))
		}
		return 42, nil
	}, ClassifyTemporary)
	if err != nil || got != 42 {
		t.Fatalf("Call() = %d, %v", got, err)
	}
}

func TestClassifyTemporary(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorClassification
	}{
		{name: "temporary", err: domain.WrapError(domain.ErrTemporary, "op", errors.New("x")), want: ErrorClassification{Retryable: true, RecordFailure: true}},
		{name: "contract", err: domain.NewContractViolation("op", "{}", "missing"), want: ErrorClassification{}},
		{name: "invalid", err: domain.WrapError(domain.ErrInvalidInput, "op", errors.New("x")), want: ErrorClassification{}},
		{name: "canceled", err: context.Canceled, want: ErrorClassification{}},
		{name: "other", err: errors.New("boom"), want: ErrorClassification{RecordFailure: true}},
	}
	for _, tc := range cases {
		if got := ClassifyTemporary(tc.err); got != tc.want {
			t.Fatalf("%s: got %+v, want %+v", tc.name, got, tc.want)
		}
	}
}

func TestConfigNormalizeFillsDefaults(t *testing.T) {
	got := Config{RetryInitialBackoff: 2 * time.Second, RetryMaxBackoff: time.Second}.normalize()
	def := DefaultConfig()

	if got.RetryMaxAttempts != def.RetryMaxAttempts {
		t.Fatalf("expected default attempts %d, got %d", def.RetryMaxAttempts, got.RetryMaxAttempts)
	}
	if got.RetryMaxBackoff != 2*time.Second {
		t.Fatalf("max backoff must not be below initial backoff, got %s", got.RetryMaxBackoff)
	}
	if got.BreakerFailureRatio != def.BreakerFailureRatio || got.BreakerHalfOpenMaxCalls != def.BreakerHalfOpenMaxCalls {
		t.Fatalf("expected breaker defaults, got %+v", got)
	}
}
