package assistant

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          time.Minute,
	})

	for i := 0; i < 2; i++ {
		cb.Failure()
	}
	if got := cb.State(); got != CircuitClosed {
		t.Fatalf("after 2 failures state = %v, want closed", got)
	}

	cb.Failure()
	if got := cb.State(); got != CircuitOpen {
		t.Fatalf("after 3 failures state = %v, want open", got)
	}
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Allow() while open = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          time.Millisecond,
	})

	cb.Failure()
	if got := cb.State(); got != CircuitOpen {
		t.Fatalf("state = %v, want open", got)
	}

	time.Sleep(5 * time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() after timeout = %v, want nil (half-open probe)", err)
	}
	if got := cb.State(); got != CircuitHalfOpen {
		t.Fatalf("state = %v, want half-open", got)
	}

	cb.Success()
	if got := cb.State(); got != CircuitHalfOpen {
		t.Fatalf("after 1 success state = %v, want half-open", got)
	}
	cb.Success()
	if got := cb.State(); got != CircuitClosed {
		t.Fatalf("after 2 successes state = %v, want closed", got)
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          time.Millisecond,
	})

	cb.Failure()
	time.Sleep(5 * time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() = %v, want nil", err)
	}

	cb.Failure()
	if got := cb.State(); got != CircuitOpen {
		t.Fatalf("state after half-open failure = %v, want open", got)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2})

	cb.Failure()
	cb.Success()
	cb.Failure()
	if got := cb.State(); got != CircuitClosed {
		t.Fatalf("state = %v, want closed (success should reset the count)", got)
	}
}

func TestCircuitState_String(t *testing.T) {
	tests := []struct {
		state CircuitState
		want  string
	}{
		{CircuitClosed, "closed"},
		{CircuitOpen, "open"},
		{CircuitHalfOpen, "half-open"},
		{CircuitState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
