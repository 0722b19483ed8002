package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"toolflow/pkg/tool/toolerrors"
)

func TestShouldRetry_NilError(t *testing.T) {
	if ShouldRetry(nil) {
		t.Error("Expected false for nil error")
	}
}

func TestShouldRetry_ContextCanceled(t *testing.T) {
	if ShouldRetry(context.Canceled) {
		t.Error("Expected false for context.Canceled")
	}
}

func TestShouldRetry_TransportError(t *testing.T) {
	err := toolerrors.Classify("search_particle", errors.New("connection reset by peer"))
	if !ShouldRetry(err) {
		t.Error("Expected true for transport error")
	}
}

func TestShouldRetry_DomainError(t *testing.T) {
	err := &toolerrors.Error{Type: toolerrors.TypeDomain, Message: "particle not found", Retryable: false}
	if ShouldRetry(err) {
		t.Error("Expected false for domain error")
	}
}

func TestShouldRetry_BreakerOpen(t *testing.T) {
	if ShouldRetry(toolerrors.NewBreakerOpen("search_particle")) {
		t.Error("Expected false for breaker-open error")
	}
}

func TestShouldRetry_WrappedDomainError(t *testing.T) {
	inner := &toolerrors.Error{Type: toolerrors.TypeDomain, Message: "bad args", Retryable: false}
	err := fmt.Errorf("step failed: %w", inner)
	if ShouldRetry(err) {
		t.Error("Expected false for wrapped domain error")
	}
}

func TestShouldRetry_UnclassifiedError(t *testing.T) {
	if ShouldRetry(errors.New("something unexpected")) {
		t.Error("Expected false for unclassified error")
	}
}

func TestNewPolicy_DefaultClassifier(t *testing.T) {
	p := NewPolicy(DefaultConfig, nil)
	if p.Classifier == nil {
		t.Error("Expected default classifier when nil passed")
	}
	if p.ShouldRetry(nil) {
		t.Error("Expected false for nil error with default classifier")
	}
}

func TestDelay_ExponentialBackoff(t *testing.T) {
	p := NewPolicy(Config{
		BaseDelay:     time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        false,
	}, nil)

	// Retry 1: 1s * 2^0 = 1s
	if d := p.Delay(1); d != time.Second {
		t.Errorf("Expected 1s for retry 1, got: %v", d)
	}

	// Retry 2: 1s * 2^1 = 2s
	if d := p.Delay(2); d != 2*time.Second {
		t.Errorf("Expected 2s for retry 2, got: %v", d)
	}

	// Retry 3: 1s * 2^2 = 4s
	if d := p.Delay(3); d != 4*time.Second {
		t.Errorf("Expected 4s for retry 3, got: %v", d)
	}
}

func TestDelay_Monotonic(t *testing.T) {
	p := NewPolicy(Config{
		BaseDelay:     250 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        false,
	}, nil)

	prev := time.Duration(0)
	for attempt := 1; attempt <= 12; attempt++ {
		d := p.Delay(attempt)
		if d < prev {
			t.Errorf("Delay for retry %d (%v) is below delay for retry %d (%v)", attempt, d, attempt-1, prev)
		}
		prev = d
	}
}

func TestDelay_MaxDelayCap(t *testing.T) {
	p := NewPolicy(Config{
		BaseDelay:     time.Second,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        false,
	}, nil)

	// Retry 10: 1s * 2^9 = 512s, capped at 5s
	if d := p.Delay(10); d != 5*time.Second {
		t.Errorf("Expected 5s (max delay cap) for retry 10, got: %v", d)
	}
}

func TestDelay_JitterStaysWithinBounds(t *testing.T) {
	p := NewPolicy(Config{
		BaseDelay:     time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}, nil)

	// Jitter shifts the base delay by 10% in either direction.
	for i := 0; i < 50; i++ {
		d := p.Delay(1)
		if d != 900*time.Millisecond && d != 1100*time.Millisecond {
			t.Fatalf("Jittered delay %v outside the +-10%% band around 1s", d)
		}
	}
}

func TestWait_HonorsCancellation(t *testing.T) {
	p := NewPolicy(Config{
		BaseDelay:     time.Minute,
		MaxDelay:      time.Minute,
		BackoffFactor: 2.0,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Wait(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}
