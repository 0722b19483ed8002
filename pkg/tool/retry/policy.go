// Package retry provides retry policy with exponential backoff for tool calls.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"toolflow/pkg/tool/toolerrors"
)

// Config defines configuration for retry behavior.
type Config struct {
	MaxRetries    int           `json:"max_retries"`    // Retries after the initial attempt
	BaseDelay     time.Duration `json:"base_delay"`     // Delay before the first retry
	MaxDelay      time.Duration `json:"max_delay"`      // Cap on the backoff delay
	BackoffFactor float64       `json:"backoff_factor"` // Multiplier for exponential backoff
	Jitter        bool          `json:"jitter"`         // Off by default: backoff stays deterministic
}

// DefaultConfig provides reasonable defaults for retry behavior.
//
//nolint:gochecknoglobals // Sensible default config pattern
var DefaultConfig = Config{
	MaxRetries:    3,
	BaseDelay:     500 * time.Millisecond,
	MaxDelay:      10 * time.Second,
	BackoffFactor: 2.0,
	Jitter:        false,
}

// Classifier determines if an error should be retried.
type Classifier func(error) bool

// ShouldRetry is the default classifier. It trusts the retryable flag
// derived at classification time and never retries caller cancellation.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return toolerrors.IsRetryable(err)
}

// Policy encapsulates retry configuration and logic.
type Policy struct {
	Config     Config
	Classifier Classifier
}

// NewPolicy creates a retry policy with the given configuration and classifier.
func NewPolicy(config Config, classifier Classifier) *Policy {
	if classifier == nil {
		classifier = ShouldRetry
	}
	if config.BackoffFactor <= 0 {
		config.BackoffFactor = DefaultConfig.BackoffFactor
	}
	return &Policy{
		Config:     config,
		Classifier: classifier,
	}
}

// Delay computes the backoff before retry attempt number attempt (1-based):
// base * factor^(attempt-1), capped at MaxDelay. The sequence is monotonic
// non-decreasing.
func (p *Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}

	delay := time.Duration(float64(p.Config.BaseDelay) * math.Pow(p.Config.BackoffFactor, float64(attempt-1)))
	if delay > p.Config.MaxDelay || delay <= 0 {
		delay = p.Config.MaxDelay
	}

	if p.Config.Jitter && delay > 0 {
		jitterFactor := rand.IntN(2)*2 - 1 // -1 or 1
		jitter := time.Duration(float64(delay) * 0.1 * float64(jitterFactor))
		delay += jitter
		if delay < 0 {
			delay = p.Config.BaseDelay
		}
	}

	return delay
}

// ShouldRetry determines if an error should be retried per the configured classifier.
func (p *Policy) ShouldRetry(err error) bool {
	return p.Classifier(err)
}

// Wait blocks for the backoff delay of the given retry attempt, honoring
// context cancellation.
func (p *Policy) Wait(ctx context.Context, attempt int) error {
	delay := p.Delay(attempt)
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
