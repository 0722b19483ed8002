package toolerrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolflow/pkg/tool/rpc"
)

func TestClassifyRPCErrorIsDomain(t *testing.T) {
	err := Classify("search_particle", &rpc.Error{Code: 1001, Message: "particle not found"})
	assert.Equal(t, TypeDomain, err.Type)
	assert.Equal(t, 1001, err.Code)
	assert.False(t, err.Retryable)
	assert.Equal(t, "search_particle", err.Tool)
}

func TestClassifyWrappedRPCError(t *testing.T) {
	inner := &rpc.Error{Code: 7, Message: "bad params"}
	err := Classify("list_decays", fmt.Errorf("call failed: %w", inner))
	assert.Equal(t, TypeDomain, err.Type)
	assert.Equal(t, 7, err.Code)
}

func TestClassifyTransientPatterns(t *testing.T) {
	for _, msg := range []string{
		"timeout awaiting response",
		"connection refused",
		"transport status 503: Service Unavailable",
		"unexpected EOF",
	} {
		err := Classify("t", errors.New(msg))
		assert.Equal(t, TypeTransport, err.Type, msg)
		assert.True(t, err.Retryable, msg)
	}
}

func TestClassifyDeadlineExceededRetryable(t *testing.T) {
	err := Classify("t", fmt.Errorf("call: %w", context.DeadlineExceeded))
	assert.Equal(t, TypeTransport, err.Type)
	assert.True(t, err.Retryable, "per-call deadline failures retry on the next attempt")
}

func TestClassifyCanceledNotRetryable(t *testing.T) {
	err := Classify("t", context.Canceled)
	assert.False(t, err.Retryable)
}

func TestClassifyIdempotent(t *testing.T) {
	original := NewBreakerOpen("search_particle")
	reclassified := Classify("search_particle", fmt.Errorf("wrapped: %w", original))
	assert.Same(t, original, reclassified, "classification must not be recomputed")
}

func TestIsAndIsRetryableHelpers(t *testing.T) {
	breakerErr := NewBreakerOpen("x")
	assert.True(t, Is(breakerErr, TypeBreakerOpen))
	assert.False(t, Is(breakerErr, TypeDomain))
	assert.False(t, Is(errors.New("plain"), TypeTransport))
	assert.False(t, IsRetryable(errors.New("plain")))

	wrapped := fmt.Errorf("outer: %w", breakerErr)
	require.True(t, Is(wrapped, TypeBreakerOpen))
}

func TestErrorString(t *testing.T) {
	err := &Error{Type: TypeDomain, Message: "no such decay"}
	assert.Equal(t, "tool error (domain): no such decay", err.Error())

	wrapped := &Error{Type: TypeTransport, Err: errors.New("dial tcp: refused")}
	assert.Contains(t, wrapped.Error(), "transport")
	assert.Contains(t, wrapped.Error(), "refused")
}
