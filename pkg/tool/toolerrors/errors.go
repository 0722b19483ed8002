// Package toolerrors provides structured error classification for tool invocations.
package toolerrors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"toolflow/pkg/tool/rpc"
)

// ErrorType represents the category of a tool invocation failure.
type ErrorType int8

const (
	// TypeTransport represents network, timeout, and 5xx-style failures. Retryable.
	TypeTransport ErrorType = iota
	// TypeDomain represents a well-formed application error returned by the
	// callee (bad arguments, entity not found). Not retryable.
	TypeDomain
	// TypeBreakerOpen represents a call suppressed locally by an open circuit
	// breaker. Not retryable, and never counted toward the breaker's own tally.
	TypeBreakerOpen
)

// String returns the string representation of the error type.
func (t ErrorType) String() string {
	switch t {
	case TypeTransport:
		return "transport"
	case TypeDomain:
		return "domain"
	case TypeBreakerOpen:
		return "breaker_open"
	default:
		return "unknown"
	}
}

// Error is a classified tool invocation failure. The Retryable flag is
// derived once at classification time and never recomputed.
type Error struct {
	Err       error           // wrapped underlying error
	Data      json.RawMessage // optional payload from the callee
	Message   string
	Tool      string
	Type      ErrorType
	Code      int // numeric code from the callee, when available
	Retryable bool
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("tool error (%s): %s", e.Type.String(), e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("tool error (%s): %v", e.Type.String(), e.Err)
	}
	return fmt.Sprintf("tool error (%s): code %d", e.Type.String(), e.Code)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is checks whether err carries the given classified type.
func Is(err error, errorType ErrorType) bool {
	var toolErr *Error
	if errors.As(err, &toolErr) {
		return toolErr.Type == errorType
	}
	return false
}

// IsRetryable reports whether err may be retried. Unclassified errors
// are not retried.
func IsRetryable(err error) bool {
	var toolErr *Error
	if errors.As(err, &toolErr) {
		return toolErr.Retryable
	}
	return false
}

// NewBreakerOpen creates the error surfaced when the circuit breaker for
// a tool rejects a call before the transport is touched.
func NewBreakerOpen(tool string) *Error {
	return &Error{
		Type:      TypeBreakerOpen,
		Tool:      tool,
		Message:   fmt.Sprintf("circuit breaker open for tool %q", tool),
		Retryable: false,
	}
}

// Classify converts a transport-boundary error into a classified *Error.
// The call is idempotent: already-classified errors pass through unchanged.
func Classify(tool string, err error) *Error {
	var toolErr *Error
	if errors.As(err, &toolErr) {
		return toolErr
	}

	// Well-formed application errors from the callee are final.
	var rpcErr *rpc.Error
	if errors.As(err, &rpcErr) {
		return &Error{
			Type:      TypeDomain,
			Tool:      tool,
			Code:      rpcErr.Code,
			Message:   rpcErr.Message,
			Data:      rpcErr.Data,
			Err:       rpcErr,
			Retryable: false,
		}
	}

	// Caller cancellation is not a transport fault and must not be retried.
	if errors.Is(err, context.Canceled) {
		return &Error{
			Type:      TypeTransport,
			Tool:      tool,
			Message:   "call cancelled",
			Err:       err,
			Retryable: false,
		}
	}

	if isTransient(err) {
		return &Error{
			Type:      TypeTransport,
			Tool:      tool,
			Message:   err.Error(),
			Err:       err,
			Retryable: true,
		}
	}

	// Unclassified transport-boundary failures default to retryable: the
	// callee never produced a well-formed response.
	return &Error{
		Type:      TypeTransport,
		Tool:      tool,
		Message:   err.Error(),
		Err:       err,
		Retryable: true,
	}
}

// isTransient matches timeout, connection, and server-side failure patterns.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := err.Error()
	for _, pattern := range []string{
		"timeout", "connection", "network", "temporary", "EOF",
		"status 500", "status 502", "status 503", "status 504", "429",
	} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
