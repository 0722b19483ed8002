package tool

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Invocation identifies one logical tool call. It is created per call
// attempt cycle and discarded once a result or error is delivered.
type Invocation struct {
	SubmittedAt time.Time      `json:"submitted_at"`
	Args        map[string]any `json:"args,omitempty"`
	ID          string         `json:"id"`
	Tool        string         `json:"tool"`
}

// NewInvocation creates an invocation with a fresh correlation id.
func NewInvocation(tool string, args map[string]any) *Invocation {
	return &Invocation{
		ID:          uuid.New().String(),
		Tool:        tool,
		Args:        args,
		SubmittedAt: time.Now(),
	}
}

// Result is the immutable outcome of a successful invocation.
type Result struct {
	CompletedAt time.Time       `json:"completed_at"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	ID          string          `json:"id"`
	Tool        string          `json:"tool"`
	Latency     time.Duration   `json:"latency_ns"`
}
