// Package pipeline drives independent entities through an ordered sequence
// of tool-backed steps with per-step error policy, bounded concurrency
// across entities, and a typed workflow event stream.
package pipeline

import (
	"context"
	"time"

	"toolflow/pkg/tool"
)

// PolicyKind is the tagged error policy evaluated after a step fails.
type PolicyKind int8

const (
	// PolicyContinue swallows the failure and proceeds to the next step.
	PolicyContinue PolicyKind = iota
	// PolicyAbort terminates the remaining steps for this entity only.
	PolicyAbort
	// PolicyFallback executes the step's declared fallback in place.
	PolicyFallback
)

// String returns the string representation of the policy.
func (p PolicyKind) String() string {
	switch p {
	case PolicyContinue:
		return "continue"
	case PolicyAbort:
		return "abort"
	case PolicyFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// RunFunc performs a step's tool calls, reading prior outputs from the
// context bag and writing its own.
type RunFunc func(ctx context.Context, client *tool.Client, sc *StepContext) error

// Step is one stage of the pipeline. Steps are static configuration; all
// runtime state lives in the StepContext.
type Step struct {
	Run      RunFunc
	Fallback *Step // used when Policy is PolicyFallback; one level only
	ID       string
	Name     string
	Category string
	Policy   PolicyKind
	Critical bool // always aborts on failure, overriding Policy
}

// StepContext is the per-entity scratch space. It is owned exclusively by
// one entity's run and never shared across entities.
type StepContext struct {
	StartedAt time.Time
	Bag       map[string]any
	EntityID  string
	Index     int // position in the entity batch
}

// newStepContext creates the context for one entity run.
func newStepContext(entityID string, index int) *StepContext {
	return &StepContext{
		EntityID:  entityID,
		Bag:       make(map[string]any),
		StartedAt: time.Now(),
		Index:     index,
	}
}
