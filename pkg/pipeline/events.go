package pipeline

import "time"

// EventType identifies one variant of the workflow event stream.
type EventType string

// The closed set of workflow event variants. The orchestrator is the sole
// producer; consumers only read.
const (
	EventWorkflowStart EventType = "workflow.start"
	EventWorkflowEnd   EventType = "workflow.end"
	EventEntityStart   EventType = "entity.start"
	EventEntityEnd     EventType = "entity.end"
	EventStepStart     EventType = "step.start"
	EventStepSuccess   EventType = "step.success"
	EventStepError     EventType = "step.error"
	EventStepFallback  EventType = "step.fallback"
	EventStepSkip      EventType = "step.skip"
	EventCircuitOpen   EventType = "circuit.open"
	EventCircuitClose  EventType = "circuit.close"
)

// Event is one immutable record in the observability stream. Events for a
// single entity are strictly ordered; events from different entities may
// interleave.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Entity    string    `json:"entity,omitempty"`
	StepID    string    `json:"step_id,omitempty"`
	StepName  string    `json:"step_name,omitempty"`
	Tool      string    `json:"tool,omitempty"`    // circuit events: affected tool
	Error     string    `json:"error,omitempty"`   // step.error / entity.end failures
	Success   bool      `json:"success,omitempty"` // entity.end / workflow.end
	Entities  int       `json:"entities,omitempty"`
	Succeeded int       `json:"succeeded,omitempty"`
	Failed    int       `json:"failed,omitempty"`
}
