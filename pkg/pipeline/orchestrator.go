package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"toolflow/pkg/logx"
	"toolflow/pkg/tool"
	"toolflow/pkg/tool/circuit"
)

// Defaults for orchestrator options.
const (
	DefaultConcurrency = 2
	DefaultEventBuffer = 64
)

// Options configures an orchestrator run.
type Options struct {
	Concurrency int // entities processed concurrently per chunk
	EventBuffer int // capacity of the emitted event channel
}

// Orchestrator runs a step pipeline over a set of entities with bounded
// concurrency across entities and strictly sequential steps per entity.
type Orchestrator struct {
	client *tool.Client
	logger *logx.Logger
	steps  []Step
	opts   Options
}

// New validates the pipeline configuration and creates an orchestrator.
// Configuration faults (nil client, no steps, a step without a Run, a
// fallback policy without a fallback step) are reported here, never as
// runtime failures.
func New(client *tool.Client, steps []Step, opts Options) (*Orchestrator, error) {
	if client == nil {
		return nil, fmt.Errorf("pipeline: client is required")
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("pipeline: at least one step is required")
	}
	seen := make(map[string]bool, len(steps))
	for i := range steps {
		if err := validateStep(&steps[i], seen); err != nil {
			return nil, err
		}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}
	return &Orchestrator{
		client: client,
		steps:  steps,
		opts:   opts,
		logger: logx.NewLogger("pipeline"),
	}, nil
}

func validateStep(step *Step, seen map[string]bool) error {
	if step.ID == "" {
		return fmt.Errorf("pipeline: step %q has no id", step.Name)
	}
	if seen[step.ID] {
		return fmt.Errorf("pipeline: duplicate step id %q", step.ID)
	}
	seen[step.ID] = true
	if step.Run == nil {
		return fmt.Errorf("pipeline: step %q has no run function", step.ID)
	}
	if step.Policy == PolicyFallback && step.Fallback == nil {
		return fmt.Errorf("pipeline: step %q declares fallback policy without a fallback step", step.ID)
	}
	if step.Fallback != nil {
		return validateStep(step.Fallback, seen)
	}
	return nil
}

// Run processes the entities through the pipeline and returns the event
// stream. The channel is closed after the workflow.end event. Individual
// entity failures never terminate the run; cancellation is honored at
// chunk and step boundaries while in-flight tool calls finish.
func (o *Orchestrator) Run(ctx context.Context, entities []string) <-chan Event {
	events := make(chan Event, o.opts.EventBuffer)

	go func() {
		defer close(events)
		o.run(ctx, entities, events)
	}()

	return events
}

func (o *Orchestrator) run(ctx context.Context, entities []string, events chan<- Event) {
	emit := func(ev Event) {
		ev.Timestamp = time.Now()
		events <- ev
	}

	// Surface breaker transitions as circuit events for the life of the run.
	breakers := o.client.Breakers()
	breakers.OnStateChange(func(toolName string, _, to circuit.State) {
		switch to {
		case circuit.Open:
			emit(Event{Type: EventCircuitOpen, Tool: toolName})
		case circuit.Closed:
			emit(Event{Type: EventCircuitClose, Tool: toolName})
		}
	})
	defer breakers.OnStateChange(nil)

	emit(Event{Type: EventWorkflowStart, Entities: len(entities)})
	o.logger.Info("workflow started: %d entities, %d steps, concurrency %d",
		len(entities), len(o.steps), o.opts.Concurrency)

	var succeeded, failed atomic.Int64

	for start := 0; start < len(entities); start += o.opts.Concurrency {
		if ctx.Err() != nil {
			o.logger.Warn("workflow cancelled before chunk at entity %d", start)
			break
		}

		end := start + o.opts.Concurrency
		if end > len(entities) {
			end = len(entities)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(index int, entityID string) {
				defer wg.Done()
				if o.runEntity(ctx, index, entityID, emit) {
					succeeded.Add(1)
				} else {
					failed.Add(1)
				}
			}(i, entities[i])
		}
		wg.Wait()
	}

	emit(Event{
		Type:      EventWorkflowEnd,
		Entities:  len(entities),
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
		Success:   failed.Load() == 0,
	})
	o.logger.Info("workflow finished: %d succeeded, %d failed", succeeded.Load(), failed.Load())
}

// runEntity drives one entity through the full step sequence and reports
// whether the entity completed without an abort-class failure.
func (o *Orchestrator) runEntity(ctx context.Context, index int, entityID string, emit func(Event)) bool {
	sc := newStepContext(entityID, index)
	emit(Event{Type: EventEntityStart, Entity: entityID})

	var abortErr error
	for i := range o.steps {
		if abortErr != nil {
			emit(Event{Type: EventStepSkip, Entity: entityID, StepID: o.steps[i].ID, StepName: o.steps[i].Name})
			continue
		}
		if err := ctx.Err(); err != nil {
			abortErr = err
			break
		}
		abortErr = o.runStep(ctx, sc, &o.steps[i], emit)
	}

	success := abortErr == nil
	ev := Event{Type: EventEntityEnd, Entity: entityID, Success: success}
	if abortErr != nil {
		ev.Error = abortErr.Error()
	}
	emit(ev)
	return success
}

// runStep executes one step and applies its error policy. A non-nil return
// is an abort-class failure that ends the entity's run.
func (o *Orchestrator) runStep(ctx context.Context, sc *StepContext, step *Step, emit func(Event)) error {
	emit(Event{Type: EventStepStart, Entity: sc.EntityID, StepID: step.ID, StepName: step.Name})

	err := step.Run(ctx, o.client, sc)
	if err == nil {
		emit(Event{Type: EventStepSuccess, Entity: sc.EntityID, StepID: step.ID, StepName: step.Name})
		return nil
	}

	// Critical overrides the declared policy unconditionally.
	if step.Critical {
		emit(Event{Type: EventStepError, Entity: sc.EntityID, StepID: step.ID, StepName: step.Name, Error: err.Error()})
		return err
	}

	switch step.Policy {
	case PolicyContinue:
		emit(Event{Type: EventStepError, Entity: sc.EntityID, StepID: step.ID, StepName: step.Name, Error: err.Error()})
		o.logger.Debug("step %s failed for %s, continuing: %v", step.ID, sc.EntityID, err)
		return nil

	case PolicyFallback:
		emit(Event{Type: EventStepFallback, Entity: sc.EntityID, StepID: step.ID, StepName: step.Name, Error: err.Error()})
		return o.runStep(ctx, sc, step.Fallback, emit)

	default: // PolicyAbort
		emit(Event{Type: EventStepError, Entity: sc.EntityID, StepID: step.ID, StepName: step.Name, Error: err.Error()})
		return err
	}
}
