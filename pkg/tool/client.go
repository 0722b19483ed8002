// Package tool provides the resilient tool invocation client. A Client
// composes a transport with per-tool circuit breaking, retry with
// exponential backoff, and metrics recording behind one Invoke contract.
package tool

import (
	"context"
	"time"

	"toolflow/pkg/logx"
	"toolflow/pkg/tool/circuit"
	"toolflow/pkg/tool/metrics"
	"toolflow/pkg/tool/retry"
	"toolflow/pkg/tool/rpc"
	"toolflow/pkg/tool/toolerrors"
)

// DefaultTimeout is the per-call transport deadline when none is configured.
const DefaultTimeout = 15 * time.Second

// Options configures a Client.
type Options struct {
	Transport rpc.Transport
	Breakers  *circuit.Registry
	Retry     *retry.Policy
	Recorder  metrics.Recorder
	Logger    *logx.Logger
	Timeout   time.Duration // default per-call transport deadline
}

// Client invokes named tools with breaker, retry, and metrics protection.
// Breaker and metrics records are keyed by tool name, created lazily, and
// mutated only by the client as a side effect of Invoke.
type Client struct {
	transport rpc.Transport
	breakers  *circuit.Registry
	policy    *retry.Policy
	recorder  metrics.Recorder
	logger    *logx.Logger
	timeout   time.Duration
}

// NewClient creates a tool client. Transport is required; the remaining
// collaborators default to closed breakers, the default retry policy, and
// no-op metrics.
func NewClient(opts Options) *Client {
	if opts.Breakers == nil {
		opts.Breakers = circuit.NewRegistry(circuit.DefaultConfig)
	}
	if opts.Retry == nil {
		opts.Retry = retry.NewPolicy(retry.DefaultConfig, nil)
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.Nop()
	}
	if opts.Logger == nil {
		opts.Logger = logx.NewLogger("tool")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Client{
		transport: opts.Transport,
		breakers:  opts.Breakers,
		policy:    opts.Retry,
		recorder:  opts.Recorder,
		logger:    opts.Logger,
		timeout:   opts.Timeout,
	}
}

// Breakers exposes the breaker registry for observability consumers.
func (c *Client) Breakers() *circuit.Registry {
	return c.breakers
}

// CallOption adjusts a single Invoke call.
type CallOption func(*callConfig)

type callConfig struct {
	timeout time.Duration
}

// WithTimeout overrides the per-call transport deadline.
func WithTimeout(d time.Duration) CallOption {
	return func(cfg *callConfig) {
		cfg.timeout = d
	}
}

// Invoke calls the named tool with the given arguments. It consults the
// tool's circuit breaker before every attempt, retries retryable failures
// with exponential backoff, and records metrics and breaker bookkeeping as
// a side effect. Failures are always returned as a *toolerrors.Error.
func (c *Client) Invoke(ctx context.Context, tool string, args map[string]any, opts ...CallOption) (*Result, error) {
	cfg := callConfig{timeout: c.timeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	breaker := c.breakers.Get(tool)
	maxAttempts := c.policy.Config.MaxRetries + 1

	var lastErr *toolerrors.Error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if !breaker.Allow() {
			c.recorder.IncRejection(tool)
			c.logger.Debug("breaker open, suppressing call to %s", tool)
			return nil, toolerrors.NewBreakerOpen(tool)
		}
		// An admission while half-open is the single probe. Its outcome
		// must be recorded, never retried: a failed probe re-opens the
		// breaker with a fresh cooldown.
		probe := breaker.GetState() == circuit.HalfOpen

		inv := NewInvocation(tool, args)
		callCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
		payload, err := c.transport.Call(callCtx, tool, args)
		cancel()
		latency := time.Since(inv.SubmittedAt)

		if err == nil {
			c.recorder.ObserveCall(tool, latency, true, "")
			breaker.Record(true)
			return &Result{
				ID:          inv.ID,
				Tool:        tool,
				Payload:     payload,
				CompletedAt: inv.SubmittedAt.Add(latency),
				Latency:     latency,
			}, nil
		}

		lastErr = toolerrors.Classify(tool, err)
		c.logger.Debug("call %s to %s failed (attempt %d/%d): %v", inv.ID, tool, attempt, maxAttempts, lastErr)

		if probe || !c.policy.ShouldRetry(lastErr) || attempt >= maxAttempts {
			c.recorder.ObserveCall(tool, latency, false, lastErr.Type.String())
			breaker.Record(false)
			return nil, lastErr
		}

		if waitErr := c.policy.Wait(ctx, attempt); waitErr != nil {
			// Caller cancelled during backoff; the failure still counts.
			c.recorder.ObserveCall(tool, latency, false, lastErr.Type.String())
			breaker.Record(false)
			return nil, lastErr
		}
	}

	return nil, lastErr
}
