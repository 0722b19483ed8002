// Package circuit provides per-tool circuit breakers for resilient tool calls.
package circuit

import (
	"sync"
	"time"
)

// State represents the current state of a circuit breaker.
type State int

// Circuit breaker states for managing repeated tool failures.
const (
	Closed   State = iota // Normal operation
	Open                  // Failing, reject calls until reopenAt
	HalfOpen              // Cooldown elapsed, single probe in flight
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config defines circuit breaker behavior.
type Config struct {
	FailureThreshold int           `json:"failure_threshold"` // Consecutive failures before opening
	ReopenDelay      time.Duration `json:"reopen_delay"`      // Cooldown before the half-open probe
}

// DefaultConfig provides reasonable defaults for circuit breaker behavior.
//
//nolint:gochecknoglobals // Sensible default config pattern
var DefaultConfig = Config{
	FailureThreshold: 5,
	ReopenDelay:      30 * time.Second,
}

// Breaker is a per-tool state machine gating whether a call is attempted.
// Closed -> (threshold consecutive failures) -> Open -> (now >= reopenAt)
// -> HalfOpen (single probe) -> success -> Closed | failure -> Open.
type Breaker struct {
	config Config
	mu     sync.Mutex

	state               State
	consecutiveFailures int
	lastFailureTime     time.Time
	reopenAt            time.Time
	probing             bool
	now                 func() time.Time
	onChange            func(from, to State)
}

// New creates a closed circuit breaker with the given configuration.
func New(config Config) *Breaker {
	return &Breaker{
		config: config,
		state:  Closed,
		now:    time.Now,
	}
}

// Allow reports whether a call may be attempted. When the cooldown has
// elapsed exactly one caller is admitted as the half-open probe; everyone
// else is rejected until that probe's result is recorded.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true

	case Open:
		if !b.now().Before(b.reopenAt) {
			b.state = HalfOpen
			b.probing = true
			return true
		}
		return false

	case HalfOpen:
		if !b.probing {
			b.probing = true
			return true
		}
		return false

	default:
		return false
	}
}

// Record records the final result of an attempted call. Calls rejected by
// Allow must not be recorded.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()

	from := b.state
	b.probing = false

	if success {
		b.state = Closed
		b.consecutiveFailures = 0
	} else {
		b.consecutiveFailures++
		b.lastFailureTime = b.now()

		switch b.state {
		case Closed:
			if b.consecutiveFailures >= b.config.FailureThreshold {
				b.open()
			}
		case HalfOpen:
			// Probe failure re-opens with a fresh cooldown.
			b.open()
		case Open:
			// Late result from a call dispatched before the breaker opened.
			b.reopenAt = b.lastFailureTime.Add(b.config.ReopenDelay)
		}
	}

	to := b.state
	onChange := b.onChange
	b.mu.Unlock()

	if onChange != nil && from != to {
		onChange(from, to)
	}
}

// open transitions to Open and computes the next probe time.
// Caller must hold the lock.
func (b *Breaker) open() {
	b.state = Open
	b.reopenAt = b.lastFailureTime.Add(b.config.ReopenDelay)
}

// GetState returns the current circuit breaker state.
func (b *Breaker) GetState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot reports the breaker's observable state for the dashboard.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		State:               b.state.String(),
		ConsecutiveFailures: b.consecutiveFailures,
		LastFailureTime:     b.lastFailureTime,
		ReopenAt:            b.reopenAt,
	}
}

// Reset manually returns the breaker to the closed state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.consecutiveFailures = 0
	b.probing = false
}

// Snapshot is a read-only view of one breaker's state.
type Snapshot struct {
	LastFailureTime     time.Time `json:"last_failure_time"`
	ReopenAt            time.Time `json:"reopen_at"`
	State               string    `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}
