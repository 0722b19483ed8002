package circuit

import "sync"

// StateChangeFunc observes breaker transitions for a named tool.
type StateChangeFunc func(tool string, from, to State)

// Registry owns the per-tool breakers. Breakers are created lazily on
// first use and live for the life of the registry.
type Registry struct {
	config   Config
	mu       sync.Mutex
	breakers map[string]*Breaker
	onChange StateChangeFunc
}

// NewRegistry creates a registry that applies config to every breaker it creates.
func NewRegistry(config Config) *Registry {
	return &Registry{
		config:   config,
		breakers: make(map[string]*Breaker),
	}
}

// OnStateChange registers an observer invoked on every breaker transition.
// Must be called before the registry is shared across goroutines.
func (r *Registry) OnStateChange(fn StateChangeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn

	for tool, breaker := range r.breakers {
		r.bind(tool, breaker)
	}
}

// Get returns the breaker for the named tool, creating it if needed.
func (r *Registry) Get(tool string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	breaker, ok := r.breakers[tool]
	if !ok {
		breaker = New(r.config)
		r.bind(tool, breaker)
		r.breakers[tool] = breaker
	}
	return breaker
}

// bind wires the registry observer into a breaker. Caller holds r.mu.
func (r *Registry) bind(tool string, breaker *Breaker) {
	if r.onChange == nil {
		breaker.onChange = nil
		return
	}
	fn := r.onChange
	breaker.onChange = func(from, to State) {
		fn(tool, from, to)
	}
}

// Snapshots returns the observable state of every known breaker.
func (r *Registry) Snapshots() map[string]Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make(map[string]Snapshot, len(r.breakers))
	for tool, breaker := range r.breakers {
		result[tool] = breaker.Snapshot()
	}
	return result
}
