package metrics

import (
	"sync"
	"time"
)

// Stats holds the running totals for one tool. Totals are monotonically
// non-decreasing except on explicit Reset.
type Stats struct {
	LastCall     time.Time     `json:"last_call"`
	Tool         string        `json:"tool"`
	Calls        int64         `json:"calls"`
	Successes    int64         `json:"successes"`
	Failures     int64         `json:"failures"`
	Rejections   int64         `json:"rejections"`
	TotalLatency time.Duration `json:"total_latency_ns"`
}

// AvgLatency returns the mean call latency, or zero before the first call.
func (s *Stats) AvgLatency() time.Duration {
	if s.Calls == 0 {
		return 0
	}
	return s.TotalLatency / time.Duration(s.Calls)
}

// Registry implements Recorder with in-memory per-tool aggregation.
// Entries are created lazily on first use and live for the life of the
// registry.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Stats
}

// NewRegistry creates an empty metrics registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Stats),
	}
}

// ObserveCall records one completed call attempt cycle for a tool.
func (r *Registry) ObserveCall(tool string, duration time.Duration, success bool, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := r.get(tool)
	stats.Calls++
	if success {
		stats.Successes++
	} else {
		stats.Failures++
	}
	stats.TotalLatency += duration
	stats.LastCall = time.Now()
}

// IncRejection counts a breaker-suppressed call.
func (r *Registry) IncRejection(tool string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.get(tool).Rejections++
}

// get returns the stats record for a tool. Caller holds the write lock.
func (r *Registry) get(tool string) *Stats {
	stats, ok := r.tools[tool]
	if !ok {
		stats = &Stats{Tool: tool}
		r.tools[tool] = stats
	}
	return stats
}

// Get returns a copy of one tool's stats and whether the tool is known.
func (r *Registry) Get(tool string) (Stats, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats, ok := r.tools[tool]
	if !ok {
		return Stats{}, false
	}
	return *stats, true
}

// Snapshot returns a copy of the stats for every known tool.
func (r *Registry) Snapshot() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]Stats, len(r.tools))
	for tool, stats := range r.tools {
		result[tool] = *stats
	}
	return result
}

// Reset clears all accumulated stats.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = make(map[string]*Stats)
}
