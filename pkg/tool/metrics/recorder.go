// Package metrics provides per-tool metrics recording for tool call operations.
package metrics

import "time"

// Recorder defines the interface for recording tool call metrics.
// The tool client is the only producer.
type Recorder interface {
	// ObserveCall records one completed call attempt cycle for a tool.
	ObserveCall(tool string, duration time.Duration, success bool, errorType string)

	// IncRejection counts a call suppressed by an open circuit breaker.
	// Rejections never touch the transport and are tallied separately
	// from calls.
	IncRejection(tool string)
}

// NoopRecorder implements Recorder with no-op behavior for when metrics are disabled.
type NoopRecorder struct{}

// Nop returns a no-op metrics recorder that discards all metrics.
func Nop() Recorder {
	return &NoopRecorder{}
}

// ObserveCall does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveCall(_ string, _ time.Duration, _ bool, _ string) {}

// IncRejection does nothing in the no-op recorder.
func (n *NoopRecorder) IncRejection(_ string) {}

// multiRecorder fans observations out to several recorders.
type multiRecorder struct {
	recorders []Recorder
}

// Multi combines recorders into one, e.g. the in-memory registry plus Prometheus.
func Multi(recorders ...Recorder) Recorder {
	return &multiRecorder{recorders: recorders}
}

func (m *multiRecorder) ObserveCall(tool string, duration time.Duration, success bool, errorType string) {
	for _, r := range m.recorders {
		r.ObserveCall(tool, duration, success, errorType)
	}
}

func (m *multiRecorder) IncRejection(tool string) {
	for _, r := range m.recorders {
		r.IncRejection(tool)
	}
}
