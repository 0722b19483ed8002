package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
type PrometheusRecorder struct {
	callsTotal      *prometheus.CounterVec
	callDuration    *prometheus.HistogramVec
	rejectionsTotal *prometheus.CounterVec
}

// NewPrometheusRecorder creates a Prometheus-based metrics recorder
// registered on the default registerer.
func NewPrometheusRecorder() *PrometheusRecorder {
	return &PrometheusRecorder{
		callsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_calls_total",
				Help: "Total number of tool calls by tool, status, and error type",
			},
			[]string{"tool", "status", "error_type"},
		),
		callDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tool_call_duration_seconds",
				Help:    "Duration of tool calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		rejectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_breaker_rejections_total",
				Help: "Total number of calls suppressed by an open circuit breaker",
			},
			[]string{"tool"},
		),
	}
}

// ObserveCall records one completed call attempt cycle for a tool.
func (p *PrometheusRecorder) ObserveCall(tool string, duration time.Duration, success bool, errorType string) {
	status := "success"
	if !success {
		status = "error"
	}

	p.callsTotal.WithLabelValues(tool, status, errorType).Inc()
	p.callDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// IncRejection counts a breaker-suppressed call.
func (p *PrometheusRecorder) IncRejection(tool string) {
	p.rejectionsTotal.WithLabelValues(tool).Inc()
}
