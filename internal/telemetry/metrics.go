package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vinodismyname/ritualstats/internal/narration"
)

const namespace = "ritualstats"

// Metrics holds the process's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	toolCalls         *prometheus.CounterVec
	toolDuration      *prometheus.HistogramVec
	narrations        *prometheus.CounterVec
	narrationAttempts prometheus.Histogram
	narrationDuration prometheus.Histogram
	cacheLookups      *prometheus.CounterVec
	analyses          prometheus.Counter
}

// NewMetrics registers every collector plus the Go and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "tool_calls_total",
			Help: "MCP tool calls by tool and outcome.",
		}, []string{"tool", "outcome"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "tool_call_duration_seconds",
			Help:    "MCP tool call latency.",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"tool"}),
		narrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "narrations_total",
			Help: "Generated narrations by outcome.",
		}, []string{"outcome"}),
		narrationAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "narration_attempts",
			Help:    "Attempts needed per narration.",
			Buckets: []float64{1, 2, 3, 5},
		}),
		narrationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "narration_duration_seconds",
			Help:    "Wall time per narration including retries.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_lookups_total",
			Help: "Result cache lookups by result.",
		}, []string{"result"}),
		analyses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "analyses_total",
			Help: "Analysis runs computed (cache misses).",
		}),
	}
	m.registry.MustRegister(
		m.toolCalls, m.toolDuration,
		m.narrations, m.narrationAttempts, m.narrationDuration,
		m.cacheLookups, m.analyses,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
	)
	return m
}

// ObserveToolCall records one tool call; it satisfies runtime.Observer.
func (m *Metrics) ObserveToolCall(tool, outcome string, elapsed time.Duration) {
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// ObserveNarration records one finished narration.
func (m *Metrics) ObserveNarration(n narration.Narration) {
	outcome := "ok"
	if n.Failed {
		outcome = "failed"
	}
	m.narrations.WithLabelValues(outcome).Inc()
	m.narrationAttempts.Observe(float64(n.Attempts))
	m.narrationDuration.Observe(n.Elapsed.Seconds())
}

// CacheLookup records a result cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// AnalysisComputed counts a fresh analysis run.
func (m *Metrics) AnalysisComputed() {
	m.analyses.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
