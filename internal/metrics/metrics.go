// Package metrics exposes the call engine counters in the Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "surveycall"

type Metrics struct {
	registry        *prometheus.Registry
	callsStarted    prometheus.Counter
	callsEnded      *prometheus.CounterVec
	callDuration    prometheus.Histogram
	toolInvocations *prometheus.CounterVec
}

// New registers the collectors on a fresh registry. liveCalls reports the number of calls not yet finalized.
func New(liveCalls func() int) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(registry)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_calls",
		Help:      "Calls that have started and not been finalized",
	}, func() float64 {
		return float64(liveCalls())
	})

	return &Metrics{
		registry: registry,
		callsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_started_total",
			Help:      "Calls started",
		}),
		// Labels: reason (completed, wrong_person, declined, not_available, callback_scheduled, link_sent, time_limit)
		callsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_ended_total",
			Help:      "Calls finalized by end reason",
		}, []string{"reason"}),
		callDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Duration of finalized calls",
			Buckets:   []float64{15, 30, 60, 120, 180, 240, 300, 420, 600},
		}),
		toolInvocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_invocations_total",
			Help:      "Tool invocations by tool name",
		}, []string{"tool"}),
	}
}

func (m *Metrics) CallStarted() {
	m.callsStarted.Inc()
}

func (m *Metrics) CallEnded(reason string, durationSeconds float64) {
	m.callsEnded.WithLabelValues(reason).Inc()
	m.callDuration.Observe(durationSeconds)
}

// ToolInvoked counts an invocation. Unknown tool names are folded into "unknown" to bound the label set.
func (m *Metrics) ToolInvoked(tool string, known bool) {
	if !known {
		tool = "unknown"
	}
	m.toolInvocations.WithLabelValues(tool).Inc()
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}) //nolint:exhaustruct // defaults are fine
}
