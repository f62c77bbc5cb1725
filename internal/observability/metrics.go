package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the bridge.
type Metrics struct {
	ActiveCalls       prometheus.Gauge
	CallEvents        *prometheus.CounterVec
	ProviderErrors    *prometheus.CounterVec
	ToolInvocations   *prometheus.CounterVec
	SearchRequests    *prometheus.CounterVec
	InitiateLatency   *prometheus.HistogramVec
	TranscriptEntries *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveCalls: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_calls",
			Help:      "Number of calls initiated through this bridge and not yet ended.",
		}),
		CallEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_events_total",
			Help:      "Call lifecycle events by provider and type.",
		}, []string{"provider", "event"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider errors by provider and class.",
		}, []string{"provider", "class"}),
		ToolInvocations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_invocations_total",
			Help:      "Client-side tool invocations by tool and outcome.",
		}, []string{"tool", "outcome"}),
		SearchRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Search collaborator requests by outcome.",
		}, []string{"outcome"}),
		InitiateLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "initiate_latency_ms",
			Help:      "Latency of provider call-creation requests in milliseconds.",
			Buckets:   []float64{50, 100, 200, 300, 500, 700, 1000, 2000, 5000},
		}, []string{"provider"}),
		TranscriptEntries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_entries_total",
			Help:      "Normalized transcript entries by provider and role.",
		}, []string{"provider", "role"}),
	}
}

func (m *Metrics) ObserveInitiateLatency(provider string, d time.Duration) {
	m.InitiateLatency.WithLabelValues(provider).Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
