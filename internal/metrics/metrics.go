package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pdf_rewriter"

// Outcome labels
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
)

// Metrics holds the workflow collectors. A nil *Metrics records nothing.
type Metrics struct {
	uploads      *prometheus.CounterVec
	applies      *prometheus.CounterVec
	aiCalls      *prometheus.CounterVec
	aiLatency    *prometheus.HistogramVec
	replacements prometheus.Counter
	sessions     prometheus.Gauge
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Uploads by outcome.",
		}, []string{"outcome"}),
		applies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "applies_total",
			Help:      "Apply-replacements runs by outcome.",
		}, []string{"outcome"}),
		aiCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_calls_total",
			Help:      "AI service calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		aiLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_call_duration_seconds",
			Help:      "AI service call latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"operation"}),
		replacements: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replacements_applied_total",
			Help:      "Text substitutions written into generated documents.",
		}),
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Open workflow sessions.",
		}),
	}
}

// RecordUpload counts one finished upload
func (m *Metrics) RecordUpload(outcome string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(outcome).Inc()
}

// RecordApply counts one apply-replacements run and the substitutions it wrote
func (m *Metrics) RecordApply(outcome string, substitutions int) {
	if m == nil {
		return
	}
	m.applies.WithLabelValues(outcome).Inc()
	if substitutions > 0 {
		m.replacements.Add(float64(substitutions))
	}
}

// RecordAICall counts a model call and observes its latency
func (m *Metrics) RecordAICall(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.aiCalls.WithLabelValues(operation, outcome).Inc()
	m.aiLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// SetActiveSessions sets the open sessions gauge
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}

// Handler exposes the collectors of g in the Prometheus text format
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
