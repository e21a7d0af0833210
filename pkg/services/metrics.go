package services

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	sessionsStarted      prometheus.Counter
	diagnosticsCompleted *prometheus.CounterVec
	artifactsWritten     *prometheus.CounterVec
	artifactFallbacks    *prometheus.CounterVec
	contextFetches       *prometheus.CounterVec
	httpDuration         *prometheus.HistogramVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		sessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "gtm_sessions_started_total",
			Help: "Diagnostic sessions started.",
		}),
		diagnosticsCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gtm_diagnostics_completed_total",
			Help: "Completed diagnostics by resulting level.",
		}, []string{"level"}),
		artifactsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gtm_artifacts_written_total",
			Help: "Artifacts written by type.",
		}, []string{"type"}),
		artifactFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gtm_artifact_fallbacks_total",
			Help: "Placeholder artifacts written after a generation failure, by type.",
		}, []string{"type"}),
		contextFetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gtm_context_fetch_total",
			Help: "Company context fetches by result.",
		}, []string{"result"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gtm_http_request_duration_seconds",
			Help:    "HTTP request latency by method/path/status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
}

func (m *Metrics) DiagnosticCompleted(level int) {
	if m == nil {
		return
	}
	m.diagnosticsCompleted.WithLabelValues(strconv.Itoa(level)).Inc()
}

func (m *Metrics) ArtifactWritten(artifactType string) {
	if m == nil {
		return
	}
	m.artifactsWritten.WithLabelValues(artifactType).Inc()
}

func (m *Metrics) ArtifactFallback(artifactType string) {
	if m == nil {
		return
	}
	m.artifactFallbacks.WithLabelValues(artifactType).Inc()
}

// ContextFetched records a context fetch; result is "success", "failure" or "skipped".
func (m *Metrics) ContextFetched(result string) {
	if m == nil {
		return
	}
	m.contextFetches.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
