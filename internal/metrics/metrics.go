// Package metrics exposes Prometheus instrumentation of verification runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/veritas/internal/model"
)

const namespace = "veritas"

// Enforcement decision labels
const (
	DecisionBlocked  = "blocked"
	DecisionModified = "modified"
	DecisionAllowed  = "allowed"
)

// Recorder records run telemetry into its own registry. It satisfies the
// pipeline observer interface.
type Recorder struct {
	registry *prometheus.Registry

	verifications     *prometheus.CounterVec
	duration          prometheus.Histogram
	claims            prometheus.Counter
	hallucinations    *prometheus.CounterVec
	confidence        *prometheus.HistogramVec
	retrievalFailures *prometheus.CounterVec
	enforcements      *prometheus.CounterVec
	trustDelta        prometheus.Histogram
}

// NewRecorder creates a recorder with a fresh registry that also carries the
// Go runtime and process collectors
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		// Labels: domain, mode
		verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verify",
			Name:      "runs_total",
			Help:      "Total verification runs",
		}, []string{"domain", "mode"}),

		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "verify",
			Name:      "duration_seconds",
			Help:      "Verification run latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		claims: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verify",
			Name:      "claims_total",
			Help:      "Total claims scored",
		}),

		// Labels: domain
		hallucinations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verify",
			Name:      "hallucinations_total",
			Help:      "Total claims flagged as hallucinations",
		}, []string{"domain"}),

		// Labels: domain
		confidence: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "verify",
			Name:      "confidence",
			Help:      "Distribution of overall confidence per run",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		}, []string{"domain"}),

		// Labels: source
		retrievalFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evidence",
			Name:      "retrieval_failures_total",
			Help:      "Total evidence retrieval failures by source",
		}, []string{"source"}),

		// Labels: decision (blocked, modified, allowed)
		enforcements: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enforce",
			Name:      "decisions_total",
			Help:      "Total enforcement decisions",
		}, []string{"decision"}),

		trustDelta: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "enforce",
			Name:      "trust_delta",
			Help:      "Distribution of net trust deltas",
			Buckets:   []float64{-40, -30, -20, -10, -5, 0, 5, 10, 20},
		}),
	}
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveVerification records one finished run
func (r *Recorder) ObserveVerification(result model.VerificationResult, elapsed time.Duration) {
	domainID := "none"
	if result.Domain != nil {
		domainID = result.Domain.Domain.ID
	}
	mode := result.Mode
	if mode == "" {
		mode = model.ModeBalanced
	}

	r.verifications.WithLabelValues(domainID, mode).Inc()
	r.duration.Observe(elapsed.Seconds())
	r.claims.Add(float64(len(result.Claims)))
	if n := result.HallucinationCount(); n > 0 {
		r.hallucinations.WithLabelValues(domainID).Add(float64(n))
	}
	if len(result.Claims) > 0 {
		r.confidence.WithLabelValues(domainID).Observe(result.OverallScore.Confidence)
	}
}

// ObserveRetrievalFailure counts a failed evidence lookup
func (r *Recorder) ObserveRetrievalFailure(source string) {
	r.retrievalFailures.WithLabelValues(source).Inc()
}

// ObserveEnforcement records an enforcement decision
func (r *Recorder) ObserveEnforcement(result model.EnforcementResult) {
	r.enforcements.WithLabelValues(Decision(result)).Inc()
	r.trustDelta.Observe(result.TrustDelta)
}

// Decision names the outcome of an enforcement
func Decision(result model.EnforcementResult) string {
	switch {
	case result.Blocked:
		return DecisionBlocked
	case result.Modified:
		return DecisionModified
	default:
		return DecisionAllowed
	}
}
