// Package observability exposes Prometheus metrics for the pipeline,
// trimmed from the teacher's much larger agent/tool/RAG/HTTP metrics
// surface down to the subset a book-transform pipeline actually emits:
// provider call accounting and per-stage throughput.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics collection for the pipeline. A nil
// *Metrics is valid and every Record*/Inc*/Dec* method is a no-op on it,
// so callers never need to check whether metrics are enabled.
type Metrics struct {
	config   *Config
	registry *prometheus.Registry

	providerCalls        *prometheus.CounterVec
	providerCallDuration *prometheus.HistogramVec
	providerTokensInput  *prometheus.CounterVec
	providerTokensOutput *prometheus.CounterVec
	providerErrors       *prometheus.CounterVec

	chunksInFlight    prometheus.Gauge
	chunksTransformed *prometheus.CounterVec
	alignmentFallback prometheus.Counter
	qcPasses          prometheus.Histogram
	qcScore           prometheus.Histogram
}

// New creates a Metrics instance from cfg. It returns nil, nil when cfg is
// nil or disabled, matching the teacher's "absent metrics are a nil
// receiver" convention rather than a separate enabled check at every call
// site.
func New(cfg *Config) (*Metrics, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	cfg.SetDefaults()

	m := &Metrics{config: cfg, registry: prometheus.NewRegistry()}
	m.initProviderMetrics()
	m.initPipelineMetrics()
	return m, nil
}

func (m *Metrics) initProviderMetrics() {
	m.providerCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "provider", Name: "calls_total",
		Help: "Total number of provider completion calls",
	}, []string{"model", "provider"})

	m.providerCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "provider", Name: "call_duration_seconds",
		Help: "Provider completion call duration in seconds", Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"model", "provider"})

	m.providerTokensInput = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "provider", Name: "tokens_input_total",
		Help: "Total prompt tokens sent to the provider",
	}, []string{"model", "provider"})

	m.providerTokensOutput = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "provider", Name: "tokens_output_total",
		Help: "Total completion tokens received from the provider",
	}, []string{"model", "provider"})

	m.providerErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "provider", Name: "errors_total",
		Help: "Total provider call errors",
	}, []string{"model", "provider", "error_type"})

	m.registry.MustRegister(m.providerCalls, m.providerCallDuration, m.providerTokensInput,
		m.providerTokensOutput, m.providerErrors)
}

func (m *Metrics) initPipelineMetrics() {
	m.chunksInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.config.Namespace, Subsystem: "pipeline", Name: "chunks_in_flight",
		Help: "Number of chunks currently being transformed",
	})

	m.chunksTransformed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "pipeline", Name: "chunks_transformed_total",
		Help: "Total chunks transformed, by outcome",
	}, []string{"outcome"})

	m.alignmentFallback = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "pipeline", Name: "alignment_fallback_total",
		Help: "Total chunks that fell back to a passthrough after an alignment failure",
	})

	m.qcPasses = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "pipeline", Name: "qc_passes",
		Help: "Quality-control passes run per transform", Buckets: prometheus.LinearBuckets(0, 1, 6),
	})

	m.qcScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "pipeline", Name: "qc_score",
		Help: "Final quality score per transform", Buckets: prometheus.LinearBuckets(0, 10, 11),
	})

	m.registry.MustRegister(m.chunksInFlight, m.chunksTransformed, m.alignmentFallback, m.qcPasses, m.qcScore)
}

// RecordProviderCall records a completed provider call.
func (m *Metrics) RecordProviderCall(model, provider string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(model, provider).Inc()
	m.providerCallDuration.WithLabelValues(model, provider).Observe(durationSeconds)
}

// RecordProviderTokens records prompt/completion token usage for one call.
func (m *Metrics) RecordProviderTokens(model, provider string, promptTokens, completionTokens int) {
	if m == nil {
		return
	}
	m.providerTokensInput.WithLabelValues(model, provider).Add(float64(promptTokens))
	m.providerTokensOutput.WithLabelValues(model, provider).Add(float64(completionTokens))
}

// RecordProviderError records a failed provider call.
func (m *Metrics) RecordProviderError(model, provider, errorType string) {
	if m == nil {
		return
	}
	m.providerErrors.WithLabelValues(model, provider, errorType).Inc()
}

// IncChunksInFlight marks a chunk as started.
func (m *Metrics) IncChunksInFlight() {
	if m == nil {
		return
	}
	m.chunksInFlight.Inc()
}

// DecChunksInFlight marks a chunk as finished.
func (m *Metrics) DecChunksInFlight() {
	if m == nil {
		return
	}
	m.chunksInFlight.Dec()
}

// RecordChunkOutcome records a chunk finishing as "ok" or "fallback".
func (m *Metrics) RecordChunkOutcome(outcome string) {
	if m == nil {
		return
	}
	m.chunksTransformed.WithLabelValues(outcome).Inc()
	if outcome == "fallback" {
		m.alignmentFallback.Inc()
	}
}

// RecordQualityReport records a finished QualityController run.
func (m *Metrics) RecordQualityReport(passes int, score float64) {
	if m == nil {
		return
	}
	m.qcPasses.Observe(float64(passes))
	m.qcScore.Observe(score)
}

// Handler returns an HTTP handler exposing metrics in the Prometheus
// exposition format. On a nil Metrics it serves 503, so wiring it up
// unconditionally is always safe.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
