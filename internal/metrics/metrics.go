package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the review service
type Metrics struct {
	// Model call metrics
	ModelRequests *prometheus.CounterVec
	ModelRetries  *prometheus.CounterVec
	ModelLatency  *prometheus.HistogramVec
	ModelTokens   *prometheus.CounterVec

	// Analysis metrics
	AnalysesCreated    *prometheus.CounterVec
	AnalysisScores     prometheus.Histogram
	AnalysisTransition *prometheus.CounterVec
	ExtractionFailures *prometheus.CounterVec

	// Learning metrics
	LearningsCreated     *prometheus.CounterVec
	LearningsDeactivated prometheus.Counter
	LearningOutcomes     *prometheus.CounterVec

	// Batch metrics
	BatchRuns     *prometheus.CounterVec
	BatchItems    *prometheus.CounterVec
	BatchDuration prometheus.Histogram

	// System metrics
	CacheHits           prometheus.Counter
	CacheMisses         prometheus.Counter
	EventsPublished     *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// NewMetrics creates and registers all Prometheus metrics. Every call returns
// the same instance so packages can grab it independently.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &Metrics{
			ModelRequests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "convreview_model_requests_total",
					Help: "Total number of completion requests by purpose and outcome",
				},
				[]string{"purpose", "model", "success"},
			),
			ModelRetries: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "convreview_model_retries_total",
					Help: "Completion requests retried after a transient failure",
				},
				[]string{"purpose"},
			),
			ModelLatency: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "convreview_model_request_duration_seconds",
					Help:    "Completion request duration in seconds",
					Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to 51s
				},
				[]string{"purpose", "model"},
			),
			ModelTokens: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "convreview_model_tokens_total",
					Help: "Total tokens reported by the completion service",
				},
				[]string{"purpose", "model"},
			),

			AnalysesCreated: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "convreview_analyses_created_total",
					Help: "Analyses created by initial status and priority",
				},
				[]string{"status", "priority"},
			),
			AnalysisScores: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "convreview_analysis_quality_score",
					Help:    "Distribution of quality scores",
					Buckets: prometheus.LinearBuckets(10, 10, 10),
				},
			),
			AnalysisTransition: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "convreview_analysis_transitions_total",
					Help: "Analysis status transitions",
				},
				[]string{"from_status", "to_status"},
			),
			ExtractionFailures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "convreview_extraction_failures_total",
					Help: "Model outputs that could not be read as JSON",
				},
				[]string{"purpose"},
			),

			LearningsCreated: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "convreview_learnings_created_total",
					Help: "Learnings created by source and category",
				},
				[]string{"source", "category"},
			),
			LearningsDeactivated: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "convreview_learnings_deactivated_total",
					Help: "Learnings deactivated",
				},
			),
			LearningOutcomes: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "convreview_learning_outcomes_total",
					Help: "Recorded learning outcomes",
				},
				[]string{"correct"},
			),

			BatchRuns: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "convreview_batch_runs_total",
					Help: "Batch analysis runs by trigger",
				},
				[]string{"trigger"},
			),
			BatchItems: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "convreview_batch_items_total",
					Help: "Batch items by result",
				},
				[]string{"result"},
			),
			BatchDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "convreview_batch_duration_seconds",
					Help:    "Batch analysis duration in seconds",
					Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to 68min
				},
			),

			CacheHits: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "convreview_cache_hits_total",
					Help: "Total number of score cache hits",
				},
			),
			CacheMisses: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "convreview_cache_misses_total",
					Help: "Total number of score cache misses",
				},
			),
			EventsPublished: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "convreview_events_published_total",
					Help: "Total number of events published",
				},
				[]string{"event_type"},
			),
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "convreview_http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "convreview_http_request_duration_seconds",
					Help:    "HTTP request duration in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "path"},
			),
		}
	})

	return sharedMetrics
}

// RecordModelRequest records one completion request
func (m *Metrics) RecordModelRequest(purpose, model string, success bool, latencyMs int64, tokens int64) {
	m.ModelRequests.WithLabelValues(purpose, model, strconv.FormatBool(success)).Inc()
	m.ModelLatency.WithLabelValues(purpose, model).Observe(float64(latencyMs) / 1000.0)
	if tokens > 0 {
		m.ModelTokens.WithLabelValues(purpose, model).Add(float64(tokens))
	}
}

// RecordAnalysisCreated records a freshly scored analysis
func (m *Metrics) RecordAnalysisCreated(status, priority string, score int) {
	m.AnalysesCreated.WithLabelValues(status, priority).Inc()
	m.AnalysisScores.Observe(float64(score))
}

// RecordTransition records an analysis status transition
func (m *Metrics) RecordTransition(fromStatus, toStatus string) {
	m.AnalysisTransition.WithLabelValues(fromStatus, toStatus).Inc()
}

// RecordBatch records a completed batch run
func (m *Metrics) RecordBatch(trigger string, succeeded, failed int, seconds float64) {
	m.BatchRuns.WithLabelValues(trigger).Inc()
	m.BatchItems.WithLabelValues("success").Add(float64(succeeded))
	m.BatchItems.WithLabelValues("error").Add(float64(failed))
	m.BatchDuration.Observe(seconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}
