// Package middleware provides the observability plumbing shared by the
// pipeline: a Prometheus metrics collector and OpenTelemetry stage spans.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-lessonforge/internal/ports"
)

// Metric names understood by PrometheusMetrics. Anything else falls through
// to the generic operation counter or state gauge.
const (
	MetricLLMLatency    = "llm_latency_seconds"
	MetricLLMRequests   = "llm_requests_total"
	MetricLLMTokens     = "llm_tokens_total"
	MetricStageOutcomes = "stage_outcomes_total"
	MetricLessons       = "lessons_total"
	MetricQualityScore  = "quality_score"
)

const unknownLabel = "unknown"

// PrometheusMetrics implements the MetricsCollector interface using Prometheus.
// It covers model traffic, per-stage timings and outcomes, lesson results and
// the quality scores handed out by the validation model.
type PrometheusMetrics struct {
	llmLatency    *prometheus.HistogramVec
	llmRequests   *prometheus.CounterVec
	llmTokens     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageOutcomes *prometheus.CounterVec
	lessons       *prometheus.CounterVec
	qualityScore  *prometheus.HistogramVec
	operations    *prometheus.CounterVec
	histograms    *prometheus.HistogramVec
	systemGauges  *prometheus.GaugeVec
}

// NewPrometheusMetrics registers every vector with reg. Passing
// prometheus.DefaultRegisterer exposes them through promhttp.Handler;
// tests pass a fresh prometheus.NewRegistry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	llmLabels := []string{"provider", "role", "model", "status"}

	return &PrometheusMetrics{
		llmLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricLLMLatency,
				Help:    "Latency of generation and validation model calls.",
				Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
			},
			llmLabels,
		),
		llmRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricLLMRequests,
				Help: "Model calls by provider, role and outcome.",
			},
			llmLabels,
		),
		llmTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricLLMTokens,
				Help: "Tokens consumed by model calls.",
			},
			[]string{"provider", "role", "model", "token_type"},
		),

		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_stage_duration_seconds",
				Help:    "Time spent in each lesson pipeline stage.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage", "exercise_type"},
		),
		stageOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_stage_outcomes_total",
				Help: "Stage completions by outcome; failures carry their ledger error type.",
			},
			[]string{"stage", "exercise_type", "outcome"},
		),
		lessons: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_lessons_total",
				Help: "Lesson instances that finished, by final status.",
			},
			[]string{"exercise_type", "status"},
		),
		qualityScore: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_quality_score",
				Help:    "Overall quality scores after vetoes.",
				Buckets: prometheus.LinearBuckets(1, 1, 10),
			},
			[]string{"exercise_type"},
		),

		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_operations_total",
				Help: "Counters without a dedicated vector.",
			},
			[]string{"operation", "exercise_type"},
		),
		histograms: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_observations",
				Help:    "Histogram values without a dedicated vector.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"metric", "exercise_type"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pipeline_state",
				Help: "Current scheduler state such as busy workers and pending lessons.",
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency records how long a pipeline stage took. The operation is
// the stage name.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	pm.stageDuration.WithLabelValues(operation, label(labels, "exercise_type")).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case MetricLLMRequests:
		pm.llmRequests.WithLabelValues(llmLabelValues(labels)...).Add(value)
	case MetricLLMTokens:
		pm.llmTokens.WithLabelValues(
			label(labels, "provider"),
			label(labels, "role"),
			label(labels, "model"),
			label(labels, "token_type"),
		).Add(value)
	case MetricStageOutcomes:
		pm.stageOutcomes.WithLabelValues(
			label(labels, "stage"),
			label(labels, "exercise_type"),
			label(labels, "outcome"),
		).Add(value)
	case MetricLessons:
		pm.lessons.WithLabelValues(label(labels, "exercise_type"), label(labels, "status")).Add(value)
	default:
		pm.operations.WithLabelValues(metric, label(labels, "exercise_type")).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, _ map[string]string,
) {
	pm.systemGauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case MetricLLMLatency:
		pm.llmLatency.WithLabelValues(llmLabelValues(labels)...).Observe(value)
	case MetricQualityScore:
		pm.qualityScore.WithLabelValues(label(labels, "exercise_type")).Observe(value)
	default:
		pm.histograms.WithLabelValues(metric, label(labels, "exercise_type")).Observe(value)
	}
}

func llmLabelValues(labels map[string]string) []string {
	return []string{
		label(labels, "provider"),
		label(labels, "role"),
		label(labels, "model"),
		label(labels, "status"),
	}
}

func label(labels map[string]string, key string) string {
	if v, ok := labels[key]; ok && v != "" {
		return v
	}
	return unknownLabel
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
