// Package metrics exports Prometheus metrics for text generation.
//
// Metrics:
//   - <namespace>_generation_requests_total: generation calls by provider, model and status
//   - <namespace>_generation_errors_total: failed calls by provider and error type
//   - <namespace>_generation_latency_seconds: provider call latency
//   - <namespace>_batch_items_total: batch items by provider and status
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/run-bigpig/grok-textgen/pkg/interfaces"
	"github.com/run-bigpig/grok-textgen/pkg/llm"
)

// Status label values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error type label values
const (
	ErrorTypeConfiguration = "configuration"
	ErrorTypeValidation    = "validation"
	ErrorTypeGeneration    = "generation"
	ErrorTypeOther         = "other"
)

// Config contains configuration for the generation metrics
type Config struct {
	Namespace string
	Subsystem string

	// LatencyBuckets defaults to prometheus.DefBuckets
	LatencyBuckets []float64
}

// GenerationMetrics holds the generation collectors
type GenerationMetrics struct {
	requests   *prometheus.CounterVec
	errors     *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	batchItems *prometheus.CounterVec
}

// NewGenerationMetrics creates the collectors and registers them with registerer
func NewGenerationMetrics(cfg Config, registerer prometheus.Registerer) *GenerationMetrics {
	buckets := cfg.LatencyBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	m := &GenerationMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "generation_requests_total",
				Help:      "Total number of text generation calls",
			},
			[]string{"provider", "model", "status"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "generation_errors_total",
				Help:      "Total number of failed text generation calls by error type",
			},
			[]string{"provider", "error_type"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "generation_latency_seconds",
				Help:      "Text generation call latency in seconds",
				Buckets:   buckets,
			},
			[]string{"provider", "model"},
		),
		batchItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "batch_items_total",
				Help:      "Total number of batch items by outcome",
			},
			[]string{"provider", "status"},
		),
	}

	registerer.MustRegister(m.requests, m.errors, m.latency, m.batchItems)
	return m
}

// RecordRequest records one generation call
func (m *GenerationMetrics) RecordRequest(provider, model string, duration time.Duration, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
		m.errors.WithLabelValues(provider, ErrorType(err)).Inc()
	}
	m.requests.WithLabelValues(provider, model, status).Inc()
	m.latency.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordBatchItem records the outcome of one batch item
func (m *GenerationMetrics) RecordBatchItem(provider string, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
		m.errors.WithLabelValues(provider, ErrorType(err)).Inc()
	}
	m.batchItems.WithLabelValues(provider, status).Inc()
}

// ErrorType maps err to its error_type label value
func ErrorType(err error) string {
	switch {
	case llm.IsConfigurationError(err):
		return ErrorTypeConfiguration
	case llm.IsValidationError(err):
		return ErrorTypeValidation
	case llm.IsGenerationError(err):
		return ErrorTypeGeneration
	default:
		return ErrorTypeOther
	}
}

// TextGeneratorMiddleware records metrics for every call of a TextGenerator
type TextGeneratorMiddleware struct {
	generator interfaces.TextGenerator
	metrics   *GenerationMetrics
	model     string
}

// NewTextGeneratorMiddleware wraps generator. modelName is used as the model label.
func NewTextGeneratorMiddleware(generator interfaces.TextGenerator, metrics *GenerationMetrics, modelName string) *TextGeneratorMiddleware {
	return &TextGeneratorMiddleware{
		generator: generator,
		metrics:   metrics,
		model:     modelName,
	}
}

// GenerateText implements interfaces.TextGenerator.GenerateText
func (m *TextGeneratorMiddleware) GenerateText(ctx context.Context, prompt string, overrides *llm.Overrides, parse bool) (*llm.Result, error) {
	start := time.Now()
	result, err := m.generator.GenerateText(ctx, prompt, overrides, parse)
	m.metrics.RecordRequest(m.generator.Name(), m.model, time.Since(start), err)
	return result, err
}

// BatchGenerate implements interfaces.TextGenerator.BatchGenerate.
// A batch rejected before any item runs counts as one failed request.
func (m *TextGeneratorMiddleware) BatchGenerate(ctx context.Context, prompts []string, overrides []llm.Overrides, parse []bool) ([]llm.BatchResult, error) {
	start := time.Now()
	results, err := m.generator.BatchGenerate(ctx, prompts, overrides, parse)
	if err != nil {
		m.metrics.RecordRequest(m.generator.Name(), m.model, time.Since(start), err)
		return results, err
	}

	for _, r := range results {
		m.metrics.RecordBatchItem(m.generator.Name(), r.Err)
	}
	return results, nil
}

// Name implements interfaces.TextGenerator.Name
func (m *TextGeneratorMiddleware) Name() string {
	return m.generator.Name()
}
