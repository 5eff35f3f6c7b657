package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/grok-textgen/pkg/llm"
)

type stubGenerator struct {
	err error
}

func (s *stubGenerator) GenerateText(_ context.Context, prompt string, _ *llm.Overrides, _ bool) (*llm.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Result{Text: prompt}, nil
}

func (s *stubGenerator) BatchGenerate(_ context.Context, prompts []string, overrides []llm.Overrides, _ []bool) ([]llm.BatchResult, error) {
	if overrides != nil && len(overrides) != len(prompts) {
		return nil, &llm.ValidationError{Field: "overrides", Msg: "length mismatch: overrides"}
	}
	results := make([]llm.BatchResult, len(prompts))
	for i, p := range prompts {
		if p == "fail" {
			results[i] = llm.BatchResult{Err: llm.NewGenerationError(errors.New("boom"))}
			continue
		}
		results[i] = llm.BatchResult{Result: &llm.Result{Text: p}}
	}
	return results, nil
}

func (s *stubGenerator) Name() string { return "stub" }

func newTestMetrics(t *testing.T) (*GenerationMetrics, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	return NewGenerationMetrics(Config{Namespace: "test", LatencyBuckets: []float64{0.1, 1}}, registry), registry
}

func TestRecordRequest(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordRequest("grok", "grok-2-latest", 50*time.Millisecond, nil)
	m.RecordRequest("grok", "grok-2-latest", time.Second, llm.NewGenerationError(errors.New("429")))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("grok", "grok-2-latest", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("grok", "grok-2-latest", StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("grok", ErrorTypeGeneration)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.latency))
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"configuration", &llm.ConfigurationError{Err: llm.ErrMissingCredential}, ErrorTypeConfiguration},
		{"validation", &llm.ValidationError{Msg: "length mismatch: overrides"}, ErrorTypeValidation},
		{"generation", llm.NewGenerationError(errors.New("down")), ErrorTypeGeneration},
		{"other", errors.New("plain"), ErrorTypeOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorType(tt.err))
		})
	}
}

func TestMiddlewareGenerateText(t *testing.T) {
	m, _ := newTestMetrics(t)
	mw := NewTextGeneratorMiddleware(&stubGenerator{}, m, "grok-2-latest")

	result, err := mw.GenerateText(context.Background(), "hi", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "hi", result.Text)
	assert.Equal(t, "stub", mw.Name())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("stub", "grok-2-latest", StatusSuccess)))

	failing := NewTextGeneratorMiddleware(&stubGenerator{err: &llm.ConfigurationError{Err: llm.ErrMissingCredential}}, m, "grok-2-latest")
	_, err = failing.GenerateText(context.Background(), "hi", nil, false)
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("stub", ErrorTypeConfiguration)))
}

func TestMiddlewareBatchGenerate(t *testing.T) {
	m, _ := newTestMetrics(t)
	mw := NewTextGeneratorMiddleware(&stubGenerator{}, m, "grok-2-latest")

	results, err := mw.BatchGenerate(context.Background(), []string{"a", "fail", "b"}, nil, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.batchItems.WithLabelValues("stub", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batchItems.WithLabelValues("stub", StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("stub", ErrorTypeGeneration)))

	_, err = mw.BatchGenerate(context.Background(), []string{"a"}, []llm.Overrides{{}, {}}, nil)
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("stub", ErrorTypeValidation)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("stub", "grok-2-latest", StatusError)))
}

func TestMetricsAreRegistered(t *testing.T) {
	m, registry := newTestMetrics(t)
	m.RecordRequest("grok", "grok-2-latest", time.Millisecond, nil)
	m.RecordBatchItem("grok", nil)

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "test_generation_requests_total")
	assert.Contains(t, names, "test_generation_latency_seconds")
	assert.Contains(t, names, "test_batch_items_total")
}
