package tracing

import (
	"context"
	"time"

	"github.com/run-bigpig/grok-textgen/pkg/interfaces"
	"github.com/run-bigpig/grok-textgen/pkg/llm"
	"github.com/run-bigpig/grok-textgen/pkg/logging"
)

// TextGeneratorLangfuseMiddleware records every generation in Langfuse.
// Tracing failures are logged and never returned to the caller.
type TextGeneratorLangfuseMiddleware struct {
	generator interfaces.TextGenerator
	tracer    *LangfuseTracer
	model     string
	logger    logging.Logger
}

// NewTextGeneratorLangfuseMiddleware creates a new Langfuse middleware.
// modelName is reported on each generation.
func NewTextGeneratorLangfuseMiddleware(generator interfaces.TextGenerator, tracer *LangfuseTracer, modelName string, logger logging.Logger) *TextGeneratorLangfuseMiddleware {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &TextGeneratorLangfuseMiddleware{
		generator: generator,
		tracer:    tracer,
		model:     modelName,
		logger:    logger,
	}
}

// GenerateText implements interfaces.TextGenerator.GenerateText
func (m *TextGeneratorLangfuseMiddleware) GenerateText(ctx context.Context, prompt string, overrides *llm.Overrides, parse bool) (*llm.Result, error) {
	startTime := time.Now()
	result, err := m.generator.GenerateText(ctx, prompt, overrides, parse)
	m.record(ctx, prompt, result, err, startTime, time.Now(), map[string]interface{}{"parse": parse})
	return result, err
}

// BatchGenerate implements interfaces.TextGenerator.BatchGenerate.
// Each item is recorded as its own generation.
func (m *TextGeneratorLangfuseMiddleware) BatchGenerate(ctx context.Context, prompts []string, overrides []llm.Overrides, parse []bool) ([]llm.BatchResult, error) {
	startTime := time.Now()
	results, err := m.generator.BatchGenerate(ctx, prompts, overrides, parse)
	endTime := time.Now()
	if err != nil {
		m.record(ctx, "", nil, err, startTime, endTime, map[string]interface{}{"batch_size": len(prompts)})
		return results, err
	}

	for i, r := range results {
		m.record(ctx, prompts[i], r.Result, r.Err, startTime, endTime, map[string]interface{}{
			"batch_index": i,
			"batch_size":  len(prompts),
		})
	}
	return results, nil
}

// Name implements interfaces.TextGenerator.Name
func (m *TextGeneratorLangfuseMiddleware) Name() string {
	return m.generator.Name()
}

func (m *TextGeneratorLangfuseMiddleware) record(ctx context.Context, prompt string, result *llm.Result, err error, startTime, endTime time.Time, metadata map[string]interface{}) {
	if !m.tracer.Enabled() {
		return
	}

	metadata["provider"] = m.generator.Name()
	if err == nil && result != nil {
		if _, traceErr := m.tracer.TraceGeneration(ctx, m.model, prompt, result.Text, startTime, endTime, metadata); traceErr != nil {
			m.logger.Warn(ctx, "Failed to trace generation", map[string]interface{}{"error": traceErr.Error()})
		}
		return
	}

	if err != nil {
		metadata["error"] = err.Error()
	}
	if _, traceErr := m.tracer.TraceEvent(ctx, "llm_error", prompt, nil, "ERROR", metadata); traceErr != nil {
		m.logger.Warn(ctx, "Failed to trace error", map[string]interface{}{"error": traceErr.Error()})
	}
}
