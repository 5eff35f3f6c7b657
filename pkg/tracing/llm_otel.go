package tracing

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/run-bigpig/grok-textgen/pkg/interfaces"
	"github.com/run-bigpig/grok-textgen/pkg/llm"
)

// TextGeneratorOTelMiddleware wraps a TextGenerator with OpenTelemetry tracing
type TextGeneratorOTelMiddleware struct {
	generator interfaces.TextGenerator
	tracer    *OTelTracer
}

// NewTextGeneratorOTelMiddleware creates a new TextGeneratorOTelMiddleware
func NewTextGeneratorOTelMiddleware(generator interfaces.TextGenerator, tracer *OTelTracer) *TextGeneratorOTelMiddleware {
	return &TextGeneratorOTelMiddleware{
		generator: generator,
		tracer:    tracer,
	}
}

// GenerateText implements interfaces.TextGenerator.GenerateText
func (m *TextGeneratorOTelMiddleware) GenerateText(ctx context.Context, prompt string, overrides *llm.Overrides, parse bool) (*llm.Result, error) {
	attributes := map[string]string{
		"llm.provider":  m.generator.Name(),
		"prompt.length": strconv.Itoa(len(prompt)),
		"parse":         strconv.FormatBool(parse),
	}

	ctx, span := m.tracer.StartSpan(ctx, "llm.generate_text", attributes)

	result, err := m.generator.GenerateText(ctx, prompt, overrides, parse)
	if err == nil {
		span.SetAttributes(attribute.Int("response.length", len(result.Text)))
	}

	m.tracer.EndSpan(span, err)
	return result, err
}

// BatchGenerate implements interfaces.TextGenerator.BatchGenerate
func (m *TextGeneratorOTelMiddleware) BatchGenerate(ctx context.Context, prompts []string, overrides []llm.Overrides, parse []bool) ([]llm.BatchResult, error) {
	attributes := map[string]string{
		"llm.provider": m.generator.Name(),
		"batch.size":   fmt.Sprintf("%d", len(prompts)),
	}

	ctx, span := m.tracer.StartSpan(ctx, "llm.batch_generate", attributes)

	results, err := m.generator.BatchGenerate(ctx, prompts, overrides, parse)
	if err == nil {
		failed := 0
		for _, r := range results {
			if !r.OK() {
				failed++
			}
		}
		span.SetAttributes(attribute.Int("batch.failed", failed))
	}

	m.tracer.EndSpan(span, err)
	return results, err
}

// Name implements interfaces.TextGenerator.Name
func (m *TextGeneratorOTelMiddleware) Name() string {
	return m.generator.Name()
}
