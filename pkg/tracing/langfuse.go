package tracing

import (
	"context"
	"fmt"
	"time"

	"github.com/henomis/langfuse-go"
	"github.com/henomis/langfuse-go/model"

	"github.com/run-bigpig/grok-textgen/pkg/multitenancy"
)

// LangfuseTracer records generations in Langfuse
type LangfuseTracer struct {
	client      *langfuse.Langfuse
	enabled     bool
	environment string
}

// LangfuseConfig contains configuration for Langfuse.
// Credentials and host are read by the Langfuse client from
// LANGFUSE_PUBLIC_KEY, LANGFUSE_SECRET_KEY and LANGFUSE_HOST.
type LangfuseConfig struct {
	// Enabled determines whether Langfuse tracing is enabled
	Enabled bool

	// Environment is the environment name (e.g., "production", "staging")
	Environment string
}

// NewLangfuseTracer creates a new Langfuse tracer
func NewLangfuseTracer(config LangfuseConfig) (*LangfuseTracer, error) {
	if !config.Enabled {
		return &LangfuseTracer{
			enabled: false,
		}, nil
	}

	return &LangfuseTracer{
		client:      langfuse.New(context.Background()),
		enabled:     true,
		environment: config.Environment,
	}, nil
}

// Enabled reports whether traces are sent
func (t *LangfuseTracer) Enabled() bool {
	return t.enabled
}

func (t *LangfuseTracer) metadata(ctx context.Context, extra map[string]interface{}) model.M {
	m := make(model.M, len(extra)+2)
	for k, v := range extra {
		m[k] = v
	}
	for k, v := range multitenancy.Attributes(ctx) {
		m[k] = v
	}
	m["environment"] = t.environment
	return m
}

// TraceGeneration traces an LLM generation
func (t *LangfuseTracer) TraceGeneration(ctx context.Context, modelName string, prompt string, response string, startTime time.Time, endTime time.Time, metadata map[string]interface{}) (string, error) {
	if !t.enabled {
		return "", nil
	}

	generation := &model.Generation{
		Name:      fmt.Sprintf("generation-%d", startTime.UnixNano()),
		StartTime: &startTime,
		EndTime:   &endTime,
		Model:     modelName,
		Input: []model.M{
			{
				"prompt": prompt,
			},
		},
		Output: model.M{
			"completion": response,
		},
		Metadata: t.metadata(ctx, metadata),
	}

	var parentID string
	created, err := t.client.Generation(generation, &parentID)
	if err != nil {
		return "", fmt.Errorf("failed to create Langfuse generation: %w", err)
	}

	return created.ID, nil
}

// TraceEvent traces an event
func (t *LangfuseTracer) TraceEvent(ctx context.Context, name string, input interface{}, output interface{}, level string, metadata map[string]interface{}) (string, error) {
	if !t.enabled {
		return "", nil
	}

	event := &model.Event{
		Name:     name,
		Input:    input,
		Output:   output,
		Level:    model.ObservationLevel(level),
		Metadata: t.metadata(ctx, metadata),
	}

	var parentID string
	created, err := t.client.Event(event, &parentID)
	if err != nil {
		return "", fmt.Errorf("failed to create Langfuse event: %w", err)
	}

	return created.ID, nil
}

// Flush sends buffered observations
func (t *LangfuseTracer) Flush(ctx context.Context) {
	if !t.enabled {
		return
	}
	t.client.Flush(ctx)
}
