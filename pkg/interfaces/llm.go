package interfaces

import (
	"context"

	"github.com/run-bigpig/grok-textgen/pkg/llm"
)

// TextGenerator represents a text-generation provider
type TextGenerator interface {
	// GenerateText generates text for a single prompt. overrides may be nil.
	GenerateText(ctx context.Context, prompt string, overrides *llm.Overrides, parse bool) (*llm.Result, error)

	// BatchGenerate generates text for each prompt in order, recording
	// per-item failures in the returned slice
	BatchGenerate(ctx context.Context, prompts []string, overrides []llm.Overrides, parse []bool) ([]llm.BatchResult, error)

	// Name returns the name of the provider
	Name() string
}
