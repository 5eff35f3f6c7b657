package grok

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/run-bigpig/grok-textgen/pkg/llm"
	"github.com/run-bigpig/grok-textgen/pkg/logging"
)

// BatchGenerate runs GenerateText for each prompt in order. overrides and
// parse may be nil; otherwise they must have one entry per prompt. A failed
// item is recorded in its slot and does not stop the batch. Only the length
// checks return an error.
func (c *Client) BatchGenerate(ctx context.Context, prompts []string, overrides []llm.Overrides, parse []bool) ([]llm.BatchResult, error) {
	if overrides != nil && len(overrides) != len(prompts) {
		return nil, &llm.ValidationError{
			Field: "overrides",
			Msg:   fmt.Sprintf("length mismatch: overrides has %d entries for %d prompts", len(overrides), len(prompts)),
		}
	}
	if parse != nil && len(parse) != len(prompts) {
		return nil, &llm.ValidationError{
			Field: "parse",
			Msg:   fmt.Sprintf("length mismatch: parse flags has %d entries for %d prompts", len(parse), len(prompts)),
		}
	}

	if _, ok := logging.RequestID(ctx); !ok {
		ctx = logging.WithRequestID(ctx, uuid.New().String())
	}

	results := make([]llm.BatchResult, len(prompts))
	failed := 0
	for i, prompt := range prompts {
		var itemOverrides *llm.Overrides
		if overrides != nil {
			itemOverrides = &overrides[i]
		}
		itemParse := parse != nil && parse[i]

		result, err := c.GenerateText(ctx, prompt, itemOverrides, itemParse)
		if err != nil {
			failed++
			c.logger.Warn(ctx, "Batch item failed", map[string]interface{}{
				"index": i,
				"error": err.Error(),
			})
			results[i] = llm.BatchResult{Err: err}
			continue
		}
		results[i] = llm.BatchResult{Result: result}
	}

	c.logger.Info(ctx, "Batch generation finished", map[string]interface{}{
		"prompts": len(prompts),
		"failed":  failed,
	})

	return results, nil
}
