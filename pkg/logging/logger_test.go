package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/grok-textgen/pkg/multitenancy"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var lines []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		lines = append(lines, entry)
	}
	return lines
}

func TestZeroLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithOutput(&buf), WithLevel("debug"))

	ctx := multitenancy.WithOrgID(context.Background(), "acme")
	ctx = WithRequestID(ctx, "req-1")
	logger.Info(ctx, "hello", map[string]interface{}{"model": "grok-2-latest"})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "hello", lines[0]["message"])
	assert.Equal(t, "acme", lines[0]["org_id"])
	assert.Equal(t, "req-1", lines[0]["request_id"])
	assert.Equal(t, "grok-2-latest", lines[0]["model"])
}

func TestZeroLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithOutput(&buf), WithLevel("warn"))
	ctx := context.Background()

	logger.Debug(ctx, "debug", nil)
	logger.Info(ctx, "info", nil)
	logger.Warn(ctx, "warn", nil)
	logger.Error(ctx, "error", nil)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn", lines[0]["message"])
	assert.Equal(t, "error", lines[1]["message"])
}

func TestNopLogger(t *testing.T) {
	logger := NewNop()
	logger.Error(context.Background(), "dropped", map[string]interface{}{"k": "v"})

	_, ok := RequestID(context.Background())
	assert.False(t, ok)
}
