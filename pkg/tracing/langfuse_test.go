package tracing

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/grok-textgen/pkg/logging"
)

// langfuseServer collects ingestion payloads sent by the Langfuse client
type langfuseServer struct {
	mu       sync.Mutex
	bodies   []string
	paths    []string
	auth     []string
	failWith int
}

func newLangfuseServer(t *testing.T, failWith int) *langfuseServer {
	t.Helper()
	s := &langfuseServer{failWith: failWith}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.bodies = append(s.bodies, string(body))
		s.paths = append(s.paths, r.URL.Path)
		s.auth = append(s.auth, r.Header.Get("Authorization"))
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if s.failWith != 0 {
			w.WriteHeader(s.failWith)
			_, _ = w.Write([]byte(`{"message": "unavailable"}`))
			return
		}
		_, _ = w.Write([]byte(`{"successes": [], "errors": []}`))
	}))
	t.Cleanup(server.Close)

	t.Setenv("LANGFUSE_HOST", server.URL)
	t.Setenv("LANGFUSE_PUBLIC_KEY", "pk-test")
	t.Setenv("LANGFUSE_SECRET_KEY", "sk-test")
	return s
}

func (s *langfuseServer) payload() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.bodies, "\n")
}

func flushWithin(t *testing.T, tracer *LangfuseTracer, timeout time.Duration) bool {
	t.Helper()
	done := make(chan struct{})
	go func() {
		tracer.Flush(context.Background())
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func TestLangfuseMiddlewareRecordsGenerationsAndErrors(t *testing.T) {
	server := newLangfuseServer(t, 0)

	tracer, err := NewLangfuseTracer(LangfuseConfig{Enabled: true, Environment: "test"})
	require.NoError(t, err)
	require.True(t, tracer.Enabled())

	mw := NewTextGeneratorLangfuseMiddleware(&stubGenerator{}, tracer, "grok-2-latest", logging.NewNop())
	result, err := mw.GenerateText(context.Background(), "hi", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "re: hi", result.Text)

	results, err := mw.BatchGenerate(context.Background(), []string{"fail"}, nil, nil)
	require.NoError(t, err)
	assert.False(t, results[0].OK())

	require.True(t, flushWithin(t, tracer, 10*time.Second), "flush did not finish")

	payload := server.payload()
	assert.Contains(t, payload, "re: hi")
	assert.Contains(t, payload, "grok-2-latest")
	assert.Contains(t, payload, "llm_error")
	assert.Contains(t, payload, "error generating text: boom")

	server.mu.Lock()
	defer server.mu.Unlock()
	require.NotEmpty(t, server.paths)
	for i := range server.paths {
		assert.True(t, strings.HasPrefix(server.paths[i], "/api/public"), server.paths[i])
		assert.True(t, strings.HasPrefix(server.auth[i], "Basic "), server.auth[i])
	}
}

func TestLangfuseMiddlewareIgnoresTracingFailures(t *testing.T) {
	newLangfuseServer(t, http.StatusServiceUnavailable)

	tracer, err := NewLangfuseTracer(LangfuseConfig{Enabled: true})
	require.NoError(t, err)

	var logs bytes.Buffer
	logger := logging.New(logging.WithOutput(&logs), logging.WithLevel("debug"))
	mw := NewTextGeneratorLangfuseMiddleware(&stubGenerator{}, tracer, "grok-2-latest", logger)

	result, err := mw.GenerateText(context.Background(), "hi", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "re: hi", result.Text)

	down := NewTextGeneratorLangfuseMiddleware(&stubGenerator{err: errors.New("down")}, tracer, "grok-2-latest", logger)
	_, err = down.GenerateText(context.Background(), "hi", nil, false)
	assert.EqualError(t, err, "down", "the generator error is returned unchanged")

	flushWithin(t, tracer, 10*time.Second)
}
