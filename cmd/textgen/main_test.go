package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/run-bigpig/grok-textgen/pkg/llm"
)

func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		prompt := gjson.GetBytes(body, "messages.1.content").String()
		if prompt == "fail" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error": {"message": "internal", "type": "server_error"}}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		response := gopenai.ChatCompletionResponse{
			Choices: []gopenai.ChatCompletionChoice{{
				Message: gopenai.ChatCompletionMessage{
					Role:    "assistant",
					Content: gjson.GetBytes(body, "model").String() + ": " + prompt,
				},
			}},
		}
		require.NoError(t, json.NewEncoder(w).Encode(response))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRunSinglePrompt(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("XAI_API_KEY", "test-key")
	server := newEchoServer(t)

	var stdout, stderr bytes.Buffer
	cli := &CLI{BaseURL: server.URL, LogLevel: "error", Prompts: []string{"hello"}}
	require.NoError(t, run(context.Background(), cli, strings.NewReader(""), &stdout, &stderr))

	assert.Equal(t, "grok-2-latest: hello\n", stdout.String())
}

func TestRunBatchFromStdinWithConfig(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("XAI_API_KEY", "test-key")
	server := newEchoServer(t)

	configPath := filepath.Join(dir, "grok.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("model: grok-beta\n"), 0600))

	var stdout, stderr bytes.Buffer
	cli := &CLI{BaseURL: server.URL, LogLevel: "error", Config: configPath}
	stdin := strings.NewReader("first\n\nfail\nsecond\n")
	require.NoError(t, run(context.Background(), cli, stdin, &stdout, &stderr))

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "[0] grok-beta: first", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "[1] Error:"), lines[1])
	assert.Equal(t, "[2] grok-beta: second", lines[2])
}

func TestRunParseMode(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("XAI_API_KEY", "test-key")
	server := newEchoServer(t)

	var stdout, stderr bytes.Buffer
	cli := &CLI{BaseURL: server.URL, LogLevel: "error", Parse: true, Prompts: []string{"hi"}}
	require.NoError(t, run(context.Background(), cli, nil, &stdout, &stderr))

	assert.Equal(t, "assistant", gjson.Get(stdout.String(), "role").String())
	assert.Equal(t, "grok-2-latest: hi", gjson.Get(stdout.String(), "content").String())
}

func TestRunOrgIDIsSentAsUser(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("XAI_API_KEY", "test-key")

	var users []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		users = append(users, gjson.GetBytes(body, "user").String())

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(gopenai.ChatCompletionResponse{
			Choices: []gopenai.ChatCompletionChoice{{Message: gopenai.ChatCompletionMessage{Role: "assistant", Content: "ok"}}},
		}))
	}))
	t.Cleanup(server.Close)

	var stdout, stderr bytes.Buffer
	cli := &CLI{BaseURL: server.URL, LogLevel: "error", OrgID: " acme ", Prompts: []string{"hi"}}
	require.NoError(t, run(context.Background(), cli, nil, &stdout, &stderr))

	cli.OrgID = ""
	require.NoError(t, run(context.Background(), cli, nil, &stdout, &stderr))

	assert.Equal(t, []string{"acme", ""}, users)
}

func TestRunMissingCredential(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("XAI_API_KEY", "")

	var stdout, stderr bytes.Buffer
	cli := &CLI{BaseURL: "http://127.0.0.1:0", LogLevel: "error", Prompts: []string{"hi"}}
	err := run(context.Background(), cli, nil, &stdout, &stderr)
	require.Error(t, err)
	assert.True(t, errors.Is(err, llm.ErrMissingCredential))
}

func TestRunNoPrompts(t *testing.T) {
	chdir(t, t.TempDir())

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), &CLI{LogLevel: "error"}, strings.NewReader("\n"), &stdout, &stderr)
	assert.EqualError(t, err, "no prompts given")
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent to testing.T.Chdir from Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
