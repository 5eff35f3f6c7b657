package grok

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/sashabaranov/go-openai"

	"github.com/run-bigpig/grok-textgen/pkg/llm"
	"github.com/run-bigpig/grok-textgen/pkg/logging"
	"github.com/run-bigpig/grok-textgen/pkg/multitenancy"
)

const (
	// DefaultBaseURL is the xAI OpenAI-compatible endpoint
	DefaultBaseURL = "https://api.x.ai/v1"

	// DefaultAPIKeyEnv is the environment variable holding the xAI API key
	DefaultAPIKeyEnv = "XAI_API_KEY"
)

// Connection is the subset of the OpenAI SDK client used to talk to the provider.
// *openai.Client satisfies it.
type Connection interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ConnectionFactory builds a Connection from an SDK configuration.
// It must not perform network I/O.
type ConnectionFactory func(config openai.ClientConfig) Connection

func newOpenAIConnection(config openai.ClientConfig) Connection {
	return openai.NewClientWithConfig(config)
}

// Client generates text with Grok models through the OpenAI-compatible API.
// The credential and the SDK client are created on first use and reused
// for the lifetime of the Client.
type Client struct {
	config         llm.Config
	params         llm.Parameters
	paramsErr      error
	logger         logging.Logger
	baseURL        string
	apiKeyEnv      string
	lookupEnv      func(string) (string, bool)
	httpClient     *http.Client
	newConnection  ConnectionFactory
	responseFormat *llm.ResponseFormat

	mu     sync.Mutex
	apiKey string
	conn   Connection
}

// Option represents an option for configuring the Grok client
type Option func(*Client)

// WithLogger sets the logger for the client
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithBaseURL points the client at another OpenAI-compatible endpoint
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithAPIKeyEnv sets the environment variable the credential is read from
func WithAPIKeyEnv(name string) Option {
	return func(c *Client) {
		c.apiKeyEnv = name
	}
}

// WithLookupEnv replaces os.LookupEnv for credential resolution
func WithLookupEnv(lookup func(string) (string, bool)) Option {
	return func(c *Client) {
		c.lookupEnv = lookup
	}
}

// WithHTTPClient sets the HTTP client used by the SDK
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithConnectionFactory replaces the function that builds the SDK client
func WithConnectionFactory(factory ConnectionFactory) Option {
	return func(c *Client) {
		c.newConnection = factory
	}
}

// WithResponseFormat sets the response format requested in parse mode
// when the call does not specify one
func WithResponseFormat(format llm.ResponseFormat) Option {
	return func(c *Client) {
		c.responseFormat = &format
	}
}

// GetDefaultConfig returns the default Grok configuration
func GetDefaultConfig() llm.Config {
	return llm.DefaultConfig()
}

// NewClient creates a new Grok client. A nil config means defaults; unset
// fields of a non-nil config fall back to defaults. No environment or network
// access happens here.
func NewClient(config *llm.Config, options ...Option) *Client {
	cfg := llm.DefaultConfig()
	if config != nil {
		cfg = config.WithDefaults()
	}

	client := &Client{
		config:        cfg,
		logger:        logging.New(),
		baseURL:       DefaultBaseURL,
		apiKeyEnv:     DefaultAPIKeyEnv,
		lookupEnv:     os.LookupEnv,
		newConnection: newOpenAIConnection,
	}

	for _, option := range options {
		option(client)
	}

	client.params, client.paramsErr = cfg.Parameters.Normalize()

	return client
}

// Name returns the provider name
func (c *Client) Name() string {
	return "grok"
}

// Config returns a copy of the effective configuration
func (c *Client) Config() llm.Config {
	cfg := c.config
	cfg.Parameters = c.config.Parameters.Clone()
	return cfg
}

// ResolveCredential returns the API key, reading it from the environment on
// first use. A missing key is a configuration error and is not cached.
func (c *Client) ResolveCredential() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolveCredentialLocked()
}

func (c *Client) resolveCredentialLocked() (string, error) {
	if c.apiKey != "" {
		return c.apiKey, nil
	}

	apiKey, _ := c.lookupEnv(c.apiKeyEnv)
	if apiKey == "" {
		return "", &llm.ConfigurationError{
			Msg: fmt.Sprintf("a valid API key for Grok is missing, set %s", c.apiKeyEnv),
			Err: llm.ErrMissingCredential,
		}
	}

	c.apiKey = apiKey
	return apiKey, nil
}

// Connection returns the SDK client, building it on first use
func (c *Client) Connection() (Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return c.conn, nil
	}

	apiKey, err := c.resolveCredentialLocked()
	if err != nil {
		return nil, err
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = c.baseURL
	config.HTTPClient = withBodyPatches(c.httpClient)

	c.conn = c.newConnection(config)
	return c.conn, nil
}

// GenerateText sends one chat completion request for prompt.
// overrides may be nil. In parse mode the full first message is returned in
// Result.Message; otherwise only its text.
func (c *Client) GenerateText(ctx context.Context, prompt string, overrides *llm.Overrides, parse bool) (*llm.Result, error) {
	conn, err := c.Connection()
	if err != nil {
		c.logger.Error(ctx, "Grok client is not configured", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	genReq, err := c.BuildRequest(prompt, overrides, parse)
	if err != nil {
		return nil, err
	}

	req, patches := toChatCompletionRequest(ctx, genReq)
	if len(patches) > 0 {
		ctx = contextWithBodyPatches(ctx, patches)
	}

	c.logger.Debug(ctx, "Executing Grok API request", map[string]interface{}{
		"model":           req.Model,
		"temperature":     req.Temperature,
		"max_tokens":      req.MaxTokens,
		"top_p":           req.TopP,
		"messages":        len(req.Messages),
		"response_format": req.ResponseFormat != nil,
		"extra_fields":    len(patches),
		"parse":           parse,
	})

	resp, err := conn.CreateChatCompletion(ctx, req)
	if err != nil {
		c.logger.Error(ctx, "Error from Grok API", map[string]interface{}{
			"error": err.Error(),
			"model": req.Model,
		})
		return nil, llm.NewGenerationError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, llm.NewGenerationError(errors.New("no completions returned"))
	}

	message := resp.Choices[0].Message
	result := &llm.Result{Text: message.Content}
	if parse {
		result.Message = &llm.Message{
			Role:             message.Role,
			Content:          message.Content,
			Refusal:          message.Refusal,
			ReasoningContent: message.ReasoningContent,
		}
	}

	c.logger.Debug(ctx, "Successfully received response from Grok", map[string]interface{}{
		"model":         req.Model,
		"finish_reason": string(resp.Choices[0].FinishReason),
	})

	return result, nil
}

// BuildRequest assembles the request for prompt. Overrides take precedence
// over the configured parameters, which take precedence over the computed
// base fields.
func (c *Client) BuildRequest(prompt string, overrides *llm.Overrides, parse bool) (llm.GenerationRequest, error) {
	if c.paramsErr != nil {
		return llm.GenerationRequest{}, &llm.ConfigurationError{Msg: "invalid kwargs", Err: c.paramsErr}
	}

	systemMessage := c.config.SystemMessage
	params := c.config.BaseParameters().Merge(c.params)

	if overrides != nil {
		if overrides.SystemMessage != nil {
			systemMessage = *overrides.SystemMessage
		}
		over, err := overrides.Parameters.Normalize()
		if err != nil {
			return llm.GenerationRequest{}, llm.NewGenerationError(err)
		}
		params = params.Merge(over)
	}

	if parse && params.ResponseFormat == nil && c.responseFormat != nil {
		if _, raw := params.Extra["response_format"]; !raw {
			format := *c.responseFormat
			params.ResponseFormat = &format
		}
	}

	return llm.GenerationRequest{
		Model: c.config.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemMessage},
			{Role: llm.RoleUser, Content: prompt},
		},
		Parameters: params,
	}, nil
}

// toChatCompletionRequest maps a request onto the SDK type. Fields the SDK
// cannot carry are returned as body patches.
func toChatCompletionRequest(ctx context.Context, genReq llm.GenerationRequest) (openai.ChatCompletionRequest, map[string]interface{}) {
	messages := make([]openai.ChatCompletionMessage, len(genReq.Messages))
	for i, msg := range genReq.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	req := openai.ChatCompletionRequest{
		Model:    genReq.Model,
		Messages: messages,
	}
	patches := make(map[string]interface{})

	p := genReq.Parameters
	if p.Temperature != nil {
		req.Temperature = float32(*p.Temperature)
		// omitempty would drop it and the provider default would apply
		if *p.Temperature == 0 {
			patches["temperature"] = 0
		}
	}
	if p.MaxTokens != nil {
		req.MaxTokens = *p.MaxTokens
	}
	if p.TopP != nil {
		req.TopP = float32(*p.TopP)
		if *p.TopP == 0 {
			patches["top_p"] = 0
		}
	}
	if p.FrequencyPenalty != nil {
		req.FrequencyPenalty = float32(*p.FrequencyPenalty)
	}
	if p.PresencePenalty != nil {
		req.PresencePenalty = float32(*p.PresencePenalty)
	}
	if p.Stop != nil {
		req.Stop = p.Stop
	}
	if p.Seed != nil {
		seed := *p.Seed
		req.Seed = &seed
	}
	if p.N != nil {
		req.N = *p.N
	}
	if p.User != nil {
		req.User = *p.User
	} else if orgID, err := multitenancy.GetOrgID(ctx); err == nil {
		req.User = orgID
	}
	if p.ReasoningEffort != nil {
		req.ReasoningEffort = *p.ReasoningEffort
	}
	if p.ResponseFormat != nil {
		req.ResponseFormat = toResponseFormat(*p.ResponseFormat)
	}

	for k, v := range p.Extra {
		patches[k] = v
	}

	return req, patches
}

func toResponseFormat(format llm.ResponseFormat) *openai.ChatCompletionResponseFormat {
	out := &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatType(format.Type),
	}
	if format.Type == llm.ResponseFormatJSONSchema || format.Schema != nil {
		out.Type = openai.ChatCompletionResponseFormatTypeJSONSchema
		name := format.Name
		if name == "" {
			name = "response"
		}
		out.JSONSchema = &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   name,
			Strict: format.Strict,
		}
		if format.Schema != nil {
			out.JSONSchema.Schema = format.Schema
		}
	}
	return out
}
