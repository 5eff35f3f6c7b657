package llm

import (
	"encoding/json"
	"fmt"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Default configuration values
const (
	DefaultModel            = "grok-2-latest"
	DefaultSystemMessage    = "You are an advanced AI assistant."
	DefaultTemperature      = 1.0
	DefaultMaxTokens        = 4096
	DefaultFrequencyPenalty = 0.0
	DefaultPresencePenalty  = 0.0
)

// Message represents a message in a chat conversation
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
	Refusal string `json:"refusal,omitempty"`

	// ReasoningContent is returned by reasoning models alongside the answer
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

// Decode unmarshals the message content as JSON into v.
// It is meant for messages returned in parse mode.
func (m *Message) Decode(v interface{}) error {
	if m == nil {
		return fmt.Errorf("nil message")
	}
	if m.Refusal != "" {
		return fmt.Errorf("model refused to answer: %s", m.Refusal)
	}
	if err := json.Unmarshal([]byte(m.Content), v); err != nil {
		return fmt.Errorf("failed to decode message content: %w", err)
	}
	return nil
}

// Config is the client configuration. It is not modified after the client is built.
type Config struct {
	Model            string     `yaml:"model"`
	SystemMessage    string     `yaml:"system_message"`
	Temperature      float64    `yaml:"temperature"`
	MaxTokens        int        `yaml:"max_tokens"`
	FrequencyPenalty float64    `yaml:"frequency_penalty"`
	PresencePenalty  float64    `yaml:"presence_penalty"`
	Parameters       Parameters `yaml:"kwargs,omitempty"` // Extra request parameters applied to every call
}

// DefaultConfig returns the default client configuration.
// Every call returns a fresh value.
func DefaultConfig() Config {
	return Config{
		Model:            DefaultModel,
		SystemMessage:    DefaultSystemMessage,
		Temperature:      DefaultTemperature,
		MaxTokens:        DefaultMaxTokens,
		FrequencyPenalty: DefaultFrequencyPenalty,
		PresencePenalty:  DefaultPresencePenalty,
	}
}

// WithDefaults returns a copy of c where every unset field holds its default.
// Zero numbers count as unset; an explicit zero temperature goes through
// Parameters.Temperature instead.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Model != "" {
		d.Model = c.Model
	}
	if c.SystemMessage != "" {
		d.SystemMessage = c.SystemMessage
	}
	if c.Temperature != 0 {
		d.Temperature = c.Temperature
	}
	if c.MaxTokens > 0 {
		d.MaxTokens = c.MaxTokens
	}
	if c.FrequencyPenalty != 0 {
		d.FrequencyPenalty = c.FrequencyPenalty
	}
	if c.PresencePenalty != 0 {
		d.PresencePenalty = c.PresencePenalty
	}
	d.Parameters = c.Parameters.Clone()
	return d
}

// BaseParameters returns the request fields computed from the configuration.
// They have the lowest precedence when a request is built.
func (c Config) BaseParameters() Parameters {
	return Parameters{
		Temperature:      Float64(c.Temperature),
		MaxTokens:        Int(c.MaxTokens),
		FrequencyPenalty: Float64(c.FrequencyPenalty),
		PresencePenalty:  Float64(c.PresencePenalty),
	}
}

// Overrides are per-call parameters. They take precedence over the
// client configuration and are never written back to it.
type Overrides struct {
	SystemMessage *string
	Parameters
}

// GenerationRequest is the provider-neutral request built for a single call
type GenerationRequest struct {
	Model      string
	Messages   []Message
	Parameters Parameters
}

// Result is the outcome of a successful generation.
// Text is always set; Message is only set in parse mode.
type Result struct {
	Text    string
	Message *Message
}

// BatchResult holds the outcome of one batch item: either a result or an error
type BatchResult struct {
	Result *Result
	Err    error
}

// OK reports whether the item succeeded
func (r BatchResult) OK() bool {
	return r.Err == nil && r.Result != nil
}

// String renders the item the way callers print it: the generated text,
// or "Error: <description>" when the item failed.
func (r BatchResult) String() string {
	if r.Err != nil {
		return "Error: " + r.Err.Error()
	}
	if r.Result == nil {
		return ""
	}
	return r.Result.Text
}

// Float64 returns a pointer to v
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v
func Int(v int) *int { return &v }

// String returns a pointer to v
func String(v string) *string { return &v }
