package llm

import (
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// ResponseFormatType selects how the provider shapes its answer
type ResponseFormatType string

const (
	ResponseFormatJSON       ResponseFormatType = "json_object"
	ResponseFormatJSONSchema ResponseFormatType = "json_schema"
	ResponseFormatText       ResponseFormatType = "text"
)

// JSONSchema is a JSON schema document
type JSONSchema map[string]interface{}

// MarshalJSON implements the json.Marshaler interface
func (s JSONSchema) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}(s))
}

// ResponseFormat defines the format of the response from the LLM
type ResponseFormat struct {
	Type   ResponseFormatType `yaml:"type"`
	Name   string             `yaml:"name,omitempty"`   // The name of the object to be returned
	Schema JSONSchema         `yaml:"schema,omitempty"` // JSON schema of the object
	Strict bool               `yaml:"strict,omitempty"`
}

// Parameters are optional request fields. A nil field is absent and does not
// override anything. Extra carries any other provider-recognized field and is
// sent as-is.
type Parameters struct {
	Temperature      *float64        `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens        *int            `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	TopP             *float64        `json:"top_p,omitempty" yaml:"top_p,omitempty"`
	FrequencyPenalty *float64        `json:"frequency_penalty,omitempty" yaml:"frequency_penalty,omitempty"`
	PresencePenalty  *float64        `json:"presence_penalty,omitempty" yaml:"presence_penalty,omitempty"`
	Stop             []string        `json:"stop,omitempty" yaml:"stop,omitempty"`
	Seed             *int            `json:"seed,omitempty" yaml:"seed,omitempty"`
	N                *int            `json:"n,omitempty" yaml:"n,omitempty"`
	User             *string         `json:"user,omitempty" yaml:"user,omitempty"`
	ReasoningEffort  *string         `json:"reasoning_effort,omitempty" yaml:"reasoning_effort,omitempty"`
	ResponseFormat   *ResponseFormat `json:"-" yaml:"response_format,omitempty"`

	Extra map[string]interface{} `json:"-" yaml:",inline"`
}

// knownParameterKeys are the wire names of the typed fields of Parameters
var knownParameterKeys = map[string]bool{
	"temperature":       true,
	"max_tokens":        true,
	"top_p":             true,
	"frequency_penalty": true,
	"presence_penalty":  true,
	"stop":              true,
	"seed":              true,
	"n":                 true,
	"user":              true,
	"reasoning_effort":  true,
}

// IsKnownParameter reports whether key maps to a typed field of Parameters
func IsKnownParameter(key string) bool {
	return knownParameterKeys[key]
}

// Clone returns a deep enough copy of p that mutating the copy's slices
// and maps does not affect p.
func (p Parameters) Clone() Parameters {
	out := p
	if p.Stop != nil {
		out.Stop = append([]string(nil), p.Stop...)
	}
	if p.Extra != nil {
		out.Extra = make(map[string]interface{}, len(p.Extra))
		for k, v := range p.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// IsZero reports whether no field is set
func (p Parameters) IsZero() bool {
	return p.Temperature == nil && p.MaxTokens == nil && p.TopP == nil &&
		p.FrequencyPenalty == nil && p.PresencePenalty == nil && p.Stop == nil &&
		p.Seed == nil && p.N == nil && p.User == nil && p.ReasoningEffort == nil &&
		p.ResponseFormat == nil && len(p.Extra) == 0
}

// Merge returns p with every field set in over taking precedence.
// Extra maps are merged key by key. A key set in over replaces both the typed
// field and the Extra entry of that name in p. Neither input is modified.
func (p Parameters) Merge(over Parameters) Parameters {
	out := p.Clone()
	if over.Temperature != nil {
		out.Temperature = over.Temperature
	}
	if over.MaxTokens != nil {
		out.MaxTokens = over.MaxTokens
	}
	if over.TopP != nil {
		out.TopP = over.TopP
	}
	if over.FrequencyPenalty != nil {
		out.FrequencyPenalty = over.FrequencyPenalty
	}
	if over.PresencePenalty != nil {
		out.PresencePenalty = over.PresencePenalty
	}
	if over.Stop != nil {
		out.Stop = append([]string(nil), over.Stop...)
	}
	if over.Seed != nil {
		out.Seed = over.Seed
	}
	if over.N != nil {
		out.N = over.N
	}
	if over.User != nil {
		out.User = over.User
	}
	if over.ReasoningEffort != nil {
		out.ReasoningEffort = over.ReasoningEffort
	}
	if over.ResponseFormat != nil {
		out.ResponseFormat = over.ResponseFormat
		delete(out.Extra, "response_format")
	}
	for k := range knownParameterKeys {
		if over.isSet(k) {
			delete(out.Extra, k)
		}
	}
	if len(over.Extra) > 0 {
		if out.Extra == nil {
			out.Extra = make(map[string]interface{}, len(over.Extra))
		}
		for k, v := range over.Extra {
			out.clear(k)
			out.Extra[k] = v
		}
	}
	return out
}

// Normalize moves Extra entries that name a typed field into that field.
// A typed field that is already set wins over the Extra entry of the same name.
// Values the typed field cannot hold, such as a plain string for "stop", stay
// in Extra and are sent unchanged.
func (p Parameters) Normalize() (Parameters, error) {
	out := p.Clone()
	out.Extra = nil
	for _, k := range sortedKeys(p.Extra) {
		v := p.Extra[k]
		if !knownParameterKeys[k] {
			out.setExtra(k, v)
			continue
		}
		if p.isSet(k) {
			continue
		}

		data, err := json.Marshal(map[string]interface{}{k: v})
		if err != nil {
			return Parameters{}, fmt.Errorf("failed to encode parameter %q: %w", k, err)
		}
		var typed Parameters
		if err := json.Unmarshal(data, &typed); err != nil {
			out.setExtra(k, v)
			continue
		}
		out = out.Merge(typed)
	}
	return out, nil
}

// UnmarshalYAML decodes parameters the way Normalize reads Extra, so a value
// a typed field cannot hold is kept as-is instead of failing the decode.
func (p *Parameters) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]interface{}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	var decoded Parameters
	if node := mappingValue(value, "response_format"); node != nil && node.Kind == yaml.MappingNode {
		var format ResponseFormat
		if err := node.Decode(&format); err == nil {
			decoded.ResponseFormat = &format
			delete(raw, "response_format")
		}
	}
	if len(raw) > 0 {
		decoded.Extra = raw
	}

	normalized, err := decoded.Normalize()
	if err != nil {
		return err
	}
	*p = normalized
	return nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// isSet reports whether the typed field with wire name key is set
func (p Parameters) isSet(key string) bool {
	switch key {
	case "temperature":
		return p.Temperature != nil
	case "max_tokens":
		return p.MaxTokens != nil
	case "top_p":
		return p.TopP != nil
	case "frequency_penalty":
		return p.FrequencyPenalty != nil
	case "presence_penalty":
		return p.PresencePenalty != nil
	case "stop":
		return p.Stop != nil
	case "seed":
		return p.Seed != nil
	case "n":
		return p.N != nil
	case "user":
		return p.User != nil
	case "reasoning_effort":
		return p.ReasoningEffort != nil
	case "response_format":
		return p.ResponseFormat != nil
	}
	return false
}

// clear unsets the typed field with wire name key
func (p *Parameters) clear(key string) {
	switch key {
	case "temperature":
		p.Temperature = nil
	case "max_tokens":
		p.MaxTokens = nil
	case "top_p":
		p.TopP = nil
	case "frequency_penalty":
		p.FrequencyPenalty = nil
	case "presence_penalty":
		p.PresencePenalty = nil
	case "stop":
		p.Stop = nil
	case "seed":
		p.Seed = nil
	case "n":
		p.N = nil
	case "user":
		p.User = nil
	case "reasoning_effort":
		p.ReasoningEffort = nil
	case "response_format":
		p.ResponseFormat = nil
	}
}

func (p *Parameters) setExtra(key string, value interface{}) {
	if p.Extra == nil {
		p.Extra = make(map[string]interface{})
	}
	p.Extra[key] = value
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
