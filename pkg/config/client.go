package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/run-bigpig/grok-textgen/pkg/llm"
)

// generationFields are the keys accepted both at the top level and under
// "parameters"
type generationFields struct {
	SystemMessage    *string         `yaml:"system_message"`
	Temperature      *float64        `yaml:"temperature"`
	MaxTokens        *int            `yaml:"max_tokens"`
	FrequencyPenalty *float64        `yaml:"frequency_penalty"`
	PresencePenalty  *float64        `yaml:"presence_penalty"`
	Kwargs           *llm.Parameters `yaml:"kwargs"`
}

// clientFile is the on-disk shape. Both
//
//	model: grok-2-latest
//	temperature: 0.5
//
// and
//
//	model: grok-2-latest
//	parameters:
//	  temperature: 0.5
//
// are accepted; nested values win.
type clientFile struct {
	Model            string            `yaml:"model"`
	Parameters       *generationFields `yaml:"parameters"`
	generationFields `yaml:",inline"`
}

// LoadClientConfig loads a client configuration from a YAML file.
// Keys that are absent keep their default value.
func LoadClientConfig(filePath string) (llm.Config, error) {
	if !isValidFilePath(filePath) {
		return llm.Config{}, &llm.ConfigurationError{Msg: fmt.Sprintf("invalid config file path %q", filePath)}
	}

	data, err := os.ReadFile(filePath) // #nosec G304 - Path is validated with isValidFilePath() before use
	if err != nil {
		return llm.Config{}, &llm.ConfigurationError{Msg: "failed to read client config file", Err: err}
	}

	return ParseClientConfig(data)
}

// ParseClientConfig decodes a YAML client configuration
func ParseClientConfig(data []byte) (llm.Config, error) {
	var file clientFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return llm.Config{}, &llm.ConfigurationError{Msg: "failed to unmarshal client config", Err: err}
	}

	cfg := llm.DefaultConfig()
	if file.Model != "" {
		cfg.Model = file.Model
	}
	applyGenerationFields(&cfg, file.generationFields)
	if file.Parameters != nil {
		applyGenerationFields(&cfg, *file.Parameters)
	}

	params, err := cfg.Parameters.Normalize()
	if err != nil {
		return llm.Config{}, &llm.ConfigurationError{Msg: "invalid kwargs", Err: err}
	}
	cfg.Parameters = params

	return cfg, nil
}

func applyGenerationFields(cfg *llm.Config, f generationFields) {
	if f.SystemMessage != nil {
		cfg.SystemMessage = *f.SystemMessage
	}
	if f.Temperature != nil {
		cfg.Temperature = *f.Temperature
		// A zero temperature would read as unset once the client applies defaults
		if *f.Temperature == 0 && cfg.Parameters.Temperature == nil {
			cfg.Parameters.Temperature = llm.Float64(0)
		}
	}
	if f.MaxTokens != nil {
		cfg.MaxTokens = *f.MaxTokens
	}
	if f.FrequencyPenalty != nil {
		cfg.FrequencyPenalty = *f.FrequencyPenalty
	}
	if f.PresencePenalty != nil {
		cfg.PresencePenalty = *f.PresencePenalty
	}
	if f.Kwargs != nil {
		cfg.Parameters = cfg.Parameters.Merge(*f.Kwargs)
	}
}

// SaveClientConfig writes cfg as YAML
func SaveClientConfig(cfg llm.Config, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to marshal client config: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to write client config: %w", err)
	}
	return nil
}

// isValidFilePath checks if a file path is valid and safe
func isValidFilePath(filePath string) bool {
	if filePath == "" {
		return false
	}

	cleanPath := filepath.Clean(filePath)

	// Check for path traversal attempts
	if strings.Contains(cleanPath, "..") {
		return false
	}

	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return false
	}

	if strings.HasPrefix(absPath, "/proc") ||
		strings.HasPrefix(absPath, "/sys") ||
		strings.HasPrefix(absPath, "/dev") {
		return false
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return false
	}

	// Ensure it's a regular file, not a directory or symlink
	return fileInfo.Mode().IsRegular()
}
