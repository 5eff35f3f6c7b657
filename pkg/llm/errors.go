package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential is matched by configuration errors raised when the
	// provider API key is not set
	ErrMissingCredential = errors.New("missing credential")
)

// ConfigurationError is returned when the credential or configuration is
// missing or invalid. It is fatal and must not be retried.
type ConfigurationError struct {
	Msg string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil && e.Msg != "" {
		return fmt.Sprintf("configuration error: %s: %v", e.Msg, e.Err)
	}
	if e.Err != nil {
		return "configuration error: " + e.Err.Error()
	}
	return "configuration error: " + e.Msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ValidationError is returned when the inputs of a call are inconsistent.
// It is raised before any generation is attempted.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// GenerationError wraps any failure raised by the transport or the provider
// during a single generation call
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("error generating text: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// NewGenerationError wraps err unless it is already a GenerationError
func NewGenerationError(err error) error {
	if err == nil {
		return nil
	}
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return err
	}
	return &GenerationError{Err: err}
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// IsValidationError reports whether err is or wraps a ValidationError
func IsValidationError(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}

// IsGenerationError reports whether err is or wraps a GenerationError
func IsGenerationError(err error) bool {
	var genErr *GenerationError
	return errors.As(err, &genErr)
}
