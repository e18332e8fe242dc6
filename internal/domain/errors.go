package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration is returned when a generation parameter is out of range.
	// No subjects are produced when it is returned.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrExhaustedIdentifierSpace is returned when a unique subject identifier
	// cannot be minted within the retry bound.
	ErrExhaustedIdentifierSpace = errors.New("exhausted identifier space")
)

// ConfigError names the configuration field that failed validation.
type ConfigError struct {
	Field  string
	Reason string
}

// NewConfigError creates a ConfigError for field.
func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidConfiguration, e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidConfiguration.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfiguration
}
