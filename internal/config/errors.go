package config

import (
	"fmt"
	"strings"
)

// ConfigurationError is a structured startup-time configuration failure.
// It is fatal: the process must not start with contradictory or incomplete
// static configuration.
type ConfigurationError struct {
	Field       string   `json:"field"`   // configuration field or env var at fault
	Message     string   `json:"message"` // human-readable description
	Suggestions []string `json:"suggestions,omitempty"`
}

// Error implements the error interface.
func (ce *ConfigurationError) Error() string {
	if ce.Field == "" {
		return fmt.Sprintf("configuration error: %s", ce.Message)
	}
	return fmt.Sprintf("configuration error [%s]: %s", ce.Field, ce.Message)
}

// DetailedError returns the error with any suggestions attached, for CLI
// output at startup.
func (ce *ConfigurationError) DetailedError() string {
	parts := []string{ce.Error()}
	for _, s := range ce.Suggestions {
		parts = append(parts, fmt.Sprintf("  - %s", s))
	}
	return strings.Join(parts, "\n")
}

func newConfigError(field, messageFmt string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: fmt.Sprintf(messageFmt, args...)}
}
