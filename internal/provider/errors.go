package provider

import "fmt"

// ConfigError represents a configuration error for a provider.
type ConfigError struct {
	Provider string
	Field    string
	Value    string
	Message  string
	Cause    error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
	if e.Value == "" {
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s=%q: %s", e.Provider, e.Field, e.Value, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a ConfigError for a field validation failure.
func NewConfigError(provider, field, message string) *ConfigError {
	return &ConfigError{Provider: provider, Field: field, Message: message}
}

// NewConfigErrorWithValue creates a ConfigError that includes the invalid value.
func NewConfigErrorWithValue(provider, field, value, message string) *ConfigError {
	return &ConfigError{Provider: provider, Field: field, Value: value, Message: message}
}

// NewConfigErrorWithCause creates a ConfigError with an underlying cause.
func NewConfigErrorWithCause(provider, field, message string, cause error) *ConfigError {
	return &ConfigError{Provider: provider, Field: field, Message: message, Cause: cause}
}
