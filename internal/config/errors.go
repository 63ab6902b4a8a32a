package config

import "fmt"

// ConfigError describes an invalid or unusable configuration. The supervisor
// maps it to a distinct exit code so operators can tell configuration
// problems apart from runtime failures.
type ConfigError struct {
	Field  string
	Reason string
}

// Error returns the error message.
func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}

	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// NewConfigError creates a new configuration error.
func NewConfigError(field, reason string) *ConfigError {
	return &ConfigError{Field: field, Reason: reason}
}
