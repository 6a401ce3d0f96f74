package core

import (
	"errors"
	"fmt"
)

// ConfigError represents a configuration problem with an actionable fix.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // What the operator should change
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors
const (
	ErrCodeEnvFileMissing   = "ENV_FILE_MISSING"
	ErrCodeConfigFile       = "CONFIG_FILE"
	ErrCodeInvalidStreamURL = "INVALID_STREAM_URL"
	ErrCodeInvalidValue     = "INVALID_VALUE"
	ErrCodeMissingConfig    = "MISSING_CONFIG"
)

func ErrEnvFileMissing(path string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeEnvFileMissing,
		Message: fmt.Sprintf("Environment file not found: %s", path),
		Action:  "Copy example.env to .env to override defaults, or set variables in the environment",
	}
}

// ErrConfigFile reports an unreadable or malformed YAML config file.
func ErrConfigFile(path string, err error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeConfigFile,
		Message: fmt.Sprintf("Cannot load config file %s: %v", path, err),
		Action:  "Fix the YAML syntax or unset CROWDVIEW_CONFIG",
	}
}

func ErrInvalidStreamURL(url string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidStreamURL,
		Message: fmt.Sprintf("Invalid STREAM_URL '%s': %s", url, reason),
		Action:  "Set STREAM_URL to a ws:// or wss:// address (e.g., ws://localhost:8765/ui)",
	}
}

// ErrInvalidValue reports a setting outside its accepted range.
func ErrInvalidValue(varName string, got interface{}, want string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf("Invalid %s: %v", varName, got),
		Action:  fmt.Sprintf("Set %s to %s", varName, want),
	}
}

func ErrMissingConfig(varName string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required configuration: %s", varName),
		Action:  fmt.Sprintf("Set %s in your .env file", varName),
	}
}

// IsConfigError reports whether err wraps a ConfigError and returns it.
func IsConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

// GetErrorCode extracts the code from a wrapped ConfigError, or "".
func GetErrorCode(err error) string {
	if configErr, ok := IsConfigError(err); ok {
		return configErr.Code
	}
	return ""
}
