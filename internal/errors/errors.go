package errors

import (
	"errors"
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// CommandError represents a command execution error
type CommandError struct {
	Command    string
	ExitCode   int
	Message    string
	Suggestion string
	Err        error
}

func (e CommandError) Error() string {
	msg := fmt.Sprintf("Command '%s' failed", e.Command)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code: %d)", e.ExitCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

func (e CommandError) Unwrap() error {
	return e.Err
}

// RuntimeError enhances container runtime errors with context
func RuntimeError(runtime string, operation string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("%s runtime error during %s", runtime, operation),
		Details:    err.Error(),
		Suggestion: RuntimeSuggestion(runtime, err),
		Err:        err,
	}
}

// RuntimeSuggestion returns a hint for common runtime failures, or "".
func RuntimeSuggestion(runtime string, err error) string {
	errStr := err.Error()

	switch runtime {
	case "docker", "compose":
		if strings.Contains(errStr, "Cannot connect to the Docker daemon") || strings.Contains(errStr, "docker daemon") {
			return "Start the Docker daemon (e.g. 'systemctl start docker') or set DOCKER_HOST"
		}
		if strings.Contains(errStr, "permission denied") && strings.Contains(errStr, "docker.sock") {
			return "Add your user to the 'docker' group or run with sufficient privileges"
		}
		if strings.Contains(errStr, "no configuration file provided") || strings.Contains(errStr, "no such file") {
			return "Verify the compose file path in tierup.yaml"
		}
		if strings.Contains(errStr, "is not a docker command") || strings.Contains(errStr, "unknown shorthand flag") {
			return "Install the Docker Compose v2 plugin or set compose_command: [\"docker-compose\"]"
		}
		if strings.Contains(errStr, "port is already allocated") || strings.Contains(errStr, "address already in use") {
			return "Another service is using the same host port. Run 'tierup status' to find it"
		}
	}

	// Generic suggestions
	if strings.Contains(errStr, "timeout") {
		return "The operation timed out. Check your network connection and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check that the service is reachable"
	}

	return ""
}

// WrapCommandNotFound wraps command not found errors with helpful suggestions
func WrapCommandNotFound(command string, err error) error {
	suggestions := map[string]string{
		"docker":         "Install Docker from https://docker.com/",
		"docker-compose": "Install Docker Compose from https://docs.docker.com/compose/install/",
		"podman":         "Install Podman from https://podman.io/",
		"podman-compose": "Install podman-compose with 'pip install podman-compose'",
	}

	suggestion := suggestions[command]
	if suggestion == "" {
		suggestion = fmt.Sprintf("Make sure '%s' is installed and in your PATH", command)
	}

	return CommandError{
		Command:    command,
		Message:    "command not found",
		Suggestion: suggestion,
		Err:        err,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"temporary failure",
		"connection reset",
		"connection refused",
		"broken pipe",
		"rate limit",
		"throttling",
		"too many requests",
		"status 429",
		"status 5",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Already a user-friendly error
	var userErr UserError
	var configErr ConfigError
	var commandErr CommandError
	if errors.As(err, &userErr) || errors.As(err, &configErr) || errors.As(err, &commandErr) {
		return err
	}

	// Unwrap to get the root cause
	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "json:") {
		return ConfigError{
			Message:    "Invalid JSON format",
			Suggestion: "Validate your JSON at https://jsonlint.com/",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	return err
}
