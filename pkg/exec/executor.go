// Package exec runs external commands behind an interface so that the compose
// runner and command health probes can be exercised without a container runtime.
package exec

import (
	"bytes"
	"context"
	"errors"
	osexec "os/exec"
	"strings"
)

// CommandExecutor defines an interface for executing external commands.
type CommandExecutor interface {
	// Execute runs a command with the given context and arguments.
	// Returns stdout, stderr, and any error that occurred.
	Execute(ctx context.Context, name string, args ...string) (stdout []byte, stderr []byte, err error)
}

// RealCommandExecutor executes actual commands using os/exec.
type RealCommandExecutor struct {
	// Env, when set, is appended to the parent environment.
	Env []string
}

// Execute runs an actual command.
func (r *RealCommandExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := osexec.CommandContext(ctx, name, args...)
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// DefaultExecutor returns the standard production executor.
func DefaultExecutor() CommandExecutor {
	return &RealCommandExecutor{}
}

// ExitCode extracts the process exit code from err, or -1 when the command
// never produced one.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *osexec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// IsNotFound reports whether err means the executable could not be located.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, osexec.ErrNotFound) {
		return true
	}
	return strings.Contains(err.Error(), "executable file not found")
}

// CommandLine renders name and args for logs.
func CommandLine(name string, args ...string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}
