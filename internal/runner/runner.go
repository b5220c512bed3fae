// Package runner starts and stops units through docker compose.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	dserrors "github.com/systmms/tierup/internal/errors"
	"github.com/systmms/tierup/internal/logging"
	"github.com/systmms/tierup/internal/unit"
	"github.com/systmms/tierup/pkg/exec"
)

// ErrSourceMissing is returned when a unit's compose file does not exist.
// Callers skip the unit instead of failing it.
var ErrSourceMissing = errors.New("compose file not found")

// Runner starts and stops units.
type Runner interface {
	Start(ctx context.Context, u unit.Unit) error
	Stop(ctx context.Context, u unit.Unit) error
}

// DefaultComposeCommand is used when no compose command is configured.
var DefaultComposeCommand = []string{"docker", "compose"}

// ComposeRunner shells out to a compose implementation. Start is idempotent
// because "up -d" leaves running services alone.
type ComposeRunner struct {
	command  []string
	executor exec.CommandExecutor
	logger   *logging.Logger
}

// NewComposeRunner creates a runner. An empty command selects
// DefaultComposeCommand; a nil executor selects the real one.
func NewComposeRunner(command []string, executor exec.CommandExecutor, logger *logging.Logger) *ComposeRunner {
	if len(command) == 0 {
		command = DefaultComposeCommand
	}
	if executor == nil {
		executor = exec.DefaultExecutor()
	}
	return &ComposeRunner{
		command:  append([]string(nil), command...),
		executor: executor,
		logger:   logger,
	}
}

// Start brings the unit up in the background.
func (r *ComposeRunner) Start(ctx context.Context, u unit.Unit) error {
	return r.run(ctx, u, "up", "-d")
}

// Stop tears the unit down.
func (r *ComposeRunner) Stop(ctx context.Context, u unit.Unit) error {
	return r.run(ctx, u, "down")
}

// Args returns the full argument list passed to the compose binary.
func (r *ComposeRunner) Args(u unit.Unit, action ...string) []string {
	args := append([]string(nil), r.command[1:]...)
	args = append(args, "-f", u.Source.ComposeFile)
	if u.Source.Profile != "" {
		args = append(args, "--profile", u.Source.Profile)
	}
	return append(args, action...)
}

func (r *ComposeRunner) run(ctx context.Context, u unit.Unit, action ...string) error {
	if _, err := os.Stat(u.Source.ComposeFile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrSourceMissing, u.Source.ComposeFile)
		}
		return fmt.Errorf("failed to stat %s: %w", u.Source.ComposeFile, err)
	}

	name := r.command[0]
	args := r.Args(u, action...)
	line := exec.CommandLine(name, args...)
	r.logger.Debug("%s: %s", u.Name, line)

	stdout, stderr, err := r.executor.Execute(ctx, name, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if exec.IsNotFound(err) {
			return dserrors.WrapCommandNotFound(name, err)
		}
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			msg = err.Error()
		}
		code := exec.ExitCode(err)
		if code < 0 {
			code = 0
		}
		return dserrors.CommandError{
			Command:    line,
			ExitCode:   code,
			Message:    msg,
			Suggestion: dserrors.RuntimeSuggestion("compose", errors.New(msg)),
			Err:        err,
		}
	}

	if out := strings.TrimSpace(string(stdout)); out != "" {
		r.logger.Debug("%s: %s", u.Name, out)
	}
	return nil
}

// DryRunRunner logs the commands a ComposeRunner would issue.
type DryRunRunner struct {
	compose *ComposeRunner
	logger  *logging.Logger
}

// NewDryRunRunner creates a runner that only logs.
func NewDryRunRunner(command []string, logger *logging.Logger) *DryRunRunner {
	return &DryRunRunner{
		compose: NewComposeRunner(command, nil, logger),
		logger:  logger,
	}
}

// Start logs the start command.
func (r *DryRunRunner) Start(ctx context.Context, u unit.Unit) error {
	r.log(u, "up", "-d")
	return nil
}

// Stop logs the stop command.
func (r *DryRunRunner) Stop(ctx context.Context, u unit.Unit) error {
	r.log(u, "down")
	return nil
}

func (r *DryRunRunner) log(u unit.Unit, action ...string) {
	r.logger.Info("[dry-run] would run: %s", exec.CommandLine(r.compose.command[0], r.compose.Args(u, action...)...))
}
