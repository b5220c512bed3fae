package health

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/systmms/tierup/internal/unit"
	"github.com/systmms/tierup/pkg/exec"
)

// CommandProber runs a command and treats exit code 0 as healthy.
type CommandProber struct {
	executor exec.CommandExecutor
}

// NewCommandProber creates a prober that runs commands through executor.
func NewCommandProber(executor exec.CommandExecutor) *CommandProber {
	if executor == nil {
		executor = exec.DefaultExecutor()
	}
	return &CommandProber{executor: executor}
}

// Probe runs the unit's health command.
func (p *CommandProber) Probe(ctx context.Context, u unit.Unit) Result {
	start := time.Now()
	argv := u.Health.Command

	if len(argv) == 0 {
		return Result{Status: unit.StatusUnknown, Message: "no command configured"}
	}

	_, stderr, err := p.executor.Execute(ctx, argv[0], argv[1:]...)
	elapsed := time.Since(start)
	if err != nil {
		var msg string
		switch code := exec.ExitCode(err); {
		case exec.IsNotFound(err):
			msg = fmt.Sprintf("command not found: %s", argv[0])
		case code >= 0:
			msg = fmt.Sprintf("exit code %d", code)
		default:
			msg = err.Error()
		}
		if s := strings.TrimSpace(string(stderr)); s != "" {
			msg += ": " + firstLine(s)
		}
		return Result{Status: unit.StatusStarting, Message: msg, Duration: elapsed}
	}

	return Result{Status: unit.StatusHealthy, Message: "exit code 0", Duration: elapsed}
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
