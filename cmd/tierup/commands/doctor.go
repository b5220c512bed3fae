package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/tierup/internal/config"
	dserrors "github.com/systmms/tierup/internal/errors"
	"github.com/systmms/tierup/pkg/exec"
)

// CheckResult is the outcome of one doctor check.
type CheckResult struct {
	Name        string
	Status      string // ok, error, warning
	Message     string
	Suggestions []string
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the container runtime and the configured units",
		Long: `Verify that tierup can do its job on this host.

This command checks:
- Configuration file validity
- The compose command is installed
- The container runtime daemon is reachable
- Every unit's compose file exists`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			cfg.Logger.Info("Checking tierup configuration...")
			settings, tiers, err := loadPlan(cfg)
			if err != nil {
				cfg.Logger.Error("Configuration error: %v", err)
				return fmt.Errorf("failed to load config: %w", err)
			}

			results := []CheckResult{
				{Name: "config", Status: "ok", Message: fmt.Sprintf("%d tier(s) loaded from %s", len(tiers), cfg.Path)},
				checkComposeCommand(ctx, settings.ComposeCommand),
				checkDaemon(ctx),
			}
			for _, t := range tiers {
				for _, u := range t.Units {
					results = append(results, checkComposeFile(u.Name, u.Source.ComposeFile))
				}
			}

			out := cmd.OutOrStdout()
			displayCheckResults(out, results, verbose)

			failed := 0
			for _, r := range results {
				if r.Status == "error" {
					failed++
				}
			}
			_, _ = fmt.Fprintf(out, "\nSummary: %d/%d checks passed\n", len(results)-failed, len(results))
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}

			cfg.Logger.Info("All systems operational!")
			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show suggestions for failed checks")

	return cmd
}

func checkComposeCommand(ctx context.Context, command []string) CheckResult {
	result := CheckResult{Name: strings.Join(command, " ")}
	args := append(append([]string(nil), command[1:]...), "version", "--short")
	stdout, stderr, err := Executor.Execute(ctx, command[0], args...)
	if err != nil {
		result.Status = "error"
		if exec.IsNotFound(err) {
			result.Message = command[0] + " not found in PATH"
			result.Suggestions = []string{"Install Docker with the compose plugin, or set compose_command in tierup.yaml"}
			return result
		}
		result.Message = strings.TrimSpace(string(stderr))
		if result.Message == "" {
			result.Message = err.Error()
		}
		return result
	}
	result.Status = "ok"
	result.Message = "version " + strings.TrimSpace(string(stdout))
	return result
}

func checkDaemon(ctx context.Context) CheckResult {
	result := CheckResult{Name: "docker daemon"}
	rt, err := NewRuntime()
	if err != nil {
		result.Status = "error"
		result.Message = err.Error()
		return result
	}
	defer func() { _ = rt.Close() }()

	if err := rt.Ping(ctx); err != nil {
		result.Status = "error"
		result.Message = "not reachable"
		if suggestion := dserrors.RuntimeSuggestion("docker", err); suggestion != "" {
			result.Suggestions = []string{suggestion}
		}
		result.Suggestions = append(result.Suggestions, err.Error())
		return result
	}
	result.Status = "ok"
	result.Message = "reachable"
	return result
}

func checkComposeFile(name, path string) CheckResult {
	result := CheckResult{Name: "unit " + name}
	if _, err := os.Stat(path); err != nil {
		result.Status = "warning"
		result.Message = "compose file missing: " + path
		result.Suggestions = []string{"Missing units are skipped during up and down"}
		return result
	}
	result.Status = "ok"
	result.Message = path
	return result
}

// displayCheckResults shows check results in a formatted table
func displayCheckResults(out io.Writer, results []CheckResult, verbose bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "CHECK\tSTATUS\tMESSAGE\n")
	_, _ = fmt.Fprintf(w, "-----\t------\t-------\n")

	for _, result := range results {
		status := result.Status
		switch result.Status {
		case "ok":
			status = "✓ " + status
		case "error":
			status = "✗ " + status
		default:
			status = "⚠ " + status
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", result.Name, status, result.Message)
	}
	_ = w.Flush()

	if !verbose {
		return
	}
	for _, result := range results {
		if len(result.Suggestions) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(out, "\n%s:\n", result.Name)
		for _, s := range result.Suggestions {
			_, _ = fmt.Fprintf(out, "  💡 %s\n", s)
		}
	}
}
