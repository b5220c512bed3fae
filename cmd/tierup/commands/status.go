package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/tierup/internal/config"
	"github.com/systmms/tierup/internal/health"
	"github.com/systmms/tierup/internal/report"
	"github.com/systmms/tierup/internal/rollout"
	"github.com/systmms/tierup/internal/schedule"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(cfg *config.Config) *cobra.Command {
	var (
		jsonOutput bool
		watch      bool
		interval   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Probe every unit once and report",
		Long: `Probe every unit once and print its state. Nothing is started or stopped.

With --watch the probe repeats until interrupted. The exit code is 1 when
any unit is not healthy in the last complete snapshot.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, tiers, err := loadPlan(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			health.InitMetrics()
			engine, release, err := newEngine(cfg, settings, false)
			if err != nil {
				return err
			}
			defer release()

			out := cmd.OutOrStdout()
			var last *rollout.Run
			snapshot := func(ctx context.Context) error {
				run := engine.Status(ctx, tiers)
				if run.Cancelled && last != nil {
					// Interrupted mid-snapshot; the previous one decides the exit code.
					return nil
				}
				last = run
				if jsonOutput {
					return report.WriteJSON(out, report.NewRunJSON(last))
				}
				if watch {
					_, _ = fmt.Fprintf(out, "\n%s\n", time.Now().Format(time.RFC3339))
				}
				return report.WriteUnits(out, last)
			}

			if watch {
				if interval <= 0 {
					interval = settings.PollInterval
				}
				err = schedule.Every(ctx, interval, snapshot)
			} else {
				err = snapshot(ctx)
			}
			if err != nil {
				return err
			}

			if last == nil || !last.Succeeded() {
				return ErrRunFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&watch, "watch", false, "Repeat until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Delay between snapshots with --watch (default: poll interval)")

	return cmd
}
