package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/systmms/tierup/internal/config"
	"github.com/systmms/tierup/internal/notifications"
	"github.com/systmms/tierup/internal/report"
	"github.com/systmms/tierup/internal/rollout"
)

type runOptions struct {
	dryRun      bool
	metricsAddr string
}

func addRunFlags(cmd *cobra.Command, opts *runOptions) {
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Log what would run without touching containers or sending notifications")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run (e.g. :9090)")
}

// NewUpCommand creates the up command.
func NewUpCommand(cfg *config.Config) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Start all tiers in order, gating each on health",
		Long: `Start every tier in order. Units inside a tier start in parallel and are
polled until healthy, failed or out of budget.

A failing fail_fast tier stops the run; a failing best_effort tier is
reported and the run continues. The exit code is 1 when the run fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeRun(cmd, cfg, rollout.ModeUp, opts)
		},
	}
	addRunFlags(cmd, &opts)
	return cmd
}

// NewDownCommand creates the down command.
func NewDownCommand(cfg *config.Config) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Stop all tiers in reverse order",
		Long: `Stop every tier, last tier first. Units inside a tier stop in parallel
and there is no health gating.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeRun(cmd, cfg, rollout.ModeDown, opts)
		},
	}
	addRunFlags(cmd, &opts)
	return cmd
}

func executeRun(cmd *cobra.Command, cfg *config.Config, mode rollout.Mode, opts runOptions) error {
	settings, tiers, err := loadPlan(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifications.InitMetrics()
	stopMetrics, err := startMetrics(cfg.Logger, firstNonEmpty(opts.metricsAddr, settings.MetricsListen))
	if err != nil {
		return err
	}
	defer stopMetrics()

	engine, release, err := newEngine(cfg, settings, opts.dryRun)
	if err != nil {
		return err
	}
	defer release()

	notifier, err := settings.NewNotifier(ctx, cfg.Logger, opts.dryRun)
	if err != nil {
		return err
	}

	reporter := report.NewReporter(cmd.OutOrStdout(), cfg.Logger, notifier)
	reporter.NotifyPerTier(settings.PerTier)
	engine.OnTier(reporter.TierHook())
	engine.OnBegin(func(run *rollout.Run) {
		attachRunLog(cfg.Logger, settings.LogDir, run)
	})
	defer func() { _ = cfg.Logger.Close() }()

	var run *rollout.Run
	if mode == rollout.ModeDown {
		run = engine.Down(ctx, tiers)
	} else {
		run = engine.Up(ctx, tiers)
	}

	if err := reporter.Report(ctx, run); err != nil {
		return err
	}
	pushMetrics(ctx, cfg.Logger, settings, run)

	if !run.Succeeded() {
		return ErrRunFailed
	}
	return nil
}
