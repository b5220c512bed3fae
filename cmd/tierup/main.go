package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/tierup/cmd/tierup/commands"
	"github.com/systmms/tierup/internal/config"
	dserrors "github.com/systmms/tierup/internal/errors"
	"github.com/systmms/tierup/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		if !errors.Is(err, commands.ErrRunFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", dserrors.SimplifyError(err))
		}
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		configFile string
		noColor    bool
		debug      bool
		logDir     string
	)

	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "tierup",
		Short: "Tiered docker compose rollouts with health gating",
		Long: `tierup brings up docker compose stacks tier by tier. Units inside a tier
start in parallel; the next tier starts only when the current one is healthy
or its policy allows the run to continue.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.Logger = logging.New(debug, noColor)
			cfg.LogDir = logDir
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Directory for per-run log files (overrides config and TIERUP_LOG_DIR)")

	rootCmd.AddCommand(
		commands.NewUpCommand(cfg),
		commands.NewDownCommand(cfg),
		commands.NewStatusCommand(cfg),
		commands.NewPlanCommand(cfg),
		commands.NewValidateCommand(cfg),
		commands.NewDoctorCommand(cfg),
		commands.NewCompletionCommand(cfg),
	)

	return rootCmd.Execute()
}
