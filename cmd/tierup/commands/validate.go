package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/tierup/internal/config"
	"github.com/systmms/tierup/internal/registry"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(cfg *config.Config) *cobra.Command {
	var printSchema bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Long: `Check the configuration against its JSON schema, then check the tier
table, the assignments, every scanned compose file and the notification
settings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if printSchema {
				_, err := out.Write(config.Schema())
				return err
			}

			settings, tiers, err := loadPlan(cfg)
			if err != nil {
				return err
			}
			if _, err := settings.NewNotifier(cmd.Context(), cfg.Logger, true); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(out, "✓ %s is valid: %d tier(s), %d unit(s)\n",
				cfg.Path, len(tiers), registry.CountUnits(tiers))
			return nil
		},
	}

	cmd.Flags().BoolVar(&printSchema, "print-schema", false, "Print the JSON schema and exit")

	return cmd
}
