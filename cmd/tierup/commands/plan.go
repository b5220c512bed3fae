package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/tierup/internal/config"
	"github.com/systmms/tierup/internal/report"
)

// NewPlanCommand creates the plan command.
func NewPlanCommand(cfg *config.Config) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the tier plan without running anything",
		Long: `Build the tier plan from the configuration file and the scan roots and
print it. The plan is the same one up and down execute, dry-run or not.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, tiers, err := loadPlan(cfg)
			if err != nil {
				return err
			}

			if jsonOutput {
				return report.WriteJSON(cmd.OutOrStdout(), report.NewPlanJSON(tiers))
			}
			return report.WritePlan(cmd.OutOrStdout(), tiers)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
