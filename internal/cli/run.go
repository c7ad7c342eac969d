package cli

import (
	"github.com/spf13/cobra"

	"sma-signal/internal/app"
)

var runDry bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daily signal evaluation",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context(), app.RunOptions{DryRun: runDry})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the persisted position without evaluating",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Status()
	},
}

func init() {
	runCmd.Flags().BoolVar(&runDry, "dry-run", false, "Evaluate and print without persisting anything")
}
