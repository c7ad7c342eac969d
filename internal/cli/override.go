package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	overridePosition string
	overrideAsOf     string
)

var overrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Force the persisted position (reconcile a manual trade)",
	RunE: func(cmd *cobra.Command, args []string) error {
		var asOf *time.Time
		if overrideAsOf != "" {
			parsed, err := time.Parse("2006-01-02", overrideAsOf)
			if err != nil {
				return fmt.Errorf("invalid --as-of value: %w", err)
			}
			asOf = &parsed
		}
		return getApp().Override(overridePosition, asOf)
	},
}

var invalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Clear the market data cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().InvalidateCache()
	},
}

func init() {
	overrideCmd.Flags().StringVar(&overridePosition, "position", "", "Position to force: CASH or HELD")
	overrideCmd.Flags().StringVar(&overrideAsOf, "as-of", "", "Evaluation date of the manual trade (YYYY-MM-DD)")
	_ = overrideCmd.MarkFlagRequired("position")
}
