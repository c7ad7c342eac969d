package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"sma-signal/internal/app"
)

var (
	showLimit int
	showDB    bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent trade-log rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit:  showLimit,
			FromDB: showDB,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of rows to display")
	showCmd.Flags().BoolVar(&showDB, "db", false, "Read from the database journal instead of the CSV log")
}
