package cli

import (
	"github.com/spf13/cobra"

	"sma-signal/internal/app"
)

var (
	exportPNGPath string
	exportCSVPath string
	exportMonths  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the benchmark series with SMA and levels as PNG and/or CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			PNGPath: exportPNGPath,
			CSVPath: exportCSVPath,
			Months:  exportMonths,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMonths, "months", 0, "Trailing months to include (defaults to config)")
}
