package cli

import (
	"github.com/spf13/cobra"

	"panel-trends/internal/app"
)

var (
	exportPanel     string
	exportInterval  string
	exportLimit     int
	exportPNGPath   string
	exportCSVPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a panel's resampled series as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			PanelID:   exportPanel,
			Interval:  exportInterval,
			Limit:     exportLimit,
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			MaxPoints: exportMaxPoints,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportPanel, "panel", "", "Panel id to export")
	exportCmd.Flags().StringVar(&exportInterval, "interval", "", "Bucket width: hour, day or a Go duration (defaults to config)")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "Number of most recent buckets (defaults to config)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
