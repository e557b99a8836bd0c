package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"panel-trends/internal/app"
)

var (
	reportDays        int
	reportInterval    string
	reportMaintenance string
	reportJSON        bool
)

var reportCmd = &cobra.Command{
	Use:   "report <panel-id>",
	Short: "Print the comprehensive trend analysis of a panel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if reportDays < 0 {
			return fmt.Errorf("--days must not be negative")
		}

		opts := app.ReportOptions{
			PanelID:  args[0],
			Days:     reportDays,
			Interval: reportInterval,
			JSON:     reportJSON,
		}
		if reportMaintenance != "" {
			at, err := parseTimestamp(reportMaintenance)
			if err != nil {
				return fmt.Errorf("invalid --maintenance value: %w", err)
			}
			opts.MaintenanceAt = &at
		}

		return getApp().Report(cmd.Context(), opts)
	},
}

func init() {
	reportCmd.Flags().IntVar(&reportDays, "days", 0, "Days of history to analyze (defaults to config)")
	reportCmd.Flags().StringVar(&reportInterval, "interval", "day", "Time series bucket: hour, day or a Go duration")
	reportCmd.Flags().StringVar(&reportMaintenance, "maintenance", "", "Maintenance timestamp (RFC3339 or YYYY-MM-DD)")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Print the report as JSON")
}
