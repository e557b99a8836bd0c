package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var notifyPanel string

var notifyTestCmd = &cobra.Command{
	Use:   "notify-test",
	Short: "Send a synthetic maintenance suggestion through the configured channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		sent, err := getApp().NotifyTest(cmd.Context(), notifyPanel)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sent %d suggestion(s)\n", sent)
		return nil
	},
}

func init() {
	notifyTestCmd.Flags().StringVar(&notifyPanel, "panel", "", "Panel id used in the synthetic suggestion")
}

// parseTimestamp accepts RFC3339 timestamps or plain dates (UTC midnight).
func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", raw)
}
