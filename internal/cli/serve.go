package cli

import (
	"github.com/spf13/cobra"

	"panel-trends/internal/app"
)

var (
	serveAddr  string
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the trends query API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Serve(cmd.Context(), app.ServeOptions{Addr: serveAddr, Watch: serveWatch})
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to http.addr)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Also run the maintenance suggestion watcher")
}
