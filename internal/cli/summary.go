package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"oil-price-watch/internal/app"
)

var (
	summaryWindow int
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print aggregate statistics over recent history",
	RunE: func(cmd *cobra.Command, args []string) error {
		if summaryWindow <= 0 {
			return fmt.Errorf("--window must be greater than zero")
		}

		opts := app.SummaryOptions{
			Window: summaryWindow,
		}

		return getApp().Summary(cmd.Context(), opts)
	},
}

func init() {
	summaryCmd.Flags().IntVar(&summaryWindow, "window", 10, "Number of recent entries to aggregate")
}
