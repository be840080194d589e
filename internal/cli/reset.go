package cli

import (
	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear local history and polling state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Reset(cmd.Context())
	},
}
