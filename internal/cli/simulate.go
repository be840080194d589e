package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	simulateOldPrice float64
	simulateNewPrice float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次价格变动并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateOldPrice <= 0 || simulateNewPrice <= 0 {
			return errors.New("--old 与 --new 必须大于 0")
		}

		return getApp().SimulateAlert(cmd.Context(), simulateOldPrice, simulateNewPrice)
	},
}

func init() {
	simulateCmd.Flags().Float64Var(&simulateOldPrice, "old", 0, "模拟的旧价格 (USD)")
	simulateCmd.Flags().Float64Var(&simulateNewPrice, "new", 0, "模拟的新价格 (USD)")
}
