package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"pair-growth-alerts/internal/app"
)

var (
	simulatePrevCount uint64
	simulatePrevBlock uint64
	simulateCount     uint64
	simulateBlock     uint64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Feed a synthetic sample pair through the detector",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateBlock == 0 {
			return errors.New("--block must be greater than zero")
		}
		if simulatePrevBlock >= simulateBlock {
			return errors.New("--prev-block must be below --block")
		}

		opts := app.SimulateOptions{
			PrevCount: simulatePrevCount,
			PrevBlock: simulatePrevBlock,
			Count:     simulateCount,
			Block:     simulateBlock,
		}

		return getApp().SimulateAlert(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().Uint64Var(&simulatePrevCount, "prev-count", 0, "Pair count of the older sample")
	simulateCmd.Flags().Uint64Var(&simulatePrevBlock, "prev-block", 0, "Block number of the older sample")
	simulateCmd.Flags().Uint64Var(&simulateCount, "count", 0, "Pair count of the newer sample")
	simulateCmd.Flags().Uint64Var(&simulateBlock, "block", 0, "Block number of the newer sample")
}
