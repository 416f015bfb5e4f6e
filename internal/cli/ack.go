package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"pair-growth-alerts/internal/app"
)

var (
	ackID     uint64
	ackCaller string
)

var ackCmd = &cobra.Command{
	Use:   "ack",
	Short: "Acknowledge a recorded alert",
	RunE: func(cmd *cobra.Command, args []string) error {
		if ackID == 0 {
			return fmt.Errorf("--id must be greater than zero")
		}

		opts := app.AckOptions{
			ID:     ackID,
			Caller: ackCaller,
		}

		return getApp().Acknowledge(cmd.Context(), opts)
	},
}

func init() {
	ackCmd.Flags().Uint64Var(&ackID, "id", 0, "Alert id to acknowledge")
	ackCmd.Flags().StringVar(&ackCaller, "caller", "", "Acting address (defaults to the configured owner)")
}
