package main

import (
	"github.com/spf13/cobra"
)

var neighborsCmd = &cobra.Command{
	Use:   "neighbors <memory-id>",
	Short: "List the strongest neighbors of a memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		views, err := a.svc.Neighbors(cmd.Context(), tenantID, args[0], limit)
		if err != nil {
			return err
		}
		return printJSON(views)
	},
}

func init() {
	neighborsCmd.Flags().IntP("limit", "l", 10, "Max neighbors")
}
