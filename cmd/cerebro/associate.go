package main

import (
	"github.com/spf13/cobra"

	"github.com/nidhogg/cerebro-cortex/internal/cortex"
)

var associateCmd = &cobra.Command{
	Use:   "associate <source-id> <target-id> <link-type>",
	Short: "Create or strengthen a typed link between two memories",
	Long: "Link types: temporal, causal, semantic, affective, contextual, " +
		"contradicts, supports, derived_from, part_of.",
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		weight, _ := cmd.Flags().GetFloat64("weight")
		evidence, _ := cmd.Flags().GetString("evidence")

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.svc.Associate(cmd.Context(), tenantID, cortex.AssociateRequest{
			SourceID: args[0],
			TargetID: args[1],
			LinkType: args[2],
			Weight:   weight,
			Evidence: evidence,
		})
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

func init() {
	associateCmd.Flags().Float64P("weight", "w", 0.5, "Link weight in [0, 1]")
	associateCmd.Flags().String("evidence", "", "Why the memories are related")
}
