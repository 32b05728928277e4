package main

import (
	"github.com/spf13/cobra"

	"github.com/nidhogg/cerebro-cortex/internal/memory"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Manage agent profiles",
}

var agentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered agents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		agents, err := a.svc.ListAgents(cmd.Context(), tenantID)
		if err != nil {
			return err
		}
		return printJSON(agents)
	},
}

var agentsRegisterCmd = &cobra.Command{
	Use:   "register <agent-id>",
	Short: "Create or update an agent profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		p := memory.AgentProfile{ID: args[0]}
		p.DisplayName, _ = f.GetString("name")
		p.Generation, _ = f.GetInt("generation")
		p.Lineage, _ = f.GetString("lineage")
		p.Specialization, _ = f.GetString("specialization")
		p.Color, _ = f.GetString("color")
		p.Symbol, _ = f.GetString("symbol")

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		out, err := a.svc.RegisterAgent(cmd.Context(), tenantID, p)
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

func init() {
	f := agentsRegisterCmd.Flags()
	f.String("name", "", "Display name (default: the id)")
	f.Int("generation", 0, "Generation number")
	f.String("lineage", "", "Lineage")
	f.String("specialization", "", "Specialization")
	f.String("color", "", "Display color")
	f.String("symbol", "", "Display symbol")

	agentsCmd.AddCommand(agentsListCmd)
	agentsCmd.AddCommand(agentsRegisterCmd)
}
