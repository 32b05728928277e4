package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nidhogg/cerebro-cortex/internal/cortex"
)

var recallCmd = &cobra.Command{
	Use:   "recall [query]",
	Short: "Recall memories relevant to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRecall,
}

func init() {
	f := recallCmd.Flags()
	f.IntP("top-k", "k", 10, "Max results")
	f.StringSlice("types", nil, "Restrict to memory types")
	f.Float64("min-salience", 0, "Minimum salience")
	f.String("visibility", "", "Restrict to one visibility")
	f.StringP("agent", "a", "", "Requesting agent, hides other agents' private memories")
	f.String("thread", "", "Requesting conversation thread")
	f.StringSlice("context", nil, "Memory ids that prime spreading activation")
	f.Bool("prompt", false, "Print a prompt context block instead of JSON")
	f.Int("max-tokens", 2000, "Token budget for --prompt")
}

func runRecall(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	req := cortex.RecallRequest{Query: strings.Join(args, " ")}
	req.TopK, _ = f.GetInt("top-k")
	req.MemoryTypes, _ = f.GetStringSlice("types")
	req.MinSalience, _ = f.GetFloat64("min-salience")
	req.Visibility, _ = f.GetString("visibility")
	req.AgentID, _ = f.GetString("agent")
	req.ConversationThread, _ = f.GetString("thread")
	req.ContextIDs, _ = f.GetStringSlice("context")
	prompt, _ := f.GetBool("prompt")

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if prompt {
		maxTokens, _ := f.GetInt("max-tokens")
		blocks, err := a.svc.BuildContext(cmd.Context(), tenantID, req, cortex.ContextBudget{MaxTokens: maxTokens, MaxBlocks: req.TopK})
		if err != nil {
			return err
		}
		fmt.Print(cortex.FormatContextPrompt(blocks))
		return nil
	}

	results, err := a.svc.Recall(cmd.Context(), tenantID, req)
	if err != nil {
		return err
	}
	return printJSON(results)
}
