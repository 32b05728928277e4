package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/nidhogg/cerebro-cortex/internal/cortex"
)

var rememberCmd = &cobra.Command{
	Use:   "remember [content]",
	Short: "Store a memory",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRemember,
}

func init() {
	f := rememberCmd.Flags()
	f.String("type", "", "Memory type hint: semantic, episodic, procedural, affective, prospective, schematic")
	f.StringSlice("tags", nil, "Tags")
	f.Float64("salience", 0, "Salience override, clamped to [0.1, 1]")
	f.StringP("agent", "a", "", "Owning agent id")
	f.String("visibility", "", "private, shared or thread")
	f.String("session", "", "Session id")
	f.String("thread", "", "Conversation thread")
	f.String("episode", "", "Episode id to append to")
	f.StringSlice("context", nil, "Ids of memories this one was formed in the context of")
	f.StringSlice("responding-to", nil, "Ids of memories this one responds to")
	f.StringSlice("related-agents", nil, "Other agents involved")
	f.String("source", "", "Origin of the content (default user_input)")
}

func runRemember(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	req := cortex.RememberRequest{Content: strings.Join(args, " ")}
	req.MemoryType, _ = f.GetString("type")
	req.Tags, _ = f.GetStringSlice("tags")
	req.AgentID, _ = f.GetString("agent")
	req.Visibility, _ = f.GetString("visibility")
	req.SessionID, _ = f.GetString("session")
	req.ConversationThread, _ = f.GetString("thread")
	req.EpisodeID, _ = f.GetString("episode")
	req.ContextIDs, _ = f.GetStringSlice("context")
	req.RespondingTo, _ = f.GetStringSlice("responding-to")
	req.RelatedAgents, _ = f.GetStringSlice("related-agents")
	req.Source, _ = f.GetString("source")
	if f.Changed("salience") {
		v, _ := f.GetFloat64("salience")
		req.Salience = &v
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.svc.Remember(cmd.Context(), tenantID, req)
	if err != nil {
		return err
	}
	if res == nil {
		return printJSON(map[string]string{"action": "filtered"})
	}
	return printJSON(res)
}
