package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nidhogg/cerebro-cortex/internal/memory"
)

var updateCmd = &cobra.Command{
	Use:   "update <memory-id>",
	Short: "Edit the metadata of a memory",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpdate,
}

func init() {
	f := updateCmd.Flags()
	f.StringSlice("tags", nil, "Replace tags")
	f.Float64("salience", 0, "Salience, clamped to [0.1, 1]")
	f.Float64("arousal", 0, "Arousal, clamped to [0, 1]")
	f.String("visibility", "", "private, shared or thread")
	f.String("layer", "", "sensory, working, long_term or cortex")
	f.String("valence", "", "positive, negative, neutral or mixed")
	f.String("episode", "", "Episode id")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	var u memory.MetadataUpdate
	if f.Changed("tags") {
		tags, _ := f.GetStringSlice("tags")
		u.Tags = &tags
	}
	if f.Changed("salience") {
		v, _ := f.GetFloat64("salience")
		u.Salience = &v
	}
	if f.Changed("arousal") {
		v, _ := f.GetFloat64("arousal")
		u.Arousal = &v
	}
	if f.Changed("visibility") {
		raw, _ := f.GetString("visibility")
		v, err := memory.ParseVisibility(raw)
		if err != nil {
			return err
		}
		u.Visibility = &v
	}
	if f.Changed("layer") {
		raw, _ := f.GetString("layer")
		l, err := memory.ParseLayer(raw)
		if err != nil {
			return err
		}
		u.Layer = &l
	}
	if f.Changed("valence") {
		raw, _ := f.GetString("valence")
		v := memory.ParseValenceOr(raw, "")
		if v == "" {
			return fmt.Errorf("unknown valence %q", raw)
		}
		u.Valence = &v
	}
	if f.Changed("episode") {
		e, _ := f.GetString("episode")
		u.EpisodeID = &e
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	ok, err := a.svc.UpdateMetadata(cmd.Context(), tenantID, args[0], u)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("memory %s not found", args[0])
	}
	return printJSON(map[string]any{"id": args[0], "updated": true})
}
