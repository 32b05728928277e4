package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var episodesCmd = &cobra.Command{
	Use:   "episodes",
	Short: "Start, end and inspect episodes",
}

var episodesStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Open an episode; pass its id to remember --episode",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		agent, _ := cmd.Flags().GetString("agent")
		session, _ := cmd.Flags().GetString("session")

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		e, err := a.svc.StartEpisode(cmd.Context(), tenantID, title, agent, session)
		if err != nil {
			return err
		}
		return printJSON(e)
	},
}

var episodesEndCmd = &cobra.Command{
	Use:   "end <episode-id>",
	Short: "Close an episode and summarise its affect",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		e, err := a.svc.EndEpisode(cmd.Context(), tenantID, args[0])
		if err != nil {
			return err
		}
		if e == nil {
			return fmt.Errorf("episode %s not found", args[0])
		}
		return printJSON(e)
	},
}

var episodesShowCmd = &cobra.Command{
	Use:   "show <episode-id>",
	Short: "Show an episode with its steps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		e, err := a.svc.Episode(cmd.Context(), tenantID, args[0])
		if err != nil {
			return err
		}
		if e == nil {
			return fmt.Errorf("episode %s not found", args[0])
		}
		return printJSON(e)
	},
}

var episodesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent episodes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		eps, err := a.svc.ListEpisodes(cmd.Context(), tenantID, limit)
		if err != nil {
			return err
		}
		return printJSON(eps)
	},
}

func init() {
	episodesStartCmd.Flags().String("title", "", "Episode title")
	episodesStartCmd.Flags().StringP("agent", "a", "", "Agent id")
	episodesStartCmd.Flags().String("session", "", "Session id")
	episodesListCmd.Flags().IntP("limit", "l", 20, "Max episodes")

	episodesCmd.AddCommand(episodesStartCmd)
	episodesCmd.AddCommand(episodesEndCmd)
	episodesCmd.AddCommand(episodesShowCmd)
	episodesCmd.AddCommand(episodesListCmd)
}
