package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	tenantID   string
)

var rootCmd = &cobra.Command{
	Use:   "cerebro",
	Short: "Associative memory for AI agents",
	Long: "cerebro stores memories as a weighted graph and recalls them by fusing " +
		"vector similarity, spreading activation and forgetting-curve strength.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		if configPath == "" {
			configPath = os.Getenv("CEREBRO_CONFIG")
		}
		if tenantID == "" {
			tenantID = os.Getenv("CEREBRO_TENANT")
		}
		if tenantID == "" {
			tenantID = "default"
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file, JSON or YAML (default: $CEREBRO_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&tenantID, "tenant", "t", "", "Tenant id (default: $CEREBRO_TENANT or \"default\")")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(rememberCmd)
	rootCmd.AddCommand(recallCmd)
	rootCmd.AddCommand(associateCmd)
	rootCmd.AddCommand(neighborsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(episodesCmd)
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Println(string(b))
	return nil
}
