package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/nidhogg/cerebro-cortex/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()
		if cfg.Database.Postgres.DSN == "" {
			return errors.New("database.postgres.dsn is not set")
		}
		return store.Migrate(cfg.Database.Postgres.DSN, logger)
	},
}
