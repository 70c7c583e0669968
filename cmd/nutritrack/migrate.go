package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nutritrack/internal/config"
	"nutritrack/internal/database"
)

func migrateCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending Postgres migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("error loading configuration: %w", err)
			}
			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if source == "" {
				source = cfg.MigrationsPath
			}
			return database.RunMigrations(source, cfg.GetDBMigrationConnectionString(), logger)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "migration source URL (defaults to MIGRATIONS_PATH)")
	return cmd
}
