package main

import (
	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/config"
	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/logging"
	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/repositories"
	"github.com/spf13/cobra"
)

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.OutOrStdout())

			db, err := openDB(cmd.Context(), cfg.DB)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := repositories.Migrate(cmd.Context(), db, cfg.DB.Driver); err != nil {
				return err
			}
			logger.Info("schema is up to date", "driver", cfg.DB.Driver)
			return nil
		},
	}
}
