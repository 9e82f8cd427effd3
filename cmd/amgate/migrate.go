package main

import (
	"log/slog"

	"github.com/BradenHooton/amgate/internal/config"
	"github.com/BradenHooton/amgate/internal/database"
	"github.com/spf13/cobra"
)

func newMigrateCommand(deps func() (*config.Config, *slog.Logger)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := deps()
			if err := requirePostgres(cfg, "migrate"); err != nil {
				return err
			}

			db, err := database.NewConnection(cmd.Context(), &cfg.Database, logger)
			if err != nil {
				logger.Error("failed to connect to database", slog.Any("error", err))
				return err
			}
			defer db.Close()

			if err := db.Migrate(cmd.Context()); err != nil {
				logger.Error("failed to apply migrations", slog.Any("error", err))
				return err
			}
			logger.Info("migrations applied")
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied state of every migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := deps()
			if err := requirePostgres(cfg, "migrate status"); err != nil {
				return err
			}

			db, err := database.NewConnection(cmd.Context(), &cfg.Database, logger)
			if err != nil {
				logger.Error("failed to connect to database", slog.Any("error", err))
				return err
			}
			defer db.Close()

			return db.MigrationStatus(cmd.Context())
		},
	})

	return cmd
}
