package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BradenHooton/amgate/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		cfg    *config.Config
		logger *slog.Logger
	)

	root := &cobra.Command{
		Use:           "amgate",
		Short:         "Login attempt and scope approval store for the identity gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				slog.Error("failed to load configuration", slog.Any("error", err))
				return err
			}
			cfg = loaded
			logger = newLogger(cfg.Server.LogLevel)
			slog.SetDefault(logger)
			logger.Info("configuration loaded",
				slog.String("env", cfg.Server.Env),
				slog.String("storage_backend", cfg.Storage.Backend),
			)
			return nil
		},
	}

	// subcommands read the configuration through these closures once PersistentPreRunE ran
	deps := func() (*config.Config, *slog.Logger) { return cfg, logger }

	root.AddCommand(
		newServeCommand(deps),
		newMigrateCommand(deps),
		newSweepCommand(deps),
		newUnlockCommand(deps),
	)
	return root
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func requirePostgres(cfg *config.Config, command string) error {
	if cfg.Storage.Backend != config.BackendPostgres {
		return fmt.Errorf("%s needs STORAGE_BACKEND=%s (got %q)", command, config.BackendPostgres, cfg.Storage.Backend)
	}
	return nil
}
