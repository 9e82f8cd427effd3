package main

import (
	"fmt"
	"log/slog"

	"github.com/BradenHooton/amgate/internal/background"
	"github.com/BradenHooton/amgate/internal/config"
	"github.com/BradenHooton/amgate/internal/models"
	"github.com/spf13/cobra"
)

func newSweepCommand(deps func() (*config.Config, *slog.Logger)) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired login attempts once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := deps()
			if err := requirePostgres(cfg, "sweep"); err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			n := background.NewCleanupManager(a.sweeper, a.clock, logger, cfg.Storage.CleanupInterval).RunOnce(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired login attempts\n", n)
			return nil
		},
	}
}

func newUnlockCommand(deps func() (*config.Config, *slog.Logger)) *cobra.Command {
	var c models.LoginAttemptCriteria

	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Clear the failed login count of an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := deps()
			if err := requirePostgres(cfg, "unlock"); err != nil {
				return err
			}
			if c.Domain == "" || c.Username == "" {
				return fmt.Errorf("--domain and --username are required")
			}

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.lockout.Unlock(cmd.Context(), c); err != nil {
				logger.Error("failed to unlock account", slog.Any("error", err))
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}

	cmd.Flags().StringVar(&c.Domain, "domain", "", "security domain of the account")
	cmd.Flags().StringVar(&c.Username, "username", "", "username of the account")
	cmd.Flags().StringVar(&c.Client, "client", "", "restrict to one client")
	cmd.Flags().StringVar(&c.IdentityProvider, "idp", "", "restrict to one identity provider")
	return cmd
}
