package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/amgate/internal/auth"
	"github.com/BradenHooton/amgate/internal/background"
	"github.com/BradenHooton/amgate/internal/config"
	"github.com/BradenHooton/amgate/internal/handlers"
	middlewareCustom "github.com/BradenHooton/amgate/internal/middleware"
	"github.com/BradenHooton/amgate/internal/routes"
	pkghttp "github.com/BradenHooton/amgate/pkg/http"
	pkglogger "github.com/BradenHooton/amgate/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCommand(deps func() (*config.Config, *slog.Logger)) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the expired attempt sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := deps()

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				logger.Error("failed to initialize storage", slog.Any("error", err))
				return err
			}
			defer a.Close()

			if migrate && a.db == nil {
				logger.Warn("--migrate ignored for in-memory storage")
			}
			if migrate && a.db != nil {
				if err := a.db.Migrate(cmd.Context()); err != nil {
					logger.Error("failed to apply migrations", slog.Any("error", err))
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving (postgres only)")
	return cmd
}

func newRouter(a *app) http.Handler {
	cfg, logger := a.cfg, a.logger
	proxies := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	sessions := auth.NewCookieSession(cfg.Session.HashKey, cfg.Session.BlockKey, auth.CookieConfig{
		Name:     cfg.Session.CookieName,
		Domain:   cfg.Session.Domain,
		Secure:   cfg.Session.Secure,
		SameSite: "lax",
	})
	audit := pkglogger.NewAuditLogger(logger, cfg.Server.Env)
	failures := handlers.NewLoginFailureHandler(sessions, proxies, logger)
	failures.SetDelay(auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:   cfg.Lockout.FailureDelay,
		RandomDelay: cfg.Lockout.FailureJitter,
	}))

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger, proxies))
	if a.metrics != nil {
		router.Use(a.metrics.Middleware)
	}
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	h := routes.Handlers{
		LoginAttempts: handlers.NewLoginAttemptHandler(a.attempts, a.lockout, audit, proxies, logger),
		Approvals:     handlers.NewScopeApprovalHandler(a.approvals, a.clock, audit, logger),
		Consent:       handlers.NewConsentHandler(a.approvals, sessions, failures, a.clock, cfg.Consent.ApprovalTTL),
		Health:        handlers.HealthHandler(a.health, cfg.Storage.Backend),
		MetricsPath:   cfg.Metrics.Path,
	}
	if a.metrics != nil {
		h.Metrics = a.metrics.Handler()
	}

	routes.RegisterRoutes(router, h, middlewareCustom.RateLimitConfig{
		RequestsPerMinute: cfg.Server.RequestsPerMinute,
		Proxies:           proxies,
	})
	return router
}

func serve(ctx context.Context, a *app) error {
	cfg, logger := a.cfg, a.logger

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      newRouter(a),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Storage.CleanupEnabled {
		cleanupManager := background.NewCleanupManager(a.sweeper, a.clock, logger, cfg.Storage.CleanupInterval)
		g.Go(func() error {
			cleanupManager.Start(ctx)
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", slog.Any("error", err))
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("server stopped gracefully")
	return nil
}
