package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/amgate/internal/background"
	"github.com/BradenHooton/amgate/internal/clock"
	"github.com/BradenHooton/amgate/internal/config"
	"github.com/BradenHooton/amgate/internal/database"
	"github.com/BradenHooton/amgate/internal/handlers"
	"github.com/BradenHooton/amgate/internal/metrics"
	"github.com/BradenHooton/amgate/internal/observability"
	"github.com/BradenHooton/amgate/internal/repositories"
	"github.com/BradenHooton/amgate/internal/services"
)

// app holds the stores and their backing resources for one process
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	clock     clock.Clock
	db        *database.DB
	metrics   *metrics.Metrics
	attempts  *services.LoginAttemptService
	approvals *services.ScopeApprovalService
	lockout   *services.LockoutService
	sweeper   background.ExpiredAttemptSweeper
	health    handlers.HealthChecker
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, clock: clock.System{}}

	var (
		attemptBackend  repositories.LoginAttemptBackend
		approvalBackend repositories.ScopeApprovalBackend
	)

	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		db, err := database.NewConnection(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.db = db
		a.health = db
		attemptBackend = repositories.NewLoginAttemptRepository(db)
		approvalBackend = repositories.NewScopeApprovalRepository(db)
	case config.BackendMemory:
		logger.Warn("using in-memory storage, records are lost on restart")
		attemptBackend = repositories.NewMemoryLoginAttemptRepository()
		approvalBackend = repositories.NewMemoryScopeApprovalRepository()
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	a.sweeper = attemptBackend

	observers := []observability.Observer{observability.NewLogObserver(logger)}
	var recorder services.LockoutRecorder
	if cfg.Metrics.Enabled {
		m, err := metrics.New()
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		a.metrics = m
		if a.db != nil {
			if err := m.ObservePool(a.db); err != nil {
				a.Close()
				return nil, fmt.Errorf("failed to register pool metrics: %w", err)
			}
		}
		observers = append(observers, m)
		recorder = m
	}

	opts := []services.StoreOption{
		services.WithClock(a.clock),
		services.WithObserver(observability.Chain(observers...)),
	}
	a.attempts = services.NewLoginAttemptService(attemptBackend, opts...)
	a.approvals = services.NewScopeApprovalService(approvalBackend, opts...)
	a.lockout = services.NewLockoutService(a.attempts, services.LockoutConfig{
		MaxAttempts:     cfg.Lockout.MaxAttempts,
		ResetWindow:     cfg.Lockout.ResetWindow,
		LockoutDuration: cfg.Lockout.LockoutDuration,
	}, a.clock, recorder, logger)

	return a, nil
}

// Close releases the database pool, if any
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}
