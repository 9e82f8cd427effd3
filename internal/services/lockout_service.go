package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/amgate/internal/clock"
	"github.com/BradenHooton/amgate/internal/models"
)

// LoginAttemptStore is the subset of the login attempt store the lockout policy needs
type LoginAttemptStore interface {
	FindByCriteria(ctx context.Context, c models.LoginAttemptCriteria) (*models.LoginAttempt, error)
	Apply(ctx context.Context, c models.LoginAttemptCriteria, fn func(current *models.LoginAttempt, now time.Time) *models.LoginAttempt) (*models.LoginAttempt, error)
	DeleteByCriteria(ctx context.Context, c models.LoginAttemptCriteria) (int64, error)
}

// LockoutRecorder is notified when an identity crosses the lockout threshold
type LockoutRecorder interface {
	LockoutTriggered()
}

// LockoutConfig holds configuration for account lockout behavior
type LockoutConfig struct {
	MaxAttempts     int
	ResetWindow     time.Duration // failures older than this are forgotten
	LockoutDuration time.Duration
}

// LockoutService counts failed logins per identity and locks the identity once the
// threshold is reached. The lock lifts when the attempt record expires.
type LockoutService struct {
	store    LoginAttemptStore
	config   LockoutConfig
	clock    clock.Clock
	recorder LockoutRecorder
	logger   *slog.Logger
}

// NewLockoutService creates a new LockoutService. recorder may be nil.
func NewLockoutService(store LoginAttemptStore, config LockoutConfig, clk clock.Clock, recorder LockoutRecorder, logger *slog.Logger) *LockoutService {
	return &LockoutService{
		store:    store,
		config:   config,
		clock:    clk,
		recorder: recorder,
		logger:   logger,
	}
}

// LoginFailed records one more failed login for c. It returns the updated attempt
// and whether the account is locked after this failure. Concurrent failures for the
// same account are counted one by one.
func (s *LockoutService) LoginFailed(ctx context.Context, c models.LoginAttemptCriteria) (*models.LoginAttempt, bool, error) {
	saved, err := s.store.Apply(ctx, c, func(current *models.LoginAttempt, now time.Time) *models.LoginAttempt {
		next := &models.LoginAttempt{
			Domain:           c.Domain,
			Client:           c.Client,
			IdentityProvider: c.IdentityProvider,
			Username:         c.Username,
		}
		if current != nil {
			copied := *current
			next = &copied
		}

		next.Attempts++
		next.UpdatedAt = now
		expireAt := now.Add(s.config.ResetWindow)
		if next.Attempts >= s.config.MaxAttempts {
			expireAt = now.Add(s.config.LockoutDuration)
		}
		next.ExpireAt = &expireAt
		return next
	})
	if err != nil {
		return nil, false, err
	}

	if saved.Attempts == s.config.MaxAttempts {
		s.logger.Warn("account locked",
			slog.String("domain", saved.Domain),
			slog.String("client", saved.Client),
			slog.String("username", saved.Username),
			slog.Int("failed_attempts", saved.Attempts),
			slog.Duration("lockout_duration", s.config.LockoutDuration))
		if s.recorder != nil {
			s.recorder.LockoutTriggered()
		}
	}

	return saved, s.Locked(saved), nil
}

// Locked reports whether a live attempt has reached the lockout threshold
func (s *LockoutService) Locked(attempt *models.LoginAttempt) bool {
	return attempt != nil && attempt.Attempts >= s.config.MaxAttempts
}

// LoginSucceeded forgets every failure counted for c
func (s *LockoutService) LoginSucceeded(ctx context.Context, c models.LoginAttemptCriteria) error {
	_, err := s.store.DeleteByCriteria(ctx, c)
	return err
}

// CheckAccount reports whether c is currently locked, with the live attempt if any
func (s *LockoutService) CheckAccount(ctx context.Context, c models.LoginAttemptCriteria) (bool, *models.LoginAttempt, error) {
	attempt, err := s.store.FindByCriteria(ctx, c)
	if err != nil {
		return false, nil, err
	}
	return s.Locked(attempt), attempt, nil
}

// Unlock clears an identity's failures on administrator request
func (s *LockoutService) Unlock(ctx context.Context, c models.LoginAttemptCriteria) error {
	if err := s.LoginSucceeded(ctx, c); err != nil {
		return err
	}
	s.logger.Info("account unlocked",
		slog.String("domain", c.Domain),
		slog.String("username", c.Username))
	return nil
}
