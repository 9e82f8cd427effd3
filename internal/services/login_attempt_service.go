package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BradenHooton/amgate/internal/criteria"
	"github.com/BradenHooton/amgate/internal/models"
	"github.com/BradenHooton/amgate/internal/repositories"
)

const (
	opAttemptFindByCriteria   = "login_attempt.find_by_criteria"
	opAttemptFindByID         = "login_attempt.find_by_id"
	opAttemptCreate           = "login_attempt.create"
	opAttemptUpdate           = "login_attempt.update"
	opAttemptDelete           = "login_attempt.delete"
	opAttemptDeleteByCriteria = "login_attempt.delete_by_criteria"
	opAttemptApply            = "login_attempt.apply"
)

// LoginAttemptService is the login attempt store. Reads only see attempts whose
// expiry is unset or after the clock's current time.
type LoginAttemptService struct {
	backend repositories.LoginAttemptBackend
	opts    storeOptions
}

// NewLoginAttemptService creates a new LoginAttemptService
func NewLoginAttemptService(backend repositories.LoginAttemptBackend, opts ...StoreOption) *LoginAttemptService {
	return &LoginAttemptService{
		backend: backend,
		opts:    newStoreOptions(opts),
	}
}

// FindByCriteria returns the earliest created visible attempt matching c, or nil
func (s *LoginAttemptService) FindByCriteria(ctx context.Context, c models.LoginAttemptCriteria) (*models.LoginAttempt, error) {
	finish := s.opts.observer.Begin(ctx, opAttemptFindByCriteria, criteriaAttrs(c)...)

	filter := criteria.ForLoginAttempt(c).Visible(s.opts.clock.Now())
	attempt, err := s.backend.FindOne(ctx, filter)
	if errors.Is(err, models.ErrNotFound) {
		finish(nil)
		return nil, nil
	}
	if err != nil {
		finish(err)
		return nil, persistenceFailure(opAttemptFindByCriteria, err)
	}

	finish(nil)
	return attempt, nil
}

// FindByID returns the attempt with the given id if it is still visible, or nil
func (s *LoginAttemptService) FindByID(ctx context.Context, id string) (*models.LoginAttempt, error) {
	finish := s.opts.observer.Begin(ctx, opAttemptFindByID, slog.String("id", id))

	attempt, err := s.backend.GetByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		finish(nil)
		return nil, nil
	}
	if err != nil {
		finish(err)
		return nil, persistenceFailure(opAttemptFindByID, err)
	}

	finish(nil)
	if !attempt.VisibleAt(s.opts.clock.Now()) {
		return nil, nil
	}
	return attempt, nil
}

// Create stores a new attempt and returns it as re-read from the backend.
// The re-read skips the expiry check so an already expired attempt is still returned.
func (s *LoginAttemptService) Create(ctx context.Context, item *models.LoginAttempt) (*models.LoginAttempt, error) {
	record := *item
	if record.ID == "" {
		record.ID = s.opts.newID()
	}
	now := s.opts.clock.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}

	finish := s.opts.observer.Begin(ctx, opAttemptCreate, attemptAttrs(&record)...)

	if err := s.backend.Insert(ctx, &record); err != nil {
		finish(err)
		return nil, persistenceFailure(opAttemptCreate, err)
	}

	stored, err := s.backend.GetByID(ctx, record.ID)
	if err != nil {
		finish(err)
		return nil, persistenceFailure(opAttemptCreate, err)
	}

	finish(nil)
	return stored, nil
}

// Update replaces the stored attempt with the same id. A missing id surfaces as a
// PersistenceError wrapping models.ErrNotFound.
func (s *LoginAttemptService) Update(ctx context.Context, item *models.LoginAttempt) (*models.LoginAttempt, error) {
	finish := s.opts.observer.Begin(ctx, opAttemptUpdate, attemptAttrs(item)...)

	stored, err := s.backend.Replace(ctx, item)
	if err != nil {
		finish(err)
		return nil, persistenceFailure(opAttemptUpdate, err)
	}

	finish(nil)
	return stored, nil
}

// Delete removes an attempt by id. Deleting an absent id is not an error.
func (s *LoginAttemptService) Delete(ctx context.Context, id string) error {
	finish := s.opts.observer.Begin(ctx, opAttemptDelete, slog.String("id", id))

	if err := s.backend.DeleteByID(ctx, id); err != nil {
		finish(err)
		return persistenceFailure(opAttemptDelete, err)
	}

	finish(nil)
	return nil
}

// DeleteByCriteria removes every attempt matching c, expired or not.
// Returns models.ErrInvalidQuery without touching the backend when c is empty.
func (s *LoginAttemptService) DeleteByCriteria(ctx context.Context, c models.LoginAttemptCriteria) (int64, error) {
	finish := s.opts.observer.Begin(ctx, opAttemptDeleteByCriteria, criteriaAttrs(c)...)

	filter, err := criteria.ForLoginAttempt(c).ForDelete()
	if err != nil {
		finish(err)
		return 0, err
	}

	n, err := s.backend.DeleteWhere(ctx, filter)
	if err != nil {
		finish(err)
		return 0, persistenceFailure(opAttemptDeleteByCriteria, err)
	}

	finish(nil)
	return n, nil
}

// Apply reads the live attempt matching c and saves what fn derives from it, as one
// step per account. fn receives nil when no live attempt exists; a result without an
// id or timestamps is completed like Create.
func (s *LoginAttemptService) Apply(ctx context.Context, c models.LoginAttemptCriteria, fn func(current *models.LoginAttempt, now time.Time) *models.LoginAttempt) (*models.LoginAttempt, error) {
	finish := s.opts.observer.Begin(ctx, opAttemptApply, criteriaAttrs(c)...)

	now := s.opts.clock.Now()
	filter := criteria.ForLoginAttempt(c).Visible(now)

	stored, err := s.backend.Apply(ctx, c.LockKey(), filter, func(current *models.LoginAttempt) *models.LoginAttempt {
		next := fn(current, now)
		if next.ID == "" {
			next.ID = s.opts.newID()
		}
		if next.CreatedAt.IsZero() {
			next.CreatedAt = now
		}
		if next.UpdatedAt.IsZero() {
			next.UpdatedAt = now
		}
		return next
	})
	if err != nil {
		finish(err)
		return nil, persistenceFailure(opAttemptApply, err)
	}

	finish(nil)
	return stored, nil
}

func criteriaAttrs(c models.LoginAttemptCriteria) []slog.Attr {
	return []slog.Attr{
		slog.String("domain", c.Domain),
		slog.String("client", c.Client),
		slog.String("identity_provider", c.IdentityProvider),
		slog.String("username", c.Username),
	}
}

func attemptAttrs(a *models.LoginAttempt) []slog.Attr {
	return append([]slog.Attr{slog.String("id", a.ID)}, criteriaAttrs(a.Criteria())...)
}
