package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/amgate/internal/criteria"
	"github.com/BradenHooton/amgate/internal/models"
)

// AttemptMutation derives the attempt to save from the current one, which is nil
// when no live attempt matches. The result keeps current's id when current is set.
type AttemptMutation func(current *models.LoginAttempt) *models.LoginAttempt

// LoginAttemptBackend defines login attempt persistence primitives.
// Single-record reads report absence as models.ErrNotFound.
type LoginAttemptBackend interface {
	// GetByID retrieves an attempt by id regardless of expiry
	GetByID(ctx context.Context, id string) (*models.LoginAttempt, error)

	// FindOne returns the earliest created attempt matching the filter (ties broken by id)
	FindOne(ctx context.Context, filter criteria.Filter) (*models.LoginAttempt, error)

	// Insert stores a new attempt in a single write
	Insert(ctx context.Context, attempt *models.LoginAttempt) error

	// Replace overwrites the attempt with the same id and returns the stored row
	Replace(ctx context.Context, attempt *models.LoginAttempt) (*models.LoginAttempt, error)

	// DeleteByID removes an attempt; deleting an absent id is not an error
	DeleteByID(ctx context.Context, id string) error

	// DeleteWhere removes every attempt matching the filter
	DeleteWhere(ctx context.Context, filter criteria.Filter) (int64, error)

	// Count counts attempts matching the filter
	Count(ctx context.Context, filter criteria.Filter) (int64, error)

	// DeleteExpired physically removes attempts whose expiry is at or before now
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// Apply reads the earliest attempt matching filter, passes it to fn and saves the
	// result in one step. Calls sharing lockKey never interleave.
	Apply(ctx context.Context, lockKey string, filter criteria.Filter, fn AttemptMutation) (*models.LoginAttempt, error)
}

// ScopeApprovalBackend defines scope approval persistence primitives.
// Insert and Replace must report a natural key collision as models.ErrConflict.
type ScopeApprovalBackend interface {
	GetByID(ctx context.Context, id string) (*models.ScopeApproval, error)
	FindOne(ctx context.Context, filter criteria.Filter) (*models.ScopeApproval, error)

	// FindMany returns matching approvals ordered by created_at, id
	FindMany(ctx context.Context, filter criteria.Filter) ([]*models.ScopeApproval, error)

	Insert(ctx context.Context, approval *models.ScopeApproval) error
	Replace(ctx context.Context, approval *models.ScopeApproval) (*models.ScopeApproval, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteWhere(ctx context.Context, filter criteria.Filter) (int64, error)
	Count(ctx context.Context, filter criteria.Filter) (int64, error)
}
