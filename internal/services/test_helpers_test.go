package services

import (
	"context"
	"time"

	"github.com/BradenHooton/amgate/internal/criteria"
	"github.com/BradenHooton/amgate/internal/models"
	"github.com/BradenHooton/amgate/internal/repositories"
)

// MockLoginAttemptBackend implements repositories.LoginAttemptBackend for testing
type MockLoginAttemptBackend struct {
	GetByIDFunc       func(ctx context.Context, id string) (*models.LoginAttempt, error)
	FindOneFunc       func(ctx context.Context, filter criteria.Filter) (*models.LoginAttempt, error)
	InsertFunc        func(ctx context.Context, attempt *models.LoginAttempt) error
	ReplaceFunc       func(ctx context.Context, attempt *models.LoginAttempt) (*models.LoginAttempt, error)
	DeleteByIDFunc    func(ctx context.Context, id string) error
	DeleteWhereFunc   func(ctx context.Context, filter criteria.Filter) (int64, error)
	CountFunc         func(ctx context.Context, filter criteria.Filter) (int64, error)
	DeleteExpiredFunc func(ctx context.Context, now time.Time) (int64, error)
	ApplyFunc         func(ctx context.Context, lockKey string, filter criteria.Filter, fn repositories.AttemptMutation) (*models.LoginAttempt, error)
}

func (m *MockLoginAttemptBackend) GetByID(ctx context.Context, id string) (*models.LoginAttempt, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockLoginAttemptBackend) FindOne(ctx context.Context, filter criteria.Filter) (*models.LoginAttempt, error) {
	if m.FindOneFunc != nil {
		return m.FindOneFunc(ctx, filter)
	}
	return nil, models.ErrNotFound
}

func (m *MockLoginAttemptBackend) Insert(ctx context.Context, attempt *models.LoginAttempt) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, attempt)
	}
	return nil
}

func (m *MockLoginAttemptBackend) Replace(ctx context.Context, attempt *models.LoginAttempt) (*models.LoginAttempt, error) {
	if m.ReplaceFunc != nil {
		return m.ReplaceFunc(ctx, attempt)
	}
	return nil, models.ErrNotFound
}

func (m *MockLoginAttemptBackend) DeleteByID(ctx context.Context, id string) error {
	if m.DeleteByIDFunc != nil {
		return m.DeleteByIDFunc(ctx, id)
	}
	return nil
}

func (m *MockLoginAttemptBackend) DeleteWhere(ctx context.Context, filter criteria.Filter) (int64, error) {
	if m.DeleteWhereFunc != nil {
		return m.DeleteWhereFunc(ctx, filter)
	}
	return 0, nil
}

func (m *MockLoginAttemptBackend) Count(ctx context.Context, filter criteria.Filter) (int64, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx, filter)
	}
	return 0, nil
}

func (m *MockLoginAttemptBackend) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx, now)
	}
	return 0, nil
}

func (m *MockLoginAttemptBackend) Apply(ctx context.Context, lockKey string, filter criteria.Filter, fn repositories.AttemptMutation) (*models.LoginAttempt, error) {
	if m.ApplyFunc != nil {
		return m.ApplyFunc(ctx, lockKey, filter, fn)
	}
	return fn(nil), nil
}

// MockScopeApprovalBackend implements repositories.ScopeApprovalBackend for testing
type MockScopeApprovalBackend struct {
	GetByIDFunc     func(ctx context.Context, id string) (*models.ScopeApproval, error)
	FindOneFunc     func(ctx context.Context, filter criteria.Filter) (*models.ScopeApproval, error)
	FindManyFunc    func(ctx context.Context, filter criteria.Filter) ([]*models.ScopeApproval, error)
	InsertFunc      func(ctx context.Context, approval *models.ScopeApproval) error
	ReplaceFunc     func(ctx context.Context, approval *models.ScopeApproval) (*models.ScopeApproval, error)
	DeleteByIDFunc  func(ctx context.Context, id string) error
	DeleteWhereFunc func(ctx context.Context, filter criteria.Filter) (int64, error)
	CountFunc       func(ctx context.Context, filter criteria.Filter) (int64, error)
}

func (m *MockScopeApprovalBackend) GetByID(ctx context.Context, id string) (*models.ScopeApproval, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockScopeApprovalBackend) FindOne(ctx context.Context, filter criteria.Filter) (*models.ScopeApproval, error) {
	if m.FindOneFunc != nil {
		return m.FindOneFunc(ctx, filter)
	}
	return nil, models.ErrNotFound
}

func (m *MockScopeApprovalBackend) FindMany(ctx context.Context, filter criteria.Filter) ([]*models.ScopeApproval, error) {
	if m.FindManyFunc != nil {
		return m.FindManyFunc(ctx, filter)
	}
	return []*models.ScopeApproval{}, nil
}

func (m *MockScopeApprovalBackend) Insert(ctx context.Context, approval *models.ScopeApproval) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, approval)
	}
	return nil
}

func (m *MockScopeApprovalBackend) Replace(ctx context.Context, approval *models.ScopeApproval) (*models.ScopeApproval, error) {
	if m.ReplaceFunc != nil {
		return m.ReplaceFunc(ctx, approval)
	}
	return nil, models.ErrNotFound
}

func (m *MockScopeApprovalBackend) DeleteByID(ctx context.Context, id string) error {
	if m.DeleteByIDFunc != nil {
		return m.DeleteByIDFunc(ctx, id)
	}
	return nil
}

func (m *MockScopeApprovalBackend) DeleteWhere(ctx context.Context, filter criteria.Filter) (int64, error) {
	if m.DeleteWhereFunc != nil {
		return m.DeleteWhereFunc(ctx, filter)
	}
	return 0, nil
}

func (m *MockScopeApprovalBackend) Count(ctx context.Context, filter criteria.Filter) (int64, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx, filter)
	}
	return 0, nil
}
