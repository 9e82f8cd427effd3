package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/amgate/internal/models"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	if target != nil {
		if err := json.Unmarshal(w.Body.Bytes(), target); err != nil {
			t.Fatalf("failed to decode response body: %v", err)
		}
	}
}

// MockSessionManager implements auth.SessionManager for testing
type MockSessionManager struct {
	UserID    string
	Cleared   bool
	Destroyed bool
}

func (m *MockSessionManager) Identity(r *http.Request) (string, bool) {
	return m.UserID, m.UserID != ""
}

func (m *MockSessionManager) HasIdentity(r *http.Request) bool {
	return m.UserID != ""
}

func (m *MockSessionManager) SetIdentity(w http.ResponseWriter, r *http.Request, userID string) error {
	m.UserID = userID
	return nil
}

func (m *MockSessionManager) ClearIdentity(w http.ResponseWriter, r *http.Request) {
	m.Cleared = true
}

func (m *MockSessionManager) Destroy(w http.ResponseWriter, r *http.Request) {
	m.Destroyed = true
}

// MockLoginAttemptStore implements LoginAttemptStore for testing
type MockLoginAttemptStore struct {
	FindByCriteriaFunc   func(ctx context.Context, c models.LoginAttemptCriteria) (*models.LoginAttempt, error)
	DeleteByCriteriaFunc func(ctx context.Context, c models.LoginAttemptCriteria) (int64, error)
}

func (m *MockLoginAttemptStore) FindByCriteria(ctx context.Context, c models.LoginAttemptCriteria) (*models.LoginAttempt, error) {
	if m.FindByCriteriaFunc != nil {
		return m.FindByCriteriaFunc(ctx, c)
	}
	return nil, nil
}

func (m *MockLoginAttemptStore) DeleteByCriteria(ctx context.Context, c models.LoginAttemptCriteria) (int64, error) {
	if m.DeleteByCriteriaFunc != nil {
		return m.DeleteByCriteriaFunc(ctx, c)
	}
	return 0, nil
}

var errMockNotConfigured = errors.New("mock not configured")

// MockLockoutPolicy implements LockoutPolicy for testing
type MockLockoutPolicy struct {
	LoginFailedFunc    func(ctx context.Context, c models.LoginAttemptCriteria) (*models.LoginAttempt, bool, error)
	LoginSucceededFunc func(ctx context.Context, c models.LoginAttemptCriteria) error
	CheckAccountFunc   func(ctx context.Context, c models.LoginAttemptCriteria) (bool, *models.LoginAttempt, error)
	LockedFunc         func(attempt *models.LoginAttempt) bool
}

func (m *MockLockoutPolicy) LoginFailed(ctx context.Context, c models.LoginAttemptCriteria) (*models.LoginAttempt, bool, error) {
	if m.LoginFailedFunc != nil {
		return m.LoginFailedFunc(ctx, c)
	}
	return nil, false, errMockNotConfigured
}

func (m *MockLockoutPolicy) Locked(attempt *models.LoginAttempt) bool {
	if m.LockedFunc != nil {
		return m.LockedFunc(attempt)
	}
	return false
}

func (m *MockLockoutPolicy) LoginSucceeded(ctx context.Context, c models.LoginAttemptCriteria) error {
	if m.LoginSucceededFunc != nil {
		return m.LoginSucceededFunc(ctx, c)
	}
	return nil
}

func (m *MockLockoutPolicy) CheckAccount(ctx context.Context, c models.LoginAttemptCriteria) (bool, *models.LoginAttempt, error) {
	if m.CheckAccountFunc != nil {
		return m.CheckAccountFunc(ctx, c)
	}
	return false, nil, nil
}
