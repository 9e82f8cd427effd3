package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/BradenHooton/amgate/internal/auth"
	"github.com/BradenHooton/amgate/internal/models"
	pkghttp "github.com/BradenHooton/amgate/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFailureHandler(sessions *MockSessionManager) *LoginFailureHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewLoginFailureHandler(sessions, &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}, logger)
}

func TestLoginFailureHandler_RecoverableFailuresRedirect(t *testing.T) {
	failures := map[string]error{
		"oauth2":         models.NewOAuth2Error(errors.New("invalid_request")),
		"management":     models.NewManagementError(errors.New("domain disabled")),
		"authentication": models.NewAuthenticationError(errors.New("bad credentials")),
		"policy":         fmt.Errorf("chain: %w", models.NewPolicyError(errors.New("denied"))),
	}

	for name, failure := range failures {
		t.Run(name, func(t *testing.T) {
			h := newFailureHandler(&MockSessionManager{})
			req := httptest.NewRequest(http.MethodPost, "http://gateway.local/d1/login?client_id=app&error=old&password=x", nil)
			rec := httptest.NewRecorder()

			h.HandleFailure(rec, req, failure)

			require.Equal(t, http.StatusFound, rec.Code)
			location, err := url.Parse(rec.Header().Get("Location"))
			require.NoError(t, err)
			assert.Equal(t, "/d1/login", location.Path)
			assert.Equal(t, url.Values{"client_id": {"app"}, "error": {"login_failed"}}, location.Query())
			assert.Empty(t, rec.Body.String())
		})
	}
}

func TestLoginFailureHandler_LogsOutAuthenticatedUser(t *testing.T) {
	sessions := &MockSessionManager{UserID: "u1"}
	h := newFailureHandler(sessions)

	rec := httptest.NewRecorder()
	h.HandleFailure(rec, httptest.NewRequest(http.MethodPost, "/d1/login", nil), models.NewAuthenticationError(nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, sessions.Cleared)
	assert.True(t, sessions.Destroyed)
}

func TestLoginFailureHandler_AnonymousSessionUntouched(t *testing.T) {
	sessions := &MockSessionManager{}
	h := newFailureHandler(sessions)

	rec := httptest.NewRecorder()
	h.HandleFailure(rec, httptest.NewRequest(http.MethodPost, "/d1/login", nil), models.NewOAuth2Error(nil))

	assert.False(t, sessions.Cleared)
	assert.False(t, sessions.Destroyed)
}

func TestLoginFailureHandler_RedirectHonoursTrustedProxy(t *testing.T) {
	h := newFailureHandler(&MockSessionManager{})
	req := httptest.NewRequest(http.MethodPost, "http://10.1.1.1/d1/login", nil)
	req.RemoteAddr = "10.0.0.9:1234"
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set("X-Forwarded-Host", "auth.example.com")
	req.Header.Set("X-Forwarded-Prefix", "/am")

	rec := httptest.NewRecorder()
	h.HandleFailure(rec, req, models.NewAuthenticationError(nil))

	assert.Equal(t, "https://auth.example.com/am/d1/login?error=login_failed", rec.Header().Get("Location"))
}

func TestLoginFailureHandler_FatalErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
		{"persistence error", models.NewPersistenceError("scope_approval.upsert", errors.New("db down")), http.StatusInternalServerError},
		{"upstream status", &models.StatusError{Code: http.StatusServiceUnavailable, Err: errors.New("maintenance")}, http.StatusServiceUnavailable},
		{"wrapped upstream status", fmt.Errorf("consent: %w", &models.StatusError{Code: http.StatusBadRequest}), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &MockSessionManager{UserID: "u1"}
			h := newFailureHandler(sessions)
			rec := httptest.NewRecorder()

			h.HandleFailure(rec, httptest.NewRequest(http.MethodPost, "/d1/login", nil), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Empty(t, rec.Body.String(), "no detail leaks to the client")
			assert.Empty(t, rec.Header().Get("Location"))
			assert.False(t, sessions.Destroyed)
		})
	}
}

func TestLoginFailureHandler_Wrap(t *testing.T) {
	h := newFailureHandler(&MockSessionManager{})

	ok := h.Wrap(func(w http.ResponseWriter, r *http.Request) error {
		w.WriteHeader(http.StatusNoContent)
		return nil
	})
	rec := httptest.NewRecorder()
	ok(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	failing := h.Wrap(func(w http.ResponseWriter, r *http.Request) error {
		return models.NewAuthenticationError(nil)
	})
	rec = httptest.NewRecorder()
	failing(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestLoginFailureHandler_WrapPadsFailuresOnly(t *testing.T) {
	h := newFailureHandler(&MockSessionManager{})
	h.SetDelay(auth.NewTimingDelay(auth.TimingConfig{BaseDelay: 40 * time.Millisecond}))

	ok := h.Wrap(func(w http.ResponseWriter, r *http.Request) error {
		w.WriteHeader(http.StatusNoContent)
		return nil
	})
	start := time.Now()
	ok(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Less(t, time.Since(start), 40*time.Millisecond)

	failing := h.Wrap(func(w http.ResponseWriter, r *http.Request) error {
		return models.NewAuthenticationError(nil)
	})
	start = time.Now()
	rec := httptest.NewRecorder()
	failing(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.Equal(t, http.StatusFound, rec.Code)
}
