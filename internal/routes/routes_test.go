package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/amgate/internal/clock"
	"github.com/BradenHooton/amgate/internal/handlers"
	"github.com/BradenHooton/amgate/internal/metrics"
	"github.com/BradenHooton/amgate/internal/middleware"
	"github.com/BradenHooton/amgate/internal/observability"
	"github.com/BradenHooton/amgate/internal/repositories"
	"github.com/BradenHooton/amgate/internal/services"
	pkghttp "github.com/BradenHooton/amgate/pkg/http"
	pkglogger "github.com/BradenHooton/amgate/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noSession struct{}

func (noSession) Identity(*http.Request) (string, bool) { return "", false }
func (noSession) HasIdentity(*http.Request) bool { return false }
func (noSession) SetIdentity(http.ResponseWriter, *http.Request, string) error { return nil }
func (noSession) ClearIdentity(http.ResponseWriter, *http.Request) {}
func (noSession) Destroy(http.ResponseWriter, *http.Request) {}

func newTestRouter(t *testing.T, requestsPerMinute int) (chi.Router, *metrics.Metrics) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.NewFixed(time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC))
	m, err := metrics.New()
	require.NoError(t, err)

	observer := observability.Chain(observability.NewLogObserver(logger), m)
	attempts := services.NewLoginAttemptService(repositories.NewMemoryLoginAttemptRepository(),
		services.WithClock(clk), services.WithObserver(observer))
	approvals := services.NewScopeApprovalService(repositories.NewMemoryScopeApprovalRepository(),
		services.WithClock(clk), services.WithObserver(observer))
	lockout := services.NewLockoutService(attempts, services.LockoutConfig{
		MaxAttempts:     2,
		ResetWindow:     time.Hour,
		LockoutDuration: 2 * time.Hour,
	}, clk, m, logger)

	audit := pkglogger.NewAuditLogger(logger, "test")
	proxies := &pkghttp.IPConfig{}
	failures := handlers.NewLoginFailureHandler(noSession{}, proxies, logger)

	router := chi.NewRouter()
	router.Use(m.Middleware)
	RegisterRoutes(router, Handlers{
		LoginAttempts: handlers.NewLoginAttemptHandler(attempts, lockout, audit, proxies, logger),
		Approvals:     handlers.NewScopeApprovalHandler(approvals, clk, audit, logger),
		Consent:       handlers.NewConsentHandler(approvals, noSession{}, failures, clk, time.Hour),
		Health:        handlers.HealthHandler(nil, "memory"),
		Metrics:       m.Handler(),
		MetricsPath:   "/metrics",
	}, middleware.RateLimitConfig{RequestsPerMinute: requestsPerMinute, Proxies: proxies})

	return router, m
}

func serve(router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.RemoteAddr = "203.0.113.7:4000"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRoutes_LockoutFlow(t *testing.T) {
	router, _ := newTestRouter(t, 100)
	body := handlers.LoginOutcomeRequest{Client: "c1", Username: "bob"}

	w := serve(router, http.MethodPost, "/domains/d1/login-attempts/failures", body)
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(router, http.MethodPost, "/domains/d1/login-attempts/failures", body)
	require.Equal(t, http.StatusOK, w.Code)
	var attempt handlers.LoginAttemptResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &attempt))
	assert.Equal(t, 2, attempt.Attempts)
	assert.True(t, attempt.Locked)

	w = serve(router, http.MethodGet, "/domains/d1/login-attempts/status?client=c1&username=bob", nil)
	var status handlers.AccountStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.Locked)

	w = serve(router, http.MethodGet, "/domains/d1/login-attempts?client=c1&username=bob", nil)
	var current handlers.LoginAttemptResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &current))
	assert.True(t, current.Locked, "plain lookup reports the same lock state")

	w = serve(router, http.MethodPost, "/domains/d1/login-attempts/successes", body)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = serve(router, http.MethodGet, "/domains/d1/login-attempts?client=c1&username=bob", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoutes_RateLimitOnlyOnLoginAttempts(t *testing.T) {
	router, _ := newTestRouter(t, 1)

	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodGet, "/domains/d1/login-attempts/status", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(router, http.MethodGet, "/domains/d1/login-attempts/status", nil).Code)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/domains/d1/users/u1/approvals", nil).Code)
		assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", nil).Code)
	}
}

func TestRoutes_ConsentWithoutSessionRedirects(t *testing.T) {
	router, _ := newTestRouter(t, 100)

	req := httptest.NewRequest(http.MethodPost, "/domains/d1/oauth/consent?client_id=c1", bytes.NewBufferString("client_id=c1&scope=read&decision=approve"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "error=login_failed")
}

func TestRoutes_MetricsExposed(t *testing.T) {
	router, _ := newTestRouter(t, 100)

	serve(router, http.MethodGet, "/domains/d1/users/u1/approvals", nil)
	w := serve(router, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "amgate_store_operations_total")
	assert.Contains(t, w.Body.String(), `route="/domains/{domain}/users/{user}/approvals"`)
}
