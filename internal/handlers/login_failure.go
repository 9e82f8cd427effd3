package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/amgate/internal/auth"
	"github.com/BradenHooton/amgate/internal/models"
	pkghttp "github.com/BradenHooton/amgate/pkg/http"
)

// LoginFailedMarker is the error query parameter value set on the login redirect
const LoginFailedMarker = "login_failed"

// LoginFailureHandler turns errors raised on login-flow routes into HTTP responses.
//
// Failures rejected by the OAuth2, management, authentication or policy layers log
// the user out and redirect back to the same path with error=login_failed. Anything
// else keeps its upstream status (500 when none) and an empty body.
type LoginFailureHandler struct {
	sessions auth.SessionManager
	proxies  *pkghttp.IPConfig
	delay    *auth.TimingDelay
	logger   *slog.Logger
}

// NewLoginFailureHandler creates a new LoginFailureHandler
func NewLoginFailureHandler(sessions auth.SessionManager, proxies *pkghttp.IPConfig, logger *slog.Logger) *LoginFailureHandler {
	return &LoginFailureHandler{
		sessions: sessions,
		proxies:  proxies,
		logger:   logger,
	}
}

// SetDelay pads every failure handled through Wrap. nil disables padding.
func (h *LoginFailureHandler) SetDelay(delay *auth.TimingDelay) {
	h.delay = delay
}

// Wrap adapts an error-returning login-flow handler
func (h *LoginFailureHandler) Wrap(fn func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if err := fn(w, r); err != nil {
			if h.delay != nil {
				h.delay.WaitFrom(r.Context(), start)
			}
			h.HandleFailure(w, r, err)
		}
	}
}

// HandleFailure writes the response for a failed login-flow request
func (h *LoginFailureHandler) HandleFailure(w http.ResponseWriter, r *http.Request, err error) {
	if kind, ok := models.KindOf(err); ok {
		h.logger.Info("login flow failure, redirecting to login",
			slog.String("kind", string(kind)),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		h.redirectToLogin(w, r)
		return
	}

	h.logger.Error("login flow error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("error", err))

	status, ok := models.StatusOf(err)
	if !ok {
		status = http.StatusInternalServerError
	}
	w.WriteHeader(status)
}

func (h *LoginFailureHandler) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	if h.sessions != nil && h.sessions.HasIdentity(r) {
		h.sessions.ClearIdentity(w, r)
		h.sessions.Destroy(w, r)
	}

	params := pkghttp.CleanQueryParams(r.URL.Query())
	params.Set("error", LoginFailedMarker)

	location := pkghttp.ResolveProxyURL(r, r.URL.Path, params, h.proxies)
	w.Header().Set("Location", location)
	w.WriteHeader(http.StatusFound)
}
