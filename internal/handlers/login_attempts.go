package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BradenHooton/amgate/internal/models"
	pkghttp "github.com/BradenHooton/amgate/pkg/http"
	pkglogger "github.com/BradenHooton/amgate/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// LoginAttemptStore defines the login attempt store operations exposed over HTTP
type LoginAttemptStore interface {
	FindByCriteria(ctx context.Context, c models.LoginAttemptCriteria) (*models.LoginAttempt, error)
	DeleteByCriteria(ctx context.Context, c models.LoginAttemptCriteria) (int64, error)
}

// LockoutPolicy defines the lockout operations used by the authentication layer
type LockoutPolicy interface {
	LoginFailed(ctx context.Context, c models.LoginAttemptCriteria) (*models.LoginAttempt, bool, error)
	LoginSucceeded(ctx context.Context, c models.LoginAttemptCriteria) error
	CheckAccount(ctx context.Context, c models.LoginAttemptCriteria) (bool, *models.LoginAttempt, error)
	Locked(attempt *models.LoginAttempt) bool
}

// LoginAttemptHandler handles login attempt HTTP requests
type LoginAttemptHandler struct {
	store   LoginAttemptStore
	lockout LockoutPolicy
	audit   *pkglogger.AuditLogger
	proxies *pkghttp.IPConfig
	logger  *slog.Logger
}

// NewLoginAttemptHandler creates a new LoginAttemptHandler
func NewLoginAttemptHandler(store LoginAttemptStore, lockout LockoutPolicy, audit *pkglogger.AuditLogger, proxies *pkghttp.IPConfig, logger *slog.Logger) *LoginAttemptHandler {
	return &LoginAttemptHandler{
		store:   store,
		lockout: lockout,
		audit:   audit,
		proxies: proxies,
		logger:  logger,
	}
}

// LoginOutcomeRequest identifies the account a login outcome applies to
type LoginOutcomeRequest struct {
	Client           string `json:"client" validate:"max=255"`
	IdentityProvider string `json:"identity_provider" validate:"max=255"`
	Username         string `json:"username" validate:"required,max=320"`
}

// LoginAttemptResponse represents a login attempt in the HTTP response
type LoginAttemptResponse struct {
	ID               string  `json:"id"`
	Domain           string  `json:"domain"`
	Client           string  `json:"client"`
	IdentityProvider string  `json:"identity_provider"`
	Username         string  `json:"username"`
	Attempts         int     `json:"attempts"`
	Locked           bool    `json:"locked"`
	ExpireAt         *string `json:"expire_at,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

// AccountStatusResponse reports whether an identity is currently locked
type AccountStatusResponse struct {
	Locked   bool    `json:"locked"`
	Attempts int     `json:"attempts"`
	ExpireAt *string `json:"expire_at,omitempty"`
}

func attemptToResponse(a *models.LoginAttempt, locked bool) *LoginAttemptResponse {
	return &LoginAttemptResponse{
		ID:               a.ID,
		Domain:           a.Domain,
		Client:           a.Client,
		IdentityProvider: a.IdentityProvider,
		Username:         a.Username,
		Attempts:         a.Attempts,
		Locked:           locked,
		ExpireAt:         formatOptionalTime(a.ExpireAt),
		CreatedAt:        a.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        a.UpdatedAt.Format(time.RFC3339),
	}
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

// RegisterRoutes registers all login attempt routes with the chi router
func (h *LoginAttemptHandler) RegisterRoutes(router chi.Router) {
	router.Route("/domains/{domain}/login-attempts", func(r chi.Router) {
		r.Get("/", h.GetLoginAttempt)         // GET /domains/{domain}/login-attempts
		r.Delete("/", h.DeleteLoginAttempts)  // DELETE /domains/{domain}/login-attempts
		r.Get("/status", h.GetAccountStatus)  // GET /domains/{domain}/login-attempts/status
		r.Post("/failures", h.RecordFailure)  // POST /domains/{domain}/login-attempts/failures
		r.Post("/successes", h.RecordSuccess) // POST /domains/{domain}/login-attempts/successes
	})
}

func criteriaFromQuery(r *http.Request) models.LoginAttemptCriteria {
	q := r.URL.Query()
	return models.LoginAttemptCriteria{
		Domain:           chi.URLParam(r, "domain"),
		Client:           q.Get("client"),
		IdentityProvider: q.Get("idp"),
		Username:         q.Get("username"),
	}
}

// GetLoginAttempt returns the live attempt matching the query criteria
func (h *LoginAttemptHandler) GetLoginAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.store.FindByCriteria(r.Context(), criteriaFromQuery(r))
	if err != nil {
		writeStoreError(w, h.logger, err)
		return
	}
	if attempt == nil {
		pkghttp.WriteNotFound(w, "no active login attempt")
		return
	}

	writeJSON(w, http.StatusOK, attemptToResponse(attempt, h.lockout.Locked(attempt)))
}

// GetAccountStatus reports whether the identity in the query is locked
func (h *LoginAttemptHandler) GetAccountStatus(w http.ResponseWriter, r *http.Request) {
	c := criteriaFromQuery(r)
	if c.Username == "" {
		pkghttp.WriteBadRequest(w, "username is required")
		return
	}

	locked, attempt, err := h.lockout.CheckAccount(r.Context(), c)
	if err != nil {
		writeStoreError(w, h.logger, err)
		return
	}

	resp := AccountStatusResponse{Locked: locked}
	if attempt != nil {
		resp.Attempts = attempt.Attempts
		resp.ExpireAt = formatOptionalTime(attempt.ExpireAt)
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteLoginAttempts removes every attempt matching the query criteria
func (h *LoginAttemptHandler) DeleteLoginAttempts(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.DeleteByCriteria(r.Context(), criteriaFromQuery(r))
	if err != nil {
		writeStoreError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// RecordFailure counts a failed login and reports whether the account is now locked
func (h *LoginAttemptHandler) RecordFailure(w http.ResponseWriter, r *http.Request) {
	var req LoginOutcomeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	c := h.outcomeCriteria(r, req)

	attempt, locked, err := h.lockout.LoginFailed(r.Context(), c)
	if err != nil {
		writeStoreError(w, h.logger, err)
		return
	}

	h.audit.LogLoginEvent(r.Context(), pkglogger.AuditEvent{
		EventType: "login_failed",
		Domain:    c.Domain,
		Subject:   c.Username,
		ClientID:  c.Client,
		IPAddress: pkghttp.ExtractClientIP(r, h.proxies),
		Success:   false,
		Metadata:  map[string]string{"locked": strconv.FormatBool(locked)},
	})

	writeJSON(w, http.StatusOK, attemptToResponse(attempt, locked))
}

// RecordSuccess clears the failure count of an account
func (h *LoginAttemptHandler) RecordSuccess(w http.ResponseWriter, r *http.Request) {
	var req LoginOutcomeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	c := h.outcomeCriteria(r, req)

	if err := h.lockout.LoginSucceeded(r.Context(), c); err != nil {
		writeStoreError(w, h.logger, err)
		return
	}

	h.audit.LogLoginEvent(r.Context(), pkglogger.AuditEvent{
		EventType: "login_succeeded",
		Domain:    c.Domain,
		Subject:   c.Username,
		ClientID:  c.Client,
		IPAddress: pkghttp.ExtractClientIP(r, h.proxies),
		Success:   true,
	})

	w.WriteHeader(http.StatusNoContent)
}

func (h *LoginAttemptHandler) outcomeCriteria(r *http.Request, req LoginOutcomeRequest) models.LoginAttemptCriteria {
	return models.LoginAttemptCriteria{
		Domain:           chi.URLParam(r, "domain"),
		Client:           req.Client,
		IdentityProvider: req.IdentityProvider,
		Username:         req.Username,
	}
}
