package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/BradenHooton/amgate/internal/auth"
	"github.com/BradenHooton/amgate/internal/clock"
	"github.com/BradenHooton/amgate/internal/models"
	"github.com/go-chi/chi/v5"
)

var (
	errNoIdentity     = errors.New("consent submitted without an authenticated user")
	errInvalidConsent = errors.New("invalid_request: client_id and scope are required")
	errInvalidChoice  = errors.New("invalid_request: decision must be approve or deny")
)

// ConsentHandler persists the decision a user made on the consent page
type ConsentHandler struct {
	store       ScopeApprovalStore
	sessions    auth.SessionManager
	failures    *LoginFailureHandler
	clock       clock.Clock
	approvalTTL time.Duration
}

// NewConsentHandler creates a new ConsentHandler. A zero approvalTTL stores
// decisions that never expire.
func NewConsentHandler(store ScopeApprovalStore, sessions auth.SessionManager, failures *LoginFailureHandler, clk clock.Clock, approvalTTL time.Duration) *ConsentHandler {
	return &ConsentHandler{
		store:       store,
		sessions:    sessions,
		failures:    failures,
		clock:       clk,
		approvalTTL: approvalTTL,
	}
}

// RegisterRoutes registers the consent route with the chi router
func (h *ConsentHandler) RegisterRoutes(router chi.Router) {
	router.Post("/domains/{domain}/oauth/consent", h.failures.Wrap(h.SubmitConsent))
}

// SubmitConsent stores one approval per requested scope.
//
// Form fields: client_id, scope (space separated and/or repeated), decision
// (approve|deny), transaction_id.
func (h *ConsentHandler) SubmitConsent(w http.ResponseWriter, r *http.Request) error {
	userID, ok := h.sessions.Identity(r)
	if !ok {
		return models.NewAuthenticationError(errNoIdentity)
	}

	if err := r.ParseForm(); err != nil {
		return models.NewOAuth2Error(err)
	}

	clientID := r.PostForm.Get("client_id")
	scopes := splitScopes(r.PostForm["scope"])
	if clientID == "" || len(scopes) == 0 {
		return models.NewOAuth2Error(errInvalidConsent)
	}

	var status models.ApprovalStatus
	switch r.PostForm.Get("decision") {
	case "approve":
		status = models.ApprovalApproved
	case "deny":
		status = models.ApprovalDenied
	default:
		return models.NewOAuth2Error(errInvalidChoice)
	}

	var expiresAt *time.Time
	if h.approvalTTL > 0 {
		t := h.clock.Now().Add(h.approvalTTL)
		expiresAt = &t
	}

	approvals := make([]*models.ScopeApproval, 0, len(scopes))
	for _, scope := range scopes {
		stored, err := h.store.Upsert(r.Context(), &models.ScopeApproval{
			TransactionID: r.PostForm.Get("transaction_id"),
			Domain:        chi.URLParam(r, "domain"),
			UserID:        userID,
			ClientID:      clientID,
			Scope:         scope,
			Status:        status,
			ExpiresAt:     expiresAt,
		})
		if err != nil {
			return err
		}
		approvals = append(approvals, stored)
	}

	writeJSON(w, http.StatusOK, approvalsToResponse(approvals))
	return nil
}

// splitScopes flattens space separated scope values and drops duplicates
func splitScopes(values []string) []string {
	seen := map[string]bool{}
	var scopes []string
	for _, v := range values {
		for _, s := range strings.Fields(v) {
			if !seen[s] {
				seen[s] = true
				scopes = append(scopes, s)
			}
		}
	}
	return scopes
}
