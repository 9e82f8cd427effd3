package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/amgate/internal/clock"
	"github.com/BradenHooton/amgate/internal/models"
	pkglogger "github.com/BradenHooton/amgate/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// ScopeApprovalStore defines the scope approval operations used by the consent layer
type ScopeApprovalStore interface {
	FindByDomainAndUser(ctx context.Context, domain, userID string) ([]*models.ScopeApproval, error)
	FindByDomainAndUserAndClient(ctx context.Context, domain, userID, clientID string) ([]*models.ScopeApproval, error)
	Upsert(ctx context.Context, approval *models.ScopeApproval) (*models.ScopeApproval, error)
	DeleteByDomainAndUser(ctx context.Context, domain, userID string) (int64, error)
	DeleteByDomainAndUserAndClient(ctx context.Context, domain, userID, clientID string) (int64, error)
	DeleteByDomainAndScope(ctx context.Context, domain, scope string) (int64, error)
}

// ScopeApprovalHandler handles consent decision HTTP requests
type ScopeApprovalHandler struct {
	store  ScopeApprovalStore
	clock  clock.Clock
	audit  *pkglogger.AuditLogger
	logger *slog.Logger
}

// NewScopeApprovalHandler creates a new ScopeApprovalHandler
func NewScopeApprovalHandler(store ScopeApprovalStore, clk clock.Clock, audit *pkglogger.AuditLogger, logger *slog.Logger) *ScopeApprovalHandler {
	return &ScopeApprovalHandler{
		store:  store,
		clock:  clk,
		audit:  audit,
		logger: logger,
	}
}

// UpsertApprovalRequest records one scope decision
type UpsertApprovalRequest struct {
	ClientID      string `json:"client_id" validate:"required,max=255"`
	Scope         string `json:"scope" validate:"required,max=255,printascii"`
	Status        string `json:"status" validate:"required,oneof=APPROVED DENIED"`
	TransactionID string `json:"transaction_id" validate:"max=255"`
	// ExpiresIn is the decision lifetime in seconds, at most ten years; zero never expires
	ExpiresIn int64 `json:"expires_in" validate:"gte=0,lte=315360000"`
}

// ScopeApprovalResponse represents a scope approval in the HTTP response
type ScopeApprovalResponse struct {
	ID            string  `json:"id"`
	TransactionID string  `json:"transaction_id,omitempty"`
	Domain        string  `json:"domain"`
	UserID        string  `json:"user_id"`
	ClientID      string  `json:"client_id"`
	Scope         string  `json:"scope"`
	Status        string  `json:"status"`
	ExpiresAt     *string `json:"expires_at,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

// ListApprovalsResponse represents a list of approvals
type ListApprovalsResponse struct {
	Approvals []*ScopeApprovalResponse `json:"approvals"`
	Total     int                      `json:"total"`
}

func approvalToResponse(a *models.ScopeApproval) *ScopeApprovalResponse {
	return &ScopeApprovalResponse{
		ID:            a.ID,
		TransactionID: a.TransactionID,
		Domain:        a.Domain,
		UserID:        a.UserID,
		ClientID:      a.ClientID,
		Scope:         a.Scope,
		Status:        string(a.Status),
		ExpiresAt:     formatOptionalTime(a.ExpiresAt),
		CreatedAt:     a.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     a.UpdatedAt.Format(time.RFC3339),
	}
}

func approvalsToResponse(approvals []*models.ScopeApproval) ListApprovalsResponse {
	resp := ListApprovalsResponse{Approvals: make([]*ScopeApprovalResponse, 0, len(approvals))}
	for _, a := range approvals {
		resp.Approvals = append(resp.Approvals, approvalToResponse(a))
	}
	resp.Total = len(resp.Approvals)
	return resp
}

// RegisterRoutes registers all scope approval routes with the chi router
func (h *ScopeApprovalHandler) RegisterRoutes(router chi.Router) {
	router.Get("/domains/{domain}/users/{user}/approvals", h.ListApprovals)         // GET ?client=
	router.Put("/domains/{domain}/users/{user}/approvals", h.UpsertApproval)        // PUT
	router.Delete("/domains/{domain}/users/{user}/approvals", h.RevokeUserApprovals) // DELETE ?client=
	router.Delete("/domains/{domain}/scopes/{scope}/approvals", h.RevokeScope)       // DELETE
}

// ListApprovals returns the live approvals of a user, optionally for one client
func (h *ScopeApprovalHandler) ListApprovals(w http.ResponseWriter, r *http.Request) {
	domain, userID := chi.URLParam(r, "domain"), chi.URLParam(r, "user")

	var (
		approvals []*models.ScopeApproval
		err       error
	)
	if clientID := r.URL.Query().Get("client"); clientID != "" {
		approvals, err = h.store.FindByDomainAndUserAndClient(r.Context(), domain, userID, clientID)
	} else {
		approvals, err = h.store.FindByDomainAndUser(r.Context(), domain, userID)
	}
	if err != nil {
		writeStoreError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, approvalsToResponse(approvals))
}

// UpsertApproval records a decision, replacing any previous one for the same scope
func (h *ScopeApprovalHandler) UpsertApproval(w http.ResponseWriter, r *http.Request) {
	var req UpsertApprovalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	approval := &models.ScopeApproval{
		TransactionID: req.TransactionID,
		Domain:        chi.URLParam(r, "domain"),
		UserID:        chi.URLParam(r, "user"),
		ClientID:      req.ClientID,
		Scope:         req.Scope,
		Status:        models.ApprovalStatus(req.Status),
	}
	if req.ExpiresIn > 0 {
		expiresAt := h.clock.Now().Add(time.Duration(req.ExpiresIn) * time.Second)
		approval.ExpiresAt = &expiresAt
	}

	stored, err := h.store.Upsert(r.Context(), approval)
	if err != nil {
		writeStoreError(w, h.logger, err)
		return
	}

	h.audit.LogConsentEvent(r.Context(), pkglogger.AuditEvent{
		EventType: "scope_decision",
		Domain:    stored.Domain,
		Subject:   stored.UserID,
		ClientID:  stored.ClientID,
		Success:   true,
		Metadata:  map[string]string{"scope": stored.Scope, "status": string(stored.Status)},
	})

	writeJSON(w, http.StatusOK, approvalToResponse(stored))
}

// RevokeUserApprovals deletes a user's approvals, optionally for one client
func (h *ScopeApprovalHandler) RevokeUserApprovals(w http.ResponseWriter, r *http.Request) {
	domain, userID := chi.URLParam(r, "domain"), chi.URLParam(r, "user")
	clientID := r.URL.Query().Get("client")

	var (
		n   int64
		err error
	)
	if clientID != "" {
		n, err = h.store.DeleteByDomainAndUserAndClient(r.Context(), domain, userID, clientID)
	} else {
		n, err = h.store.DeleteByDomainAndUser(r.Context(), domain, userID)
	}
	if err != nil {
		writeStoreError(w, h.logger, err)
		return
	}

	h.audit.LogConsentEvent(r.Context(), pkglogger.AuditEvent{
		EventType: "approvals_revoked",
		Domain:    domain,
		Subject:   userID,
		ClientID:  clientID,
		Success:   true,
	})

	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// RevokeScope deletes every approval of a scope in a domain
func (h *ScopeApprovalHandler) RevokeScope(w http.ResponseWriter, r *http.Request) {
	domain, scope := chi.URLParam(r, "domain"), chi.URLParam(r, "scope")

	n, err := h.store.DeleteByDomainAndScope(r.Context(), domain, scope)
	if err != nil {
		writeStoreError(w, h.logger, err)
		return
	}

	h.audit.LogConsentEvent(r.Context(), pkglogger.AuditEvent{
		EventType: "scope_revoked",
		Domain:    domain,
		Success:   true,
		Metadata:  map[string]string{"scope": scope},
	})

	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}
