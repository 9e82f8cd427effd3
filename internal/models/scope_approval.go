package models

import "time"

// ApprovalStatus is the user's decision for a single scope
type ApprovalStatus string

const (
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalDenied   ApprovalStatus = "DENIED"
)

// ScopeApproval is a persisted consent decision. At most one record exists per
// (Domain, UserID, ClientID, Scope).
type ScopeApproval struct {
	ID            string         `json:"id" db:"id"`
	TransactionID string         `json:"transaction_id,omitempty" db:"transaction_id"`
	Domain        string         `json:"domain" db:"domain"`
	UserID        string         `json:"user_id" db:"user_id"`
	ClientID      string         `json:"client_id" db:"client_id"`
	Scope         string         `json:"scope" db:"scope"`
	Status        ApprovalStatus `json:"status" db:"status"`
	ExpiresAt     *time.Time     `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

// VisibleAt reports whether the approval is still live at now
func (a *ScopeApproval) VisibleAt(now time.Time) bool {
	return a.ExpiresAt == nil || a.ExpiresAt.After(now)
}

// NaturalKey returns the criteria identifying this approval's natural key
func (a *ScopeApproval) NaturalKey() ScopeApprovalCriteria {
	return ScopeApprovalCriteria{
		Domain:   a.Domain,
		UserID:   a.UserID,
		ClientID: a.ClientID,
		Scope:    a.Scope,
	}
}

// ScopeApprovalCriteria scopes approval lookups and deletes. Empty fields are ignored.
type ScopeApprovalCriteria struct {
	Domain   string
	UserID   string
	ClientID string
	Scope    string
}
