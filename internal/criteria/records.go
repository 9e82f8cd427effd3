package criteria

import (
	"time"

	"github.com/BradenHooton/amgate/internal/models"
)

// ForLoginAttempt builds the scoping filter for login attempt criteria
func ForLoginAttempt(c models.LoginAttemptCriteria) Filter {
	return Build(
		Eq(Domain, c.Domain),
		Eq(Client, c.Client),
		Eq(IdentityProvider, c.IdentityProvider),
		Eq(Username, c.Username),
	)
}

// ForScopeApproval builds the scoping filter for scope approval criteria
func ForScopeApproval(c models.ScopeApprovalCriteria) Filter {
	return Build(
		Eq(Domain, c.Domain),
		Eq(UserID, c.UserID),
		Eq(ClientID, c.ClientID),
		Eq(Scope, c.Scope),
	)
}

// NaturalKey builds an exact match on every natural key field of an approval.
// Unlike ForScopeApproval it keeps empty values so an empty scope only matches
// an empty scope.
func NaturalKey(a *models.ScopeApproval) Filter {
	return Filter{Conditions: []Condition{
		Eq(Domain, a.Domain),
		Eq(UserID, a.UserID),
		Eq(ClientID, a.ClientID),
		Eq(Scope, a.Scope),
	}}
}

type loginAttemptRecord struct{ a *models.LoginAttempt }

func (r loginAttemptRecord) FieldValue(f Field) string {
	switch f {
	case Domain:
		return r.a.Domain
	case Client:
		return r.a.Client
	case IdentityProvider:
		return r.a.IdentityProvider
	case Username:
		return r.a.Username
	}
	return ""
}

func (r loginAttemptRecord) Expiry() *time.Time { return r.a.ExpireAt }

// LoginAttemptRecord adapts a LoginAttempt for Match
func LoginAttemptRecord(a *models.LoginAttempt) Record {
	return loginAttemptRecord{a: a}
}

type scopeApprovalRecord struct{ a *models.ScopeApproval }

func (r scopeApprovalRecord) FieldValue(f Field) string {
	switch f {
	case Domain:
		return r.a.Domain
	case UserID:
		return r.a.UserID
	case ClientID:
		return r.a.ClientID
	case Scope:
		return r.a.Scope
	}
	return ""
}

func (r scopeApprovalRecord) Expiry() *time.Time { return r.a.ExpiresAt }

// ScopeApprovalRecord adapts a ScopeApproval for Match
func ScopeApprovalRecord(a *models.ScopeApproval) Record {
	return scopeApprovalRecord{a: a}
}
