package models

import "time"

// LoginAttempt counts consecutive failed logins for one identity within a domain
type LoginAttempt struct {
	ID               string     `json:"id" db:"id"`
	Domain           string     `json:"domain" db:"domain"`
	Client           string     `json:"client" db:"client"`
	IdentityProvider string     `json:"identity_provider" db:"identity_provider"`
	Username         string     `json:"username" db:"username"`
	Attempts         int        `json:"attempts" db:"attempts"`
	ExpireAt         *time.Time `json:"expire_at,omitempty" db:"expire_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// VisibleAt reports whether the attempt is still live at now.
// A nil ExpireAt never expires.
func (a *LoginAttempt) VisibleAt(now time.Time) bool {
	return a.ExpireAt == nil || a.ExpireAt.After(now)
}

// Criteria returns the identity the attempt is counted against
func (a *LoginAttempt) Criteria() LoginAttemptCriteria {
	return LoginAttemptCriteria{
		Domain:           a.Domain,
		Client:           a.Client,
		IdentityProvider: a.IdentityProvider,
		Username:         a.Username,
	}
}

// LoginAttemptCriteria scopes lookups and bulk deletes. Empty fields are ignored.
type LoginAttemptCriteria struct {
	Domain           string `json:"domain"`
	Client           string `json:"client"`
	IdentityProvider string `json:"identity_provider"`
	Username         string `json:"username"`
}

// LockKey names the account a failure is counted against. Every criteria set that
// can match the same attempt shares it, so writers for one account serialize.
func (c LoginAttemptCriteria) LockKey() string {
	return "login_attempt:" + c.Domain + "\x00" + c.Username
}
