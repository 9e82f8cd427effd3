package integration

import (
	"fmt"
	"time"

	"github.com/BradenHooton/amgate/internal/models"
)

// Epoch is the fixed instant integration tests start their clocks at. Postgres
// stores microseconds, so it has no sub-microsecond part.
var Epoch = time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)

// TestIdentity returns login attempt criteria unique to the calling test
func TestIdentity(suffix string) models.LoginAttemptCriteria {
	return models.LoginAttemptCriteria{
		Domain:           "domain-" + suffix,
		Client:           "client-" + suffix,
		IdentityProvider: "idp-" + suffix,
		Username:         fmt.Sprintf("user-%s@example.com", suffix),
	}
}

// TestApproval returns an approved scope for a user and client
func TestApproval(domain, userID, clientID, scope string) *models.ScopeApproval {
	return &models.ScopeApproval{
		Domain:   domain,
		UserID:   userID,
		ClientID: clientID,
		Scope:    scope,
		Status:   models.ApprovalApproved,
	}
}

// ExpiresIn returns a pointer to Epoch plus d
func ExpiresIn(d time.Duration) *time.Time {
	t := Epoch.Add(d)
	return &t
}
