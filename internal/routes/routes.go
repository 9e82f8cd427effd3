package routes

import (
	"net/http"

	"github.com/BradenHooton/amgate/internal/handlers"
	"github.com/BradenHooton/amgate/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// Handlers groups everything mounted on the router. Metrics may be nil.
type Handlers struct {
	LoginAttempts *handlers.LoginAttemptHandler
	Approvals     *handlers.ScopeApprovalHandler
	Consent       *handlers.ConsentHandler
	Health        http.HandlerFunc
	Metrics       http.Handler
	MetricsPath   string
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, h Handlers, rateLimit middleware.RateLimitConfig) {
	router.Get("/health", h.Health)
	if h.Metrics != nil {
		router.Method(http.MethodGet, h.MetricsPath, h.Metrics)
	}

	// Lockout bookkeeping is called on every login, so it is limited per client
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(rateLimit))
		h.LoginAttempts.RegisterRoutes(r)
	})

	h.Approvals.RegisterRoutes(router)
	h.Consent.RegisterRoutes(router)
}
