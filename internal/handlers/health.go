package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker reports whether a storage backend is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler serves the liveness endpoint. A nil checker means the backend is
// in-process and always up.
func HealthHandler(checker HealthChecker, backend string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := checker.HealthCheck(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", backend: "down"})
				return
			}
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", backend: "up"})
	}
}
