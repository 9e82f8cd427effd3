package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name    string
		checker HealthChecker
		status  int
		body    map[string]string
	}{
		{"in-process backend", nil, http.StatusOK, map[string]string{"status": "healthy", "storage": "up"}},
		{"reachable", checkerFunc(func(context.Context) error { return nil }), http.StatusOK, map[string]string{"status": "healthy", "storage": "up"}},
		{"unreachable", checkerFunc(func(context.Context) error { return errors.New("refused") }), http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "storage": "down"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HealthHandler(tt.checker, "storage")(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			var body map[string]string
			AssertJSONResponse(t, w, tt.status, &body)
			assert.Equal(t, tt.body, body)
		})
	}
}
