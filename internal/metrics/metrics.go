// Package metrics exposes Prometheus instrumentation for the gateway stores and
// HTTP surface.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BradenHooton/amgate/internal/models"
	"github.com/BradenHooton/amgate/internal/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the registered collectors
type Metrics struct {
	registry *prometheus.Registry

	storeOperations *prometheus.CounterVec
	storeDuration   *prometheus.HistogramVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	lockouts        prometheus.Counter
}

// New registers the collectors on a fresh registry
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		storeOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "amgate_store_operations_total",
			Help: "Store operations by operation and result",
		}, []string{"op", "result"}), // result: ok|conflict|invalid_query|not_found|error
		storeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "amgate_store_operation_duration_seconds",
			Help:    "Store operation latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "amgate_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "amgate_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "amgate_account_lockouts_total",
			Help: "Identities that reached the failed login threshold",
		}),
	}

	collectors := []prometheus.Collector{
		m.storeOperations, m.storeDuration, m.httpRequests, m.httpDuration, m.lockouts,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// PoolStater reports connection pool statistics
type PoolStater interface {
	Stats() *pgxpool.Stat
}

// ObservePool exports connection pool gauges, read at scrape time
func (m *Metrics) ObservePool(pool PoolStater) error {
	gauges := []struct {
		name, help string
		value      func(*pgxpool.Stat) float64
	}{
		{"amgate_db_pool_total_conns", "Connections currently in the pool", func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }},
		{"amgate_db_pool_acquired_conns", "Connections currently checked out", func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }},
		{"amgate_db_pool_idle_conns", "Idle connections in the pool", func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }},
	}

	for _, g := range gauges {
		value := g.value
		collector := prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: g.name, Help: g.help}, func() float64 {
			return value(pool.Stats())
		})
		if err := m.registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// Begin implements observability.Observer
func (m *Metrics) Begin(_ context.Context, op string, _ ...slog.Attr) observability.Finish {
	start := time.Now()
	return func(err error) {
		m.storeDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		m.storeOperations.WithLabelValues(op, resultLabel(err)).Inc()
	}
}

// LockoutTriggered counts an identity crossing the lockout threshold
func (m *Metrics) LockoutTriggered() {
	m.lockouts.Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrConflict):
		return "conflict"
	case errors.Is(err, models.ErrInvalidQuery):
		return "invalid_query"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// Middleware records request counts and latency keyed by the chi route pattern
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
