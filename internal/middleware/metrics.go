package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ieraasyl/Storefront/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus collectors, registered in the default registry and exposed on
// /metrics.
var (
	// httpRequestsTotal counts requests by method, route pattern and status.
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// httpResponseSize buckets: 100 B to 1 GB.
	httpResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// catalogLoadsTotal counts catalog loads by source (probe, postgres,
	// supabase) and result (success, error).
	catalogLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_loads_total",
			Help: "Total number of catalog loads",
		},
		[]string{"source", "result"},
	)

	// catalogLoadDuration covers the whole probe loop or backend query.
	catalogLoadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_load_duration_seconds",
			Help:    "Catalog load duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	catalogProductsFound = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalog_products_found",
			Help: "Number of products returned by the last successful catalog load",
		},
		[]string{"source"},
	)

	// authAttemptsTotal counts sign-in attempts.
	//
	// Labels: method (gis, oauth), result (success, invalid_credential,
	// csrf_mismatch, invalid_state, exchange_failed, save_failed)
	authAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"method", "result"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "auth_active_sessions",
			Help: "Number of stored user sessions",
		},
	)

	// dbQueriesTotal counts catalog queries by backend (postgres, supabase).
	dbQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"database", "operation", "status"},
	)

	dbQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"database", "operation"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		httpResponseSize,
		catalogLoadsTotal,
		catalogLoadDuration,
		catalogProductsFound,
		authAttemptsTotal,
		activeSessions,
		dbQueriesTotal,
		dbQueryDuration,
	)
}

// Metrics records count, latency and response size of every request.
//
// Requests are labelled with the chi route pattern rather than the raw path,
// so /assets/products/1.png and /assets/products/2.png share one series.
// Unrouted requests are labelled "unmatched".
//
// Example queries:
//
//	# Error rate
//	sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m]))
//
//	# P95 latency of the home page
//	histogram_quantile(0.95, rate(http_request_duration_seconds_bucket{path="/"}[5m]))
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			path := routePattern(r)
			status := strconv.Itoa(ww.Status())

			httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
			httpResponseSize.WithLabelValues(r.Method, path).Observe(float64(ww.BytesWritten()))
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// MetricsHandler exposes the default registry in the Prometheus text format.
// Keep it off the public listener in production.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordCatalogLoad records one finished catalog load. Its signature matches
// catalog.LoadObserver:
//
//	pages := catalog.NewPages(source, catalog.PageOptions{
//	    Observer: middleware.RecordCatalogLoad,
//	}, idleTTL)
func RecordCatalogLoad(source string, count int, err error, elapsed time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
	} else {
		catalogProductsFound.WithLabelValues(source).Set(float64(count))
	}
	catalogLoadsTotal.WithLabelValues(source, result).Inc()
	catalogLoadDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// IncrementAuthAttempts counts one sign-in attempt.
func IncrementAuthAttempts(method, result string) {
	authAttemptsTotal.WithLabelValues(method, result).Inc()
}

// SetActiveSessions sets the stored-sessions gauge. The server refreshes it
// from SessionService.ActiveCount on a ticker.
func SetActiveSessions(count float64) {
	activeSessions.Set(count)
}

// RecordDBQuery records one catalog query against a backend.
//
//	start := time.Now()
//	rows, err := db.ProductsByCategory(ctx, category)
//	middleware.RecordDBQuery("postgres", "SELECT", status, time.Since(start))
func RecordDBQuery(database, operation, status string, duration time.Duration) {
	dbQueriesTotal.WithLabelValues(database, operation, status).Inc()
	dbQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}

// ProductQuerier is the backend query that InstrumentedQuerier measures.
type ProductQuerier interface {
	ProductsByCategory(ctx context.Context, category string) ([]models.ProductRow, error)
}

// InstrumentedQuerier records every ProductsByCategory call under the given
// database label.
type InstrumentedQuerier struct {
	Database string
	Querier  ProductQuerier
}

func (q InstrumentedQuerier) ProductsByCategory(ctx context.Context, category string) ([]models.ProductRow, error) {
	start := time.Now()
	rows, err := q.Querier.ProductsByCategory(ctx, category)
	status := "success"
	if err != nil {
		status = "error"
	}
	RecordDBQuery(q.Database, "SELECT", status, time.Since(start))
	return rows, err
}
