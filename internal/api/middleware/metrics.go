// metrics.go — Prometheus HTTP метрики Portfolio Tracker.
// Регистрирует метрики: pt_http_requests_total, pt_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pt_http_requests_total",
			Help: "Общее количество HTTP-запросов к Portfolio Tracker",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pt_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Portfolio Tracker в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// knownPaths — маршруты, которые попадают в лейбл path как есть.
var knownPaths = map[string]bool{
	"/health/live":               true,
	"/health/ready":              true,
	"/metrics":                   true,
	"/api/v1/users/register":     true,
	"/api/v1/users/me":           true,
	"/api/v1/auth/login":         true,
	"/api/v1/holdings":           true,
	"/api/v1/reports":            true,
	"/api/v1/reports/allocation": true,
	"/api/v1/reports/download":   true,
}

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			status := strconv.Itoa(wrapped.statusCode)
			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(time.Since(start).Seconds())
		})
	}
}

// normalizePath сворачивает неизвестные пути в "other",
// чтобы сканеры не раздували кардинальность метрик.
func normalizePath(path string) string {
	if knownPaths[path] {
		return path
	}
	return "other"
}
