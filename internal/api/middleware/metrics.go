// metrics.go — Prometheus HTTP метрики specsCloud.
// Регистрирует метрики: sc_http_requests_total, sc_http_request_duration_seconds.
// Нормализация путей предотвращает взрывной рост кардинальности.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики specsCloud
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sc_http_requests_total",
			Help: "Общее количество HTTP-запросов к specsCloud",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sc_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к specsCloud в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath заменяет динамические сегменты пути на плейсхолдеры
// для предотвращения взрывного роста кардинальности метрик.
// /api/v1/files/a1b2c3d4-...          → /api/v1/files/{id}
// /api/v1/files/a1b2c3d4-.../download → /api/v1/files/{id}/download
// /api/v1/files/a1b2c3d4-.../rename   → /api/v1/files/{id}/rename
// /api/v1/folders/Drawings            → /api/v1/folders/{name}
// /api/v1/admin/users/a1b2c3d4-...    → /api/v1/admin/users/{id}
func normalizePath(path string) string {
	// Статические пути — возвращаем как есть
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/api/v1/auth/signup", "/api/v1/auth/login",
		"/api/v1/files", "/api/v1/files/upload",
		"/api/v1/folders", "/api/v1/admin/users":
		return path
	}

	const filesPrefix = "/api/v1/files/"
	if strings.HasPrefix(path, filesPrefix) {
		rest := path[len(filesPrefix):]
		if idx := strings.IndexByte(rest, '/'); idx != -1 {
			switch rest[idx:] {
			case "/download":
				return "/api/v1/files/{id}/download"
			case "/rename":
				return "/api/v1/files/{id}/rename"
			}
		}
		return "/api/v1/files/{id}"
	}

	if strings.HasPrefix(path, "/api/v1/folders/") {
		return "/api/v1/folders/{name}"
	}

	if strings.HasPrefix(path, "/api/v1/admin/users/") {
		return "/api/v1/admin/users/{id}"
	}

	return path
}
