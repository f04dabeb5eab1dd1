// metrics.go — Prometheus HTTP метрики Report Module.
// Регистрирует метрики: rm_http_requests_total, rm_http_request_duration_seconds.
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

// HTTP метрики Report Module
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rm_http_requests_total",
			Help: "Общее количество HTTP-запросов к Report Module",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rm_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Report Module в секундах",
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

			// Нормализуем путь для лейблов метрик
			// (заменяем UUID на {id} для предотвращения кардинальности)
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
// /api/v1/reports/a1b2c3d4-... → /api/v1/reports/{id}
// /api/v1/reports/a1b2c3d4-.../pdf → /api/v1/reports/{id}/pdf
// /assets/reports/... → /assets/{key}
func normalizePath(path string) string {
	// Статические пути — возвращаем как есть
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/api/v1/auth/register", "/api/v1/auth/login", "/api/v1/auth/logout",
		"/api/v1/auth/token", "/api/v1/auth/me",
		"/api/v1/profile", "/api/v1/profile/password",
		"/api/v1/settings", "/api/v1/settings/reset",
		"/api/v1/reports", "/api/v1/dashboard":
		return path
	}

	// Динамические пути с UUID (36 символов)
	const reportsPrefix = "/api/v1/reports/"
	if len(path) > len(reportsPrefix) && path[:len(reportsPrefix)] == reportsPrefix {
		suffix := ""
		if len(path) > len(reportsPrefix)+36 {
			suffix = path[len(reportsPrefix)+36:]
		}
		switch suffix {
		case "/pdf":
			return "/api/v1/reports/{id}/pdf"
		case "/images":
			return "/api/v1/reports/{id}/images"
		default:
			return "/api/v1/reports/{id}"
		}
	}

	// Служебные файлы вложений
	if strings.HasPrefix(path, "/assets/") {
		return "/assets/{key}"
	}

	return path
}
