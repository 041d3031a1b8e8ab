package metrics

import (
	"net/http"
	"strconv"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware instruments HTTP handlers with request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK, // Default to 200 if WriteHeader not called
		}

		// Call next handler
		next.ServeHTTP(wrapped, r)

		// Record metrics
		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)
		method := r.Method
		status := strconv.Itoa(wrapped.statusCode)

		HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
		HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// normalizePath normalizes URL paths for metric labels to avoid cardinality explosion
// Replaces dynamic segments (product ids) with placeholders
func normalizePath(path string) string {
	// Map specific paths to normalized versions
	switch {
	case path == "/":
		return "/"
	case path == "/health":
		return "/health"
	case path == "/metrics":
		return "/metrics"
	case path == "/products":
		return "/products"
	case path == "/account/login":
		return "/account/login"
	case path == "/account/logout":
		return "/account/logout"
	case path == "/account/register":
		return "/account/register"

	// Catalog paths with dynamic segments
	case len(path) > 10 && path[:10] == "/products/":
		return "/products/:id"

	// Admin API patterns
	case len(path) > 10 && path[:10] == "/admin/api":
		return "/admin/api/*"

	// Static assets
	case len(path) > 8 && path[:8] == "/assets/":
		return "/assets/*"

	default:
		return "/other"
	}
}
