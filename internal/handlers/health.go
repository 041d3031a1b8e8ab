package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/metrics"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/models"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/repository"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/security"
)

// Health check timeout for external dependencies
const healthCheckTimeout = 5 * time.Second

// setHealthCacheHeaders sets appropriate cache-control headers for health endpoints.
// Health checks should never be cached to ensure accurate probe responses.
func setHealthCacheHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

// HealthHandler handles health check requests
// Reports database reachability and current protection-state counts
func HealthHandler(repos *repository.Repositories, store *security.ReputationStore, clock security.Clock, startTime time.Time) http.HandlerFunc {
	if clock == nil {
		clock = security.SystemClock{}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() {
			metrics.HealthCheckDuration.WithLabelValues("health").Observe(time.Since(start).Seconds())
		}()

		// Only accept GET requests
		if r.Method != http.MethodGet {
			setHealthCacheHeaders(w)
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		// Use request context with timeout for health checks
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		response, status, httpCode := getHealth(ctx, repos, store, clock, startTime)

		// Record metrics
		metrics.HealthChecksTotal.WithLabelValues("health", status).Inc()
		updateHealthStatusGauge(status)

		// Send response
		setHealthCacheHeaders(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(httpCode)
		if err := json.NewEncoder(w).Encode(response); err != nil {
			slog.Error("failed to encode health response", "error", err)
		}
	}
}

// HealthLivenessHandler handles liveness probe requests
// Minimal check: is the process alive and can we ping the database?
// Should complete in < 10ms
func HealthLivenessHandler(health repository.HealthRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() {
			metrics.HealthCheckDuration.WithLabelValues("live").Observe(time.Since(start).Seconds())
		}()

		// Only accept GET requests
		if r.Method != http.MethodGet {
			setHealthCacheHeaders(w)
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		// Minimal database ping
		ctx := r.Context()
		if err := health.Ping(ctx); err != nil {
			slog.Error("liveness check failed: database ping error", "error", err)
			metrics.HealthChecksTotal.WithLabelValues("live", "unhealthy").Inc()

			setHealthCacheHeaders(w)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			if err := json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"}); err != nil {
				slog.Error("failed to encode liveness response", "error", err)
			}
			return
		}

		// Alive
		metrics.HealthChecksTotal.WithLabelValues("live", "healthy").Inc()

		setHealthCacheHeaders(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "alive"}); err != nil {
			slog.Error("failed to encode liveness response", "error", err)
		}
	}
}

// getHealth performs all health checks and returns response, status, and HTTP code.
// The ctx parameter should be derived from the request context with appropriate timeout.
func getHealth(ctx context.Context, repos *repository.Repositories, store *security.ReputationStore, clock security.Clock, startTime time.Time) (*models.HealthResponse, string, int) {
	var details []string

	// Calculate uptime
	uptime := time.Since(startTime)

	stats := store.Stats(clock.Now())
	response := &models.HealthResponse{
		Status:          "healthy",
		UptimeSeconds:   int64(uptime.Seconds()),
		Database:        repos.DatabaseType,
		WhitelistedIPs:  stats.Whitelisted,
		TemporaryBlocks: stats.TemporaryBlocks,
		PermanentBlocks: stats.PermanentBlocks,
	}

	dbHealth, err := repos.Health.CheckHealth(ctx)
	if err != nil {
		slog.Error("database health check failed", "error", err)
		response.Status = "unhealthy"
		response.StatusDetails = append(details, "database health check failed")
		return response, "unhealthy", http.StatusServiceUnavailable
	}
	switch dbHealth.Status {
	case repository.HealthStatusUnhealthy:
		response.Status = "unhealthy"
		response.StatusDetails = append(details, fmt.Sprintf("database unhealthy: %s", dbHealth.Message))
		return response, "unhealthy", http.StatusServiceUnavailable
	case repository.HealthStatusDegraded:
		details = append(details, fmt.Sprintf("database degraded: %s", dbHealth.Message))
	}

	status := "healthy"
	httpCode := http.StatusOK
	// Only include status_details if there are issues
	if len(details) > 0 {
		status = "degraded"
		httpCode = http.StatusServiceUnavailable
		response.StatusDetails = details
	}
	response.Status = status

	return response, status, httpCode
}

// updateHealthStatusGauge updates the Prometheus gauge based on status string
func updateHealthStatusGauge(status string) {
	switch status {
	case "healthy":
		metrics.HealthStatus.Set(2)
	case "degraded":
		metrics.HealthStatus.Set(1)
	case "unhealthy":
		metrics.HealthStatus.Set(0)
	default:
		metrics.HealthStatus.Set(0)
	}
}
