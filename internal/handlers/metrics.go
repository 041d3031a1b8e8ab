package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/metrics"
	"github.com/davidtres03/EcommerceStarter-sub003/internal/security"
)

// MetricsHandler returns an HTTP handler for Prometheus metrics endpoint
func MetricsHandler(store *security.ReputationStore) http.Handler {
	// Create and register reputation metrics collector
	collector := metrics.NewReputationMetricsCollector(store, nil)
	prometheus.MustRegister(collector)

	// Return promhttp handler
	return promhttp.Handler()
}
