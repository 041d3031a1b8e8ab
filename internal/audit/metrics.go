package audit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the security event pipeline
var (
	// SecurityEventsTotal counts security events emitted by event type
	SecurityEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_security_events_total",
			Help: "Total number of security events emitted",
		},
		[]string{"event_type"},
	)

	// EventDeliveriesTotal counts sink delivery attempts by status and event type
	EventDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_security_event_deliveries_total",
			Help: "Total number of security event sink deliveries",
		},
		[]string{"event_type", "status"},
	)

	// EventDeliveryDuration tracks sink delivery latency by event type
	EventDeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_security_event_delivery_duration_seconds",
			Help:    "Security event sink delivery latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
		},
		[]string{"event_type"},
	)

	// EventQueueSize is a gauge representing the current event queue size
	EventQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_security_event_queue_size",
			Help: "Current size of the security event queue",
		},
	)

	// DroppedEventsTotal counts events dropped due to a full queue
	DroppedEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_security_events_dropped_total",
			Help: "Total number of security events dropped due to full queue",
		},
	)
)

// PrometheusMetrics implements MetricsRecorder using Prometheus
type PrometheusMetrics struct{}

// NewPrometheusMetrics creates a new Prometheus metrics recorder
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{}
}

// RecordEvent records a security event emission
func (m *PrometheusMetrics) RecordEvent(eventType string) {
	SecurityEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordDelivery records a sink delivery attempt
func (m *PrometheusMetrics) RecordDelivery(eventType, status string) {
	EventDeliveriesTotal.WithLabelValues(eventType, status).Inc()
}

// RecordDeliveryDuration records sink delivery latency
func (m *PrometheusMetrics) RecordDeliveryDuration(eventType string, duration time.Duration) {
	EventDeliveryDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

// RecordDroppedEvent records a dropped security event
func (m *PrometheusMetrics) RecordDroppedEvent() {
	DroppedEventsTotal.Inc()
}

// SetQueueSize sets the current event queue size
func (m *PrometheusMetrics) SetQueueSize(size int) {
	EventQueueSize.Set(float64(size))
}
