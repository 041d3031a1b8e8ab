package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/security"
)

// ReputationMetricsCollector collects reputation store gauges on each scrape
type ReputationMetricsCollector struct {
	store *security.ReputationStore
	clock security.Clock

	// Metric descriptors
	whitelistedCount *prometheus.Desc
	temporaryBlocks  *prometheus.Desc
	permanentBlocks  *prometheus.Desc
}

// NewReputationMetricsCollector creates a new collector. clock may be nil
// for the system clock.
func NewReputationMetricsCollector(store *security.ReputationStore, clock security.Clock) *ReputationMetricsCollector {
	if clock == nil {
		clock = security.SystemClock{}
	}
	return &ReputationMetricsCollector{
		store: store,
		clock: clock,
		whitelistedCount: prometheus.NewDesc(
			"storefront_whitelisted_ips_count",
			"Number of whitelisted IP addresses",
			nil, nil,
		),
		temporaryBlocks: prometheus.NewDesc(
			"storefront_blocked_ips_temporary_count",
			"Number of active temporary IP blocks",
			nil, nil,
		),
		permanentBlocks: prometheus.NewDesc(
			"storefront_blocked_ips_permanent_count",
			"Number of permanent IP blacklist entries",
			nil, nil,
		),
	}
}

// Describe sends metric descriptors to Prometheus
func (c *ReputationMetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.whitelistedCount
	ch <- c.temporaryBlocks
	ch <- c.permanentBlocks
}

// Collect reads current store membership and sends it to Prometheus.
// Expired temporary blocks are excluded, so the gauges track what the
// admission checks actually see.
func (c *ReputationMetricsCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.store.Stats(c.clock.Now())

	ch <- prometheus.MustNewConstMetric(
		c.whitelistedCount,
		prometheus.GaugeValue,
		float64(stats.Whitelisted),
	)

	ch <- prometheus.MustNewConstMetric(
		c.temporaryBlocks,
		prometheus.GaugeValue,
		float64(stats.TemporaryBlocks),
	)

	ch <- prometheus.MustNewConstMetric(
		c.permanentBlocks,
		prometheus.GaugeValue,
		float64(stats.PermanentBlocks),
	)
}
