package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dormcore_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dormcore_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	provisionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dormcore_provision_total",
		Help: "Provisioning workflows by terminal state",
	}, []string{"state"})

	provisionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dormcore_provision_duration_seconds",
		Help:    "Duration of provisioning workflows",
		Buckets: prometheus.DefBuckets,
	}, []string{"state"})

	admissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dormcore_admissions_total",
		Help: "Room admission attempts by result",
	}, []string{"result"})

	checkoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dormcore_checkouts_total",
		Help: "Checkouts by result",
	}, []string{"result"})

	activeOccupancies = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dormcore_active_occupancies",
		Help: "Number of current occupancy records (logical state)",
	})

	unresolvedOrphans = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dormcore_unresolved_orphans",
		Help: "Provisioning orphan markers awaiting reconciliation",
	})
)

// ObserveHTTPRequest records an HTTP request metric.
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveProvision records one finished provisioning workflow.
func ObserveProvision(state string, duration time.Duration) {
	provisionOutcomes.WithLabelValues(state).Inc()
	provisionDuration.WithLabelValues(state).Observe(duration.Seconds())
}

// ObserveAdmission counts an admission attempt with its result label.
func ObserveAdmission(result string) {
	admissionsTotal.WithLabelValues(result).Inc()
}

// ObserveCheckout counts a checkout with its result label.
func ObserveCheckout(result string) {
	checkoutsTotal.WithLabelValues(result).Inc()
}

// IncrementOccupancy increments the active occupancy gauge.
func IncrementOccupancy() {
	activeOccupancies.Inc()
}

// DecrementOccupancy decrements the active occupancy gauge.
func DecrementOccupancy() {
	activeOccupancies.Dec()
}

// SetUnresolvedOrphans sets the orphan marker gauge.
func SetUnresolvedOrphans(count int) {
	if count < 0 {
		count = 0
	}
	unresolvedOrphans.Set(float64(count))
}
