package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation outcomes recorded by ObserveOutcome.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
	OutcomeStale    = "stale"
)

// ClientMetrics records storefront client activity.
type ClientMetrics struct {
	duration        *prometheus.HistogramVec
	operations      *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
}

// NewClientMetrics registers the client metrics on the provided registerer.
func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	if reg == nil {
		return &ClientMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_http_request_duration_seconds",
		Help:    "Duration of backend round trips in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_operation_total",
		Help: "Session and cart operations by outcome.",
	}, []string{"operation", "outcome"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_storage_rejections_total",
		Help: "Values refused or purged by the storage guard.",
	}, []string{"key"})
	reconciliations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_reconciliations_total",
		Help: "Cart reloads forced to discard local state.",
	}, []string{"reason"})
	reg.MustRegister(duration, operations, rejections, reconciliations)
	return &ClientMetrics{
		duration:        duration,
		operations:      operations,
		rejections:      rejections,
		reconciliations: reconciliations,
	}
}

// ObserveDuration records the round-trip duration for the named operation.
func (c *ClientMetrics) ObserveDuration(operation string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// ObserveOutcome increments the operation counter.
func (c *ClientMetrics) ObserveOutcome(operation, outcome string) {
	if c == nil || c.operations == nil {
		return
	}
	c.operations.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

// IncRejection counts a value the storage guard refused to write or purged on read.
func (c *ClientMetrics) IncRejection(key string) {
	if c == nil || c.rejections == nil {
		return
	}
	c.rejections.WithLabelValues(normalizeLabel(key)).Inc()
}

// IncReconciliation counts a forced cart reload.
func (c *ClientMetrics) IncReconciliation(reason string) {
	if c == nil || c.reconciliations == nil {
		return
	}
	c.reconciliations.WithLabelValues(normalizeLabel(reason)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
