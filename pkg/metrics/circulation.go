package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes recorded for loan operations.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// CirculationMetrics tracks loan lifecycle operations.
type CirculationMetrics struct {
	operations *prometheus.CounterVec
	retries    *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	overdue    prometheus.Gauge
}

// NewCirculationMetrics registers the loan metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewCirculationMetrics(reg prometheus.Registerer) *CirculationMetrics {
	if reg == nil {
		return &CirculationMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "loan_operations_total",
		Help:      "Loan create/return operations by outcome.",
	}, []string{"operation", "outcome"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "loan_operation_retries_total",
		Help:      "Internal retries of loan operations after transient failures.",
	}, []string{"operation"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "loan_operation_duration_seconds",
		Help:      "Duration of loan operations including retries.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	overdue := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "overdue_loans",
		Help:      "Active loans past their due date at the last scan.",
	})
	reg.MustRegister(operations, retries, duration, overdue)
	return &CirculationMetrics{
		operations: operations,
		retries:    retries,
		duration:   duration,
		overdue:    overdue,
	}
}

// Observe records one finished operation.
func (c *CirculationMetrics) Observe(operation, outcome string, elapsed time.Duration) {
	if c == nil || c.operations == nil {
		return
	}
	op := normalizeLabel(operation)
	c.operations.WithLabelValues(op, normalizeLabel(outcome)).Inc()
	c.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// IncRetry counts an internal retry of operation.
func (c *CirculationMetrics) IncRetry(operation string) {
	if c == nil || c.retries == nil {
		return
	}
	c.retries.WithLabelValues(normalizeLabel(operation)).Inc()
}

// SetOverdue publishes the overdue count from the latest scan.
func (c *CirculationMetrics) SetOverdue(count int) {
	if c == nil || c.overdue == nil {
		return
	}
	c.overdue.Set(float64(count))
}
