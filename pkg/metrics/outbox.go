package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PublisherMetrics tracks the outbox relay to Redis streams.
type PublisherMetrics struct {
	outcomes *prometheus.CounterVec
	batch    prometheus.Histogram
}

// NewPublisherMetrics registers the publisher metrics on reg. A nil registerer
// yields a no-op recorder.
func NewPublisherMetrics(reg prometheus.Registerer) *PublisherMetrics {
	if reg == nil {
		return &PublisherMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "events_total",
		Help:      "Outbox rows handled by the publisher, by stream and outcome.",
	}, []string{"stream", "outcome"})
	batch := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time spent relaying one batch of outbox rows.",
		Buckets:   prometheus.DefBuckets,
	})
	reg.MustRegister(outcomes, batch)
	return &PublisherMetrics{outcomes: outcomes, batch: batch}
}

// IncOutcome counts one row that ended as outcome (published, retried, dead_lettered).
func (p *PublisherMetrics) IncOutcome(stream, outcome string) {
	if p == nil || p.outcomes == nil {
		return
	}
	if stream == "" {
		stream = "unresolved"
	}
	p.outcomes.WithLabelValues(stream, normalizeLabel(outcome)).Inc()
}

// ObserveBatch records how long a non-empty batch took.
func (p *PublisherMetrics) ObserveBatch(d time.Duration) {
	if p == nil || p.batch == nil {
		return
	}
	p.batch.Observe(d.Seconds())
}
