package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCirculationMetricsRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCirculationMetrics(reg)

	m.Observe("create_loan", OutcomeSuccess, 10*time.Millisecond)
	m.Observe("create_loan", OutcomeRejected, 5*time.Millisecond)
	m.Observe("create_loan", OutcomeSuccess, 5*time.Millisecond)
	m.IncRetry("create_loan")
	m.SetOverdue(4)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	mf := findMetricFamily(mfs, "libronova_loan_operations_total")
	if mf == nil {
		t.Fatal("loan operations metric missing")
	}
	var success float64
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), "outcome", OutcomeSuccess) {
			success = metric.GetCounter().GetValue()
		}
	}
	if success != 2 {
		t.Fatalf("expected 2 successes, got %f", success)
	}

	if got, err := fetchCounterValue(mfs, "libronova_loan_operation_retries_total", "operation", "create_loan"); err != nil || got != 1 {
		t.Fatalf("expected 1 retry, got %f err=%v", got, err)
	}

	gauge := findMetricFamily(mfs, "libronova_overdue_loans")
	if gauge == nil || gauge.GetMetric()[0].GetGauge().GetValue() != 4 {
		t.Fatalf("expected overdue gauge 4")
	}
}
