package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	if err := c.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.Counter.GetValue()
}

func TestNewCheckoutMetrics_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := NewCheckoutMetricsWithRegisterer(reg)
	second := NewCheckoutMetricsWithRegisterer(reg)

	if first.commits != second.commits {
		t.Fatal("second registration must reuse existing collectors")
	}
	if first.inFlight == nil || first.commitDuration == nil || first.stockClamped == nil {
		t.Fatal("collectors must be initialized")
	}
}

func TestRecordCommitAndSale(t *testing.T) {
	m := NewCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordCommit(ResultCompleted, 10*time.Millisecond)
	m.RecordCommit(ResultCompleted, 5*time.Millisecond)
	m.RecordCommit(ResultInsufficientStock, time.Millisecond)
	m.RecordSale(3, 13.5)

	if got := counterValue(t, m.commits.WithLabelValues(ResultCompleted)); got != 2 {
		t.Errorf("completed commits = %f, want 2", got)
	}
	if got := counterValue(t, m.commits.WithLabelValues(ResultInsufficientStock)); got != 1 {
		t.Errorf("insufficient stock commits = %f, want 1", got)
	}
	if got := counterValue(t, m.itemsSold); got != 3 {
		t.Errorf("items sold = %f, want 3", got)
	}
	if got := counterValue(t, m.revenue); got != 13.5 {
		t.Errorf("revenue = %f, want 13.5", got)
	}

	hist := &dto.Metric{}
	if err := m.commitDuration.Write(hist); err != nil {
		t.Fatalf("failed to write histogram: %v", err)
	}
	if hist.Histogram.GetSampleCount() != 3 {
		t.Errorf("expected 3 duration samples, got %d", hist.Histogram.GetSampleCount())
	}
}

func TestRecordVoidCompensationAndClamp(t *testing.T) {
	m := NewCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordVoid(ResultVoided, time.Millisecond)
	m.RecordVoid(ResultNoop, time.Millisecond)
	m.RecordCompensation()
	m.RecordStockClamped()
	m.RecordStockClamped()

	if got := counterValue(t, m.voids.WithLabelValues(ResultNoop)); got != 1 {
		t.Errorf("noop voids = %f, want 1", got)
	}
	if got := counterValue(t, m.compensations); got != 1 {
		t.Errorf("compensations = %f, want 1", got)
	}
	if got := counterValue(t, m.stockClamped); got != 2 {
		t.Errorf("stock clamped = %f, want 2", got)
	}
}

func TestInFlightGauge(t *testing.T) {
	m := NewCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	m.InFlightStarted()
	m.InFlightStarted()
	m.InFlightFinished()

	gauge := &dto.Metric{}
	if err := m.inFlight.Write(gauge); err != nil {
		t.Fatalf("failed to write gauge: %v", err)
	}
	if gauge.Gauge.GetValue() != 1 {
		t.Errorf("in flight = %f, want 1", gauge.Gauge.GetValue())
	}
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *CheckoutMetrics

	m.RecordCommit(ResultCompleted, time.Millisecond)
	m.RecordSale(1, 1)
	m.RecordVoid(ResultVoided, time.Millisecond)
	m.RecordCompensation()
	m.RecordStockClamped()
	m.InFlightStarted()
	m.InFlightFinished()
}
