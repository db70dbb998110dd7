package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты проведения и аннулирования продажи для label result.
const (
	ResultCompleted         = "completed"
	ResultVoided            = "voided"
	ResultNoop              = "noop"
	ResultValidation        = "validation"
	ResultNotFound          = "not_found"
	ResultInsufficientStock = "insufficient_stock"
	ResultIncompletePayment = "incomplete_payment"
	ResultCompensated       = "compensated"
	ResultError             = "error"
)

// CheckoutMetrics содержит метрики кассовых операций.
// Методы безопасно вызывать на nil: метрики тогда просто не пишутся.
type CheckoutMetrics struct {
	commits *prometheus.CounterVec
	voids   *prometheus.CounterVec

	commitDuration prometheus.Histogram
	voidDuration   prometheus.Histogram

	itemsSold     prometheus.Counter
	revenue       prometheus.Counter
	compensations prometheus.Counter
	stockClamped  prometheus.Counter

	inFlight prometheus.Gauge
}

// NewCheckoutMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewCheckoutMetrics() *CheckoutMetrics {
	return NewCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCheckoutMetricsWithRegisterer регистрирует метрики в переданном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CheckoutMetrics{
		commits: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pos_checkout_commits_total",
			Help: "Total number of sale commits grouped by result",
		}, []string{"result"}),
		voids: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pos_checkout_voids_total",
			Help: "Total number of sale voids grouped by result",
		}, []string{"result"}),
		commitDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "pos_checkout_commit_duration_seconds",
			Help:    "Duration of sale commits in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		voidDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "pos_checkout_void_duration_seconds",
			Help:    "Duration of sale voids in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		itemsSold: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_checkout_items_sold_total",
			Help: "Total number of units sold by committed sales",
		}),
		revenue: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_checkout_revenue_total",
			Help: "Sum of committed sale totals in currency units",
		}),
		compensations: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_checkout_compensations_total",
			Help: "Total number of commits rolled back after a failed stock debit",
		}),
		stockClamped: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_catalog_stock_clamped_total",
			Help: "Total number of stock debits clamped at zero",
		}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "pos_checkout_in_flight",
			Help: "Number of commits and voids currently in progress",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordCommit фиксирует результат и длительность проведения продажи.
func (m *CheckoutMetrics) RecordCommit(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues(result).Inc()
	m.commitDuration.Observe(duration.Seconds())
}

// RecordSale учитывает проданные единицы и выручку успешной продажи.
func (m *CheckoutMetrics) RecordSale(units int, total float64) {
	if m == nil {
		return
	}
	m.itemsSold.Add(float64(units))
	if total > 0 {
		m.revenue.Add(total)
	}
}

// RecordVoid фиксирует результат и длительность аннулирования.
func (m *CheckoutMetrics) RecordVoid(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.voids.WithLabelValues(result).Inc()
	m.voidDuration.Observe(duration.Seconds())
}

// RecordCompensation увеличивает счётчик откатов проведения.
func (m *CheckoutMetrics) RecordCompensation() {
	if m == nil {
		return
	}
	m.compensations.Inc()
}

// RecordStockClamped увеличивает счётчик списаний, упёршихся в ноль.
func (m *CheckoutMetrics) RecordStockClamped() {
	if m == nil {
		return
	}
	m.stockClamped.Inc()
}

// InFlightStarted увеличивает число выполняемых операций.
func (m *CheckoutMetrics) InFlightStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// InFlightFinished уменьшает число выполняемых операций.
func (m *CheckoutMetrics) InFlightFinished() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}
