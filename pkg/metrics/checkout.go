package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics tracks order placement attempts by channel and outcome.
type CheckoutMetrics struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
	units    *prometheus.CounterVec
}

// NewCheckoutMetrics registers checkout metrics on reg. A nil registerer
// yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "checkout",
		Name:      "attempts_total",
		Help:      "Checkout attempts partitioned by channel and outcome.",
	}, []string{"channel", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "checkout",
		Name:      "duration_seconds",
		Help:      "Time spent placing an order, including stock reservation.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"channel"})
	units := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "checkout",
		Name:      "units_reserved_total",
		Help:      "Variant units decremented by successful checkouts.",
	}, []string{"channel"})
	reg.MustRegister(attempts, duration, units)
	return &CheckoutMetrics{attempts: attempts, duration: duration, units: units}
}

// Observe records one checkout attempt. Outcome is "success" or a failure reason.
func (m *CheckoutMetrics) Observe(channel, outcome string, elapsed time.Duration) {
	if m == nil || m.attempts == nil {
		return
	}
	channel = normalizeLabel(channel, "web")
	m.attempts.WithLabelValues(channel, normalizeLabel(outcome, "unknown")).Inc()
	m.duration.WithLabelValues(channel).Observe(elapsed.Seconds())
}

// AddUnits records how many units a successful checkout reserved.
func (m *CheckoutMetrics) AddUnits(channel string, units int) {
	if m == nil || m.units == nil || units <= 0 {
		return
	}
	m.units.WithLabelValues(normalizeLabel(channel, "web")).Add(float64(units))
}
