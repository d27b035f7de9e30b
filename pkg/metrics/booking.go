package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Booking outcomes used as the "outcome" label.
const (
	OutcomeCreated     = "created"
	OutcomeUnavailable = "unavailable"
	OutcomeNotFound    = "not_found"
	OutcomeInvalid     = "invalid"
	OutcomeBusy        = "busy"
	OutcomeCanceled    = "canceled"
	OutcomeError       = "error"
	OutcomeReturned    = "returned"
	OutcomeConflict    = "conflict"
)

// BookingMetrics counts booking and return attempts by outcome.
type BookingMetrics struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	if reg == nil {
		return &BookingMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "booking_attempts_total",
		Help:      "Booking and return attempts partitioned by operation and outcome.",
	}, []string{"operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "booking_duration_seconds",
		Help:      "Time spent in the booking transaction.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"operation"})
	reg.MustRegister(attempts, duration)
	return &BookingMetrics{attempts: attempts, duration: duration}
}

// Observe records one attempt.
func (b *BookingMetrics) Observe(operation, outcome string, elapsed time.Duration) {
	if b == nil || b.attempts == nil {
		return
	}
	op := normalizeLabel(operation)
	b.attempts.WithLabelValues(op, normalizeLabel(outcome)).Inc()
	b.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}
