package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outbox delivery outcomes.
const (
	OutboxPublished = "published"
	OutboxRetry     = "retry"
	OutboxParked    = "parked"
)

// OutboxMetrics tracks the publisher loop. A nil value records nothing.
type OutboxMetrics struct {
	events  *prometheus.CounterVec
	lag     *prometheus.HistogramVec
	backlog prometheus.Gauge
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return nil
	}
	m := &OutboxMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_total",
			Help:      "Outbox rows handled by the publisher, by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		lag: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_publish_lag_seconds",
			Help:      "Time from the booking commit to the Pub/Sub ack.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 1800},
		}, []string{"topic"}),
		backlog: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_backlog",
			Help:      "Unpublished outbox rows when the publisher last went idle.",
		}),
	}
	reg.MustRegister(m.events, m.lag, m.backlog)
	return m
}

// Delivered records a row's outcome. lag is observed for published rows only.
func (o *OutboxMetrics) Delivered(eventType, topic, outcome string, lag time.Duration) {
	if o == nil {
		return
	}
	o.events.WithLabelValues(normalizeLabel(eventType), outcome).Inc()
	if outcome == OutboxPublished && topic != "" {
		o.lag.WithLabelValues(topic).Observe(lag.Seconds())
	}
}

func (o *OutboxMetrics) SetBacklog(n int64) {
	if o == nil {
		return
	}
	o.backlog.Set(float64(n))
}
