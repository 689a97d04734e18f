package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// eventsTotal counts pipeline outcomes per tenant.
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckbot_events_total",
			Help: "Webhook events by tenant and pipeline outcome.",
		},
		[]string{"tenant", "outcome"},
	)

	// failuresTotal counts failures by class (generation, delivery, persistence, dedup_store).
	failuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckbot_failures_total",
			Help: "Contained pipeline failures by kind.",
		},
		[]string{"kind"},
	)

	// completionSeconds observes completion latency, fallbacks included.
	completionSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckbot_completion_seconds",
			Help:    "Duration of completion calls in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		},
		[]string{"tenant"},
	)
)

func init() {
	prometheus.MustRegister(eventsTotal, failuresTotal, completionSeconds)
}
