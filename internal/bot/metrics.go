// Prometheus metrics for the dispatcher.
package bot

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// botEvents counts inbound events by kind, sender role, and outcome
	// (handled, rate_limited, duplicate, dropped).
	botEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbackbot_events_total",
			Help: "Inbound chat events by kind, role, and outcome.",
		},
		[]string{"kind", "role", "outcome"},
	)

	// botEventLat records how long an event took to handle end to end.
	botEventLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedbackbot_event_duration_seconds",
			Help:    "Time spent handling one inbound event.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// lifecycleOps counts Submit/Reply outcomes by error kind ("ok" on
	// success).
	lifecycleOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbackbot_lifecycle_operations_total",
			Help: "Message lifecycle operations by operation and result.",
		},
		[]string{"op", "result"},
	)

	// outboundErrs counts failed gateway calls.
	outboundErrs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbackbot_outbound_errors_total",
			Help: "Failed outbound transport calls by operation.",
		},
		[]string{"op"},
	)

	// queueDepth gauges events waiting for the dispatch worker.
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "feedbackbot_queue_depth",
			Help: "Events waiting for the dispatch worker.",
		},
	)
)

func init() {
	prometheus.MustRegister(botEvents, botEventLat, lifecycleOps, outboundErrs, queueDepth)
}
