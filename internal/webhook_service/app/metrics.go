package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsExtractedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dm_autoreply",
			Name:      "events_extracted_total",
			Help:      "Total inbound text events extracted from webhook payloads.",
		},
	)

	duplicateEventsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dm_autoreply",
			Name:      "duplicate_events_total",
			Help:      "Total events suppressed by the dedup window.",
		},
	)

	deliveriesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dm_autoreply",
			Name:      "deliveries_total",
			Help:      "Total finished reply deliveries.",
		},
		[]string{"status"}, // "success" or "failure"
	)

	deliveryDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dm_autoreply",
			Name:      "delivery_duration_seconds",
			Help:      "Duration of one reply delivery including retries.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	dispatchDroppedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dm_autoreply",
			Name:      "dispatch_jobs_dropped_total",
			Help:      "Total delivery jobs dropped because the dispatch queue was full.",
		},
	)
)
