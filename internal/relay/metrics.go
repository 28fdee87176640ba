package relay

import "github.com/prometheus/client_golang/prometheus"

var (
	eventsDelivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sportsclub_core",
		Subsystem: "relay",
		Name:      "events_delivered_total",
		Help:      "Number of change events published to Kafka, labeled by topic.",
	}, []string{"topic"})

	eventsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sportsclub_core",
		Subsystem: "relay",
		Name:      "events_failed_total",
		Help:      "Number of change events that could not be published, labeled by topic.",
	}, []string{"topic"})

	eventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sportsclub_core",
		Subsystem: "relay",
		Name:      "events_dropped_total",
		Help:      "Number of change events dropped because the relay queue was full.",
	})

	publishDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sportsclub_core",
		Subsystem: "relay",
		Name:      "publish_duration_seconds",
		Help:      "Wall time of one change event publish.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(eventsDelivered, eventsFailed, eventsDropped, publishDuration)
}
