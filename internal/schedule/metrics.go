package schedule

import "github.com/prometheus/client_golang/prometheus"

var (
	sessionsScheduled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sportsclub_core",
		Subsystem: "schedule",
		Name:      "sessions_scheduled_total",
		Help:      "Number of sessions created by bulk schedule calls.",
	})

	sessionsCancelled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sportsclub_core",
		Subsystem: "schedule",
		Name:      "sessions_cancelled_total",
		Help:      "Number of sessions cancelled by bulk cancel calls.",
	})

	bulkItemFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sportsclub_core",
		Subsystem: "schedule",
		Name:      "bulk_item_failures_total",
		Help:      "Number of work items that failed inside a bulk call, labeled by operation.",
	}, []string{"operation"})

	bulkDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sportsclub_core",
		Subsystem: "schedule",
		Name:      "bulk_duration_seconds",
		Help:      "Wall time of bulk schedule and cancel loops, labeled by operation.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	}, []string{"operation"})

	conflictsDetected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sportsclub_core",
		Subsystem: "schedule",
		Name:      "conflicts_detected_total",
		Help:      "Number of scheduling conflicts reported by the conflict detector.",
	})
)

func init() {
	prometheus.MustRegister(sessionsScheduled, sessionsCancelled, bulkItemFailures, bulkDuration, conflictsDetected)
}
