package realtime

import "github.com/prometheus/client_golang/prometheus"

var (
	activeStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sportsclub_core",
		Subsystem: "realtime",
		Name:      "active_streams",
		Help:      "Number of collections with an open change stream.",
	})

	eventsDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sportsclub_core",
		Subsystem: "realtime",
		Name:      "events_dispatched_total",
		Help:      "Number of change events delivered to callbacks, labeled by collection and event type.",
	}, []string{"collection", "type"})
)

func init() {
	prometheus.MustRegister(activeStreams, eventsDispatched)
}
