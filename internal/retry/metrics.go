package retry

import "github.com/prometheus/client_golang/prometheus"

var (
	attemptsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sportsclub_core",
		Subsystem: "retry",
		Name:      "attempts_total",
		Help:      "Number of operation attempts made under the retry policy, labeled by operation.",
	}, []string{"operation"})

	exhaustedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sportsclub_core",
		Subsystem: "retry",
		Name:      "exhausted_total",
		Help:      "Number of operations that failed after exhausting the retry ceiling, labeled by operation.",
	}, []string{"operation"})
)

func init() {
	prometheus.MustRegister(attemptsCounter, exhaustedCounter)
}
