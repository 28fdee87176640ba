// Package observability holds cross-cutting watermark gauges: the freshest
// scheduling mutation and the freshest relayed change event. Flat lines here
// mean the pipeline has stalled even when the error counters stay quiet.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	sessionScheduledGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sportsclub_core",
		Subsystem: "scheduling",
		Name:      "last_session_scheduled_timestamp_seconds",
		Help:      "Unix timestamp of the most recent session written as scheduled.",
	})
	sessionCancelledGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sportsclub_core",
		Subsystem: "scheduling",
		Name:      "last_session_cancelled_timestamp_seconds",
		Help:      "Unix timestamp of the most recent session transitioned to cancelled.",
	})
	changeRelayedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sportsclub_core",
		Subsystem: "relay",
		Name:      "last_change_relayed_timestamp_seconds",
		Help:      "Unix timestamp of the most recent change event delivered to Kafka.",
	})
)

func init() {
	prometheus.MustRegister(sessionScheduledGauge, sessionCancelledGauge, changeRelayedGauge)
}

// RecordSessionScheduled updates the scheduling watermark gauge.
func RecordSessionScheduled(ts time.Time) {
	if ts.IsZero() {
		return
	}
	sessionScheduledGauge.Set(float64(ts.Unix()))
}

// RecordSessionCancelled updates the cancellation watermark gauge.
func RecordSessionCancelled(ts time.Time) {
	if ts.IsZero() {
		return
	}
	sessionCancelledGauge.Set(float64(ts.Unix()))
}

// RecordChangeRelayed updates the relay delivery watermark gauge.
func RecordChangeRelayed(ts time.Time) {
	if ts.IsZero() {
		return
	}
	changeRelayedGauge.Set(float64(ts.Unix()))
}
