// Package metrics exposes Prometheus self-instrumentation for the agent.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TicksTotal counts completed scheduler ticks and on-demand scans.
	TicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentinel",
		Name:      "scans_total",
		Help:      "Completed collect+evaluate+persist passes.",
	}, []string{"trigger"}) // scheduled | manual

	// ScanDuration observes how long one full pass takes.
	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sentinel",
		Name:      "scan_duration_seconds",
		Help:      "Duration of one collect+evaluate+persist pass.",
		Buckets:   prometheus.DefBuckets,
	})

	// CollectorFailures counts absorbed collector failures per collector.
	CollectorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentinel",
		Name:      "collector_failures_total",
		Help:      "Collector failures absorbed by the collector service.",
	}, []string{"collector"})

	// SamplesCollected counts samples gathered per category.
	SamplesCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentinel",
		Name:      "samples_collected_total",
		Help:      "Samples gathered by collectors.",
	}, []string{"category"})

	// EventsStored counts events appended to the store.
	EventsStored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sentinel",
		Name:      "events_stored_total",
		Help:      "Events appended to the event store.",
	})

	// AlertsGenerated counts alerts emitted by the rule engine per severity.
	AlertsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentinel",
		Name:      "alerts_generated_total",
		Help:      "Alerts emitted by the rule engine.",
	}, []string{"severity"})
)

// Handler returns the HTTP handler serving the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
