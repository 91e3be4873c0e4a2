// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var IndexSync = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dil",
	Subsystem: "index",
	Name:      "sync_total",
	Help:      "Search index synchronisations after a committed mutation.",
}, []string{"op", "result"})

var HookFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dil",
	Subsystem: "consistency",
	Name:      "hook_failures_total",
	Help:      "Best-effort hook failures that were logged and suppressed.",
}, []string{"hook"})

var ReindexDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: "dil",
	Subsystem: "index",
	Name:      "reindex_duration_seconds",
	Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
})

var ImportedRows = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dil",
	Subsystem: "import",
	Name:      "rows_total",
}, []string{"table", "result"})

var HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dil",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "API requests by route and status code.",
}, []string{"route", "status"})

var HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "dil",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Buckets:   prometheus.DefBuckets,
}, []string{"route"})

// Register adds every collector to reg. Collectors already registered are
// left alone so tests and commands can call it more than once.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{IndexSync, HookFailures, ReindexDuration, ImportedRows, HTTPRequests, HTTPDuration} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}
