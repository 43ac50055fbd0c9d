package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "airwarden"

var (
	// RowsParsed counts capture-file rows applied to the model
	RowsParsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_parsed_total",
			Help:      "Capture-file rows applied to the live model",
		},
		[]string{"section"},
	)

	// RowsMalformed counts rows skipped by validation
	RowsMalformed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_malformed_total",
			Help:      "Capture-file rows rejected by validation",
		},
		[]string{"section"},
	)

	Fingerprints = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fingerprints_total",
			Help:      "Entities classified by the fingerprint pool",
		},
		[]string{"kind"},
	)

	SyncTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_tasks_total",
			Help:      "Database sync tasks by outcome (ok, requeued, dropped, rejected)",
		},
		[]string{"kind", "result"},
	)

	SyncQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_queue_depth",
			Help:      "Tasks waiting for the sync worker",
		},
	)

	Attacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attacks_total",
			Help:      "Attack jobs executed by type and result",
		},
		[]string{"type", "result"},
	)

	MonitorTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_transitions_total",
			Help:      "Monitor mode enable/disable attempts",
		},
		[]string{"op", "result"},
	)

	once sync.Once
)

// InitMetrics registers all metrics with the default registry. Safe to call
// more than once.
func InitMetrics() {
	once.Do(func() {
		for _, c := range []prometheus.Collector{
			RowsParsed, RowsMalformed, Fingerprints,
			SyncTasks, SyncQueueDepth, Attacks, MonitorTransitions,
		} {
			prometheus.DefaultRegisterer.Register(c)
		}
	})
}

// Result maps an error to the label used by the outcome counters.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
