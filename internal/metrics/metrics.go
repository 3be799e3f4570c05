// Package metrics defines the prometheus/client_golang collectors exported
// by the indexer process: block processing latency, gas consumed, hook
// dispatch outcomes, and observed reorg depth.
//
// No single teacher file owns metrics registration; prometheus/client_golang
// arrives transitively through several of the teacher's node-type files
// rather than one dedicated package. Consolidated here into one registry
// instead of scattering registration calls across packages, following the
// idiomatic pattern core/virtual_machine.go uses for its own embedded HTTP
// server construction (one place owns the collector set for a concern).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles every collector the indexer exports.
type Registry struct {
	BlockProcessLatency *prometheus.HistogramVec
	GasConsumed         prometheus.Counter
	BlocksIndexed       prometheus.Counter
	BlocksReverted      prometheus.Counter
	HookDispatchTotal   *prometheus.CounterVec
	HookDispatchLatency *prometheus.HistogramVec
	ReorgDepth          prometheus.Histogram
	ReorgsTotal         prometheus.Counter
	PendingTasks        prometheus.Gauge
}

// New constructs a Registry and registers every collector against reg. Pass
// prometheus.NewRegistry() for isolated tests, or prometheus.DefaultRegisterer
// for the process-wide default.
func New(reg prometheus.Registerer) *Registry {
	m := &Registry{
		BlockProcessLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "indexer",
			Subsystem: "block",
			Name:      "process_latency_seconds",
			Help:      "Time to process a block through the BlockProcessor, by stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		GasConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "indexer",
			Subsystem: "block",
			Name:      "gas_consumed_total",
			Help:      "Cumulative gas consumed across all processed interactions.",
		}),
		BlocksIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "indexer",
			Subsystem: "block",
			Name:      "indexed_total",
			Help:      "Total blocks reaching COMPLETE.",
		}),
		BlocksReverted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "indexer",
			Subsystem: "block",
			Name:      "reverted_total",
			Help:      "Total IndexingTasks that reached REVERTED.",
		}),
		HookDispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indexer",
			Subsystem: "hooks",
			Name:      "dispatch_total",
			Help:      "Hook dispatch outcomes by event and result.",
		}, []string{"event", "outcome"}),
		HookDispatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "indexer",
			Subsystem: "hooks",
			Name:      "dispatch_latency_seconds",
			Help:      "Hook dispatch latency by event.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event"}),
		ReorgDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "indexer",
			Subsystem: "chain",
			Name:      "reorg_depth_blocks",
			Help:      "Depth of detected reorgs, in blocks rolled back.",
			Buckets:   []float64{1, 2, 3, 6, 12, 24, 50, 100},
		}),
		ReorgsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "indexer",
			Subsystem: "chain",
			Name:      "reorgs_total",
			Help:      "Total reorgs recovered from.",
		}),
		PendingTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "indexer",
			Subsystem: "indexing",
			Name:      "pending_tasks",
			Help:      "Number of in-flight IndexingTasks (prefetching or later).",
		}),
	}
	reg.MustRegister(
		m.BlockProcessLatency,
		m.GasConsumed,
		m.BlocksIndexed,
		m.BlocksReverted,
		m.HookDispatchTotal,
		m.HookDispatchLatency,
		m.ReorgDepth,
		m.ReorgsTotal,
		m.PendingTasks,
	)
	return m
}
