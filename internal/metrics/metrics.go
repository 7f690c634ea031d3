// Package metrics declares the Prometheus collectors for the layer stack
// service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "atp"

var (
	// StackOps counts layer stack operations.
	// Labels: op (add, update, move, delete, select, step), outcome (changed, noop, rejected)
	StackOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stack",
		Name:      "operations_total",
		Help:      "Layer stack operations by kind and outcome",
	}, []string{"op", "outcome"})

	// StackSize tracks the number of layers in the stack.
	StackSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "stack",
		Name:      "layers",
		Help:      "Number of layers in the active stack",
	})

	// ResolutionFailures counts updates rejected by the availability resolver.
	// Labels: reason (species, project, inventory)
	ResolutionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "resolve",
		Name:      "failures_total",
		Help:      "Layer updates rejected because the selection does not resolve",
	}, []string{"reason"})

	// RestoredLayers counts persisted layers kept or dropped at startup.
	// Labels: result (kept, dropped, defaulted)
	RestoredLayers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "restore",
		Name:      "layers_total",
		Help:      "Persisted layers processed during restore",
	}, []string{"result"})

	// StaleReports counts async load results discarded because the layer was
	// deleted or changed since the load started.
	StaleReports = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "aggregate",
		Name:      "stale_reports_total",
		Help:      "Layer load results discarded as stale",
	})

	// LayerLoads counts per-layer data loads.
	// Labels: outcome (ok, empty, error)
	LayerLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "loader",
		Name:      "loads_total",
		Help:      "Per-layer GeoJSON loads by outcome",
	}, []string{"outcome"})

	// UpstreamLatency measures upstream data API requests.
	// Labels: endpoint (inventory, citations, layer, photos)
	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "upstream",
		Name:      "request_duration_seconds",
		Help:      "Upstream data API request latency",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})
)
