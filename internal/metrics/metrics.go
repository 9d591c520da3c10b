// Package metrics collects Prometheus metrics for engine operations,
// grounded on the teacher's observability.Collector: a private registry
// built per Collector, metrics registered up front rather than
// created ad hoc, and one counter/histogram per concern.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds every metric mnemo exports.
type Collector struct {
	registry *prometheus.Registry

	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	OperationErrors   *prometheus.CounterVec

	ItemsRemembered prometheus.Counter
	EdgesAssociated prometheus.Counter
	RecallResults   prometheus.Histogram

	DecayPassesTotal  prometheus.Counter
	ItemsDecayed      prometheus.Counter
	EdgesPruned       prometheus.Counter
	ConsolidationsRun prometheus.Counter
	ItemsConsolidated prometheus.Counter

	PolicyVersionsTotal prometheus.Gauge
	FeedbackOutcomes    *prometheus.CounterVec

	StoreSaveDuration   prometheus.Histogram
	StoreSaveFailures   prometheus.Counter
	CircuitBreakerState prometheus.Gauge

	EngineEnergy    prometheus.Gauge
	EngineItemCount prometheus.Gauge
	EngineEdgeCount prometheus.Gauge
}

// NewCollector builds and registers every metric under namespace (e.g.
// "mnemo") on a private registry, so tests can build independent
// collectors without colliding on the global default registerer.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "operations_total", Help: "Total query-surface operations by name.",
		}, []string{"operation"}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "operation_duration_seconds", Help: "Operation latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		OperationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "operation_errors_total", Help: "Operation failures by name and error kind.",
		}, []string{"operation", "kind"}),
		ItemsRemembered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "items_remembered_total", Help: "Total items inserted via remember.",
		}),
		EdgesAssociated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "edges_associated_total", Help: "Total edges upserted via associate.",
		}),
		RecallResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "recall_results", Help: "Number of items returned per recall call.",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		DecayPassesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "decay_passes_total", Help: "Total decay! invocations.",
		}),
		ItemsDecayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "items_decayed_total", Help: "Total items whose energy was decayed.",
		}),
		EdgesPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "edges_pruned_total", Help: "Total edges pruned below the weight floor.",
		}),
		ConsolidationsRun: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "consolidations_total", Help: "Total consolidate invocations.",
		}),
		ItemsConsolidated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "items_consolidated_total", Help: "Total items folded into reflection items.",
		}),
		PolicyVersionsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "policy_versions", Help: "Current count of retired policy versions.",
		}),
		FeedbackOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "feedback_outcomes_total", Help: "Feedback calls by outcome.",
		}, []string{"outcome"}),
		StoreSaveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "store_save_duration_seconds", Help: "Snapshot save latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		StoreSaveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "store_save_failures_total", Help: "Total failed snapshot saves.",
		}),
		CircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "store_circuit_breaker_state", Help: "0=closed, 1=half-open, 2=open.",
		}),
		EngineEnergy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "engine_energy", Help: "Current process-level energy scalar.",
		}),
		EngineItemCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "engine_items", Help: "Current item count.",
		}),
		EngineEdgeCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "engine_edges", Help: "Current edge count.",
		}),
	}

	registry.MustRegister(
		c.OperationsTotal, c.OperationDuration, c.OperationErrors,
		c.ItemsRemembered, c.EdgesAssociated, c.RecallResults,
		c.DecayPassesTotal, c.ItemsDecayed, c.EdgesPruned,
		c.ConsolidationsRun, c.ItemsConsolidated,
		c.PolicyVersionsTotal, c.FeedbackOutcomes,
		c.StoreSaveDuration, c.StoreSaveFailures, c.CircuitBreakerState,
		c.EngineEnergy, c.EngineItemCount, c.EngineEdgeCount,
	)

	return c
}

// Registry exposes the private registry for an HTTP /metrics handler.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// ObserveOperation records one operation's outcome and latency.
func (c *Collector) ObserveOperation(operation string, start time.Time, err error, errKind string) {
	c.OperationsTotal.WithLabelValues(operation).Inc()
	c.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		c.OperationErrors.WithLabelValues(operation, errKind).Inc()
	}
}
