package metrics

import (
	"context"
	"time"

	"mnemo/internal/decay"
	"mnemo/internal/engine"
	mnemoerrors "mnemo/internal/errors"
	"mnemo/internal/graph"
)

// InstrumentedEngine wraps an *engine.Engine, recording Collector metrics
// around Remember, Associate, Recall, DecayNow, Consolidate, Feedback and
// Snapshot. Unlike observability.TracedEngine it also instruments
// operations with no context argument, since a counter doesn't need one.
// Every other operation is reached through Unwrap and is not metered.
type InstrumentedEngine struct {
	inner *engine.Engine
	m     *Collector
}

// Instrument returns an InstrumentedEngine delegating every call to inner.
func Instrument(inner *engine.Engine, m *Collector) *InstrumentedEngine {
	return &InstrumentedEngine{inner: inner, m: m}
}

func errKind(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := err.(*mnemoerrors.Error); ok {
		return string(e.Kind)
	}
	return "UNKNOWN"
}

func (e *InstrumentedEngine) Remember(in graph.RememberInput) (*graph.Item, error) {
	start := time.Now()
	item, err := e.inner.Remember(in)
	e.m.ObserveOperation("remember", start, err, errKind(err))
	if err == nil {
		e.m.ItemsRemembered.Inc()
	}
	return item, err
}

func (e *InstrumentedEngine) Associate(from, to, relation string, weight float64) (*graph.Edge, error) {
	start := time.Now()
	edge, err := e.inner.Associate(from, to, relation, weight)
	e.m.ObserveOperation("associate", start, err, errKind(err))
	if err == nil {
		e.m.EdgesAssociated.Inc()
	}
	return edge, err
}

func (e *InstrumentedEngine) Recall(ctx context.Context, query string, limit int, scope string) ([]engine.RecallResult, error) {
	start := time.Now()
	results, err := e.inner.Recall(ctx, query, limit, scope)
	e.m.ObserveOperation("recall", start, err, errKind(err))
	if err == nil {
		e.m.RecallResults.Observe(float64(len(results)))
	}
	return results, err
}

func (e *InstrumentedEngine) DecayNow(ctx context.Context, halfLifeDays float64) decay.Stats {
	start := time.Now()
	s := e.inner.DecayNow(ctx, halfLifeDays)
	e.m.ObserveOperation("decay", start, nil, "")
	e.m.DecayPassesTotal.Inc()
	e.m.ItemsDecayed.Add(float64(s.DecayedItems))
	e.m.EdgesPruned.Add(float64(s.PrunedEdges))
	return s
}

func (e *InstrumentedEngine) Consolidate() decay.ConsolidateStats {
	start := time.Now()
	s := e.inner.Consolidate()
	e.m.ObserveOperation("consolidate", start, nil, "")
	e.m.ConsolidationsRun.Inc()
	e.m.ItemsConsolidated.Add(float64(s.ReflectionsCreated))
	return s
}

func (e *InstrumentedEngine) Feedback(id string, outcome bool) error {
	start := time.Now()
	err := e.inner.Feedback(id, outcome)
	e.m.ObserveOperation("feedback", start, err, errKind(err))
	label := "negative"
	if outcome {
		label = "positive"
	}
	e.m.FeedbackOutcomes.WithLabelValues(label).Inc()
	return err
}

func (e *InstrumentedEngine) Snapshot(ctx context.Context) (string, error) {
	start := time.Now()
	text, err := e.inner.Snapshot(ctx)
	e.m.StoreSaveDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		e.m.StoreSaveFailures.Inc()
	}
	e.m.ObserveOperation("snapshot", start, err, errKind(err))
	return text, err
}

// RefreshGauges samples the engine's current Stats into the gauge
// metrics; callers poll this on an interval (or after each mutation)
// since Stats itself isn't push-based.
func (e *InstrumentedEngine) RefreshGauges() {
	s := e.inner.Stats()
	e.m.EngineEnergy.Set(s.Energy)
	e.m.EngineItemCount.Set(float64(s.Items))
	e.m.EngineEdgeCount.Set(float64(s.Edges))
	e.m.PolicyVersionsTotal.Set(float64(s.PolicyVersions))
}

// Unwrap returns the inner Engine for operations InstrumentedEngine
// doesn't wrap directly.
func (e *InstrumentedEngine) Unwrap() *engine.Engine { return e.inner }
