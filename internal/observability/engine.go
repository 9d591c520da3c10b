package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mnemo/internal/decay"
	"mnemo/internal/engine"
)

// TracedEngine wraps an *engine.Engine so every context-bearing operation
// opens a span, following the teacher's TraceRepository decorator
// pattern. Operations without a context (pure getters like Stats or
// GetPolicy) pass straight through since there is nothing to attach a
// span to.
type TracedEngine struct {
	inner  *engine.Engine
	tracer trace.Tracer
}

// WrapEngine returns a TracedEngine delegating every call to inner.
func WrapEngine(inner *engine.Engine, tracer trace.Tracer) *TracedEngine {
	return &TracedEngine{inner: inner, tracer: tracer}
}

func (t *TracedEngine) Recall(ctx context.Context, query string, limit int, scope string) ([]engine.RecallResult, error) {
	ctx, span := t.tracer.Start(ctx, "engine.Recall", trace.WithAttributes(
		attribute.String("query", query), attribute.Int("limit", limit), attribute.String("scope", scope),
	))
	defer span.End()

	results, err := t.inner.Recall(ctx, query, limit, scope)
	if err != nil {
		span.RecordError(err)
	}
	span.SetAttributes(attribute.Int("results", len(results)))
	return results, err
}

func (t *TracedEngine) Search(ctx context.Context, query string, limit int, scope string) ([]engine.SearchResult, error) {
	ctx, span := t.tracer.Start(ctx, "engine.Search", trace.WithAttributes(attribute.String("query", query)))
	defer span.End()

	results, err := t.inner.Search(ctx, query, limit, scope)
	if err != nil {
		span.RecordError(err)
	}
	return results, err
}

func (t *TracedEngine) DecayNow(ctx context.Context, halfLifeDays float64) decay.Stats {
	ctx, span := t.tracer.Start(ctx, "engine.DecayNow")
	defer span.End()

	stats := t.inner.DecayNow(ctx, halfLifeDays)
	span.SetAttributes(
		attribute.Int("decayed_items", stats.DecayedItems),
		attribute.Int("pruned_edges", stats.PrunedEdges),
	)
	return stats
}

func (t *TracedEngine) Consolidate(ctx context.Context) decay.ConsolidateStats {
	_, span := t.tracer.Start(ctx, "engine.Consolidate")
	defer span.End()
	return t.inner.Consolidate()
}

func (t *TracedEngine) Activate(ctx context.Context, seeds map[string]float64, steps int, decayFactor, threshold float64) (map[string]float64, error) {
	ctx, span := t.tracer.Start(ctx, "engine.Activate", trace.WithAttributes(attribute.Int("seeds", len(seeds))))
	defer span.End()

	out, err := t.inner.Activate(ctx, seeds, steps, decayFactor, threshold)
	if err != nil {
		span.RecordError(err)
	}
	return out, err
}

func (t *TracedEngine) Snapshot(ctx context.Context) (string, error) {
	ctx, span := t.tracer.Start(ctx, "engine.Snapshot")
	defer span.End()

	text, err := t.inner.Snapshot(ctx)
	if err != nil {
		span.RecordError(err)
	}
	return text, err
}

func (t *TracedEngine) AdaptPolicy(ctx context.Context) (string, error) {
	ctx, span := t.tracer.Start(ctx, "engine.AdaptPolicy")
	defer span.End()

	id, err := t.inner.AdaptPolicy(ctx)
	if err != nil {
		span.RecordError(err)
	}
	return id, err
}

func (t *TracedEngine) Close(ctx context.Context) error {
	ctx, span := t.tracer.Start(ctx, "engine.Close")
	defer span.End()
	return t.inner.Close(ctx)
}

// Remember, GetItem, Associate, Trace, Feedback, Stats, Summarize,
// FindConvergentPatterns, and the policy accessors don't take a context
// in the engine's API, so TracedEngine exposes the inner Engine itself
// for callers that need them rather than duplicating every passthrough.
func (t *TracedEngine) Unwrap() *engine.Engine { return t.inner }
