// Package decay implements temporal decay of item energy and edge
// weight, and consolidation: TTL expiry, event clustering, and
// reflection summaries.
package decay

import (
	"context"
	"math"
	"time"

	"mnemo/internal/graph"
	"mnemo/internal/policy"
)

// Params are the decay tunables named in §6.
type Params struct {
	BaseHalfLifeDays float64 // default 7; caller may override per call (decay!'s argument)
	EdgeWeightFloor  float64 // default 0.01
}

// Stats summarizes one decay pass, recorded in history for introspection.
type Stats struct {
	DecayedItems  int
	PrunedEdges   int
}

const msPerDay = 24 * 60 * 60 * 1000

func fallbackScale(success, fail int) float64 {
	return 0.5 + 1.5*float64(success)/(float64(success+fail)+1)
}

func clampScale(x float64) float64 {
	if x < 0.1 {
		return 0.1
	}
	if x > 10 {
		return 10
	}
	return x
}

// Decay applies decay to every item's energy and every edge's weight,
// then recomputes process-level energy as the mean of item energies.
// Δt for an item is measured against its own DecayedAt timestamp (falling
// back to CreatedAt before the first pass), which this function advances
// to now after applying decay, so repeated decay! calls compound
// correctly instead of re-decaying from a stale reference point. Edge Δt
// is measured the same way against LastReinforcedAt. DecayedAt is kept
// separate from UpdatedAt, which §3 reserves for remember/feedback
// content mutations and which manifest.go's temporal layers key off of.
func Decay(ctx context.Context, core *graph.Core, ev *policy.Evaluator, pol graph.Policy, p Params, now time.Time) Stats {
	baseDays := p.BaseHalfLifeDays
	if baseDays <= 0 {
		baseDays = 7
	}
	baseMs := baseDays * msPerDay

	var stats Stats

	for _, item := range core.State.Items {
		lastTouch := item.DecayedAt
		if lastTouch.IsZero() {
			lastTouch = item.CreatedAt
		}
		dtMs := float64(now.Sub(lastTouch).Milliseconds())
		if dtMs < 0 {
			dtMs = 0
		}

		scale := fallbackScale(item.Success, item.Fail)
		if pol.DecayFn != "" {
			if s, err := ev.Decay(ctx, pol.DecayFn, item.Success, item.Fail, item.Energy, item.Importance, dtMs, baseMs); err == nil {
				scale = s
			}
		}
		scale = clampScale(scale)

		halfLife := baseMs * scale
		if halfLife <= 0 {
			halfLife = baseMs
		}

		factor := math.Exp(-math.Ln2 * dtMs / halfLife)
		newEnergy := graph.Clamp01(item.Energy * factor)
		if newEnergy != item.Energy {
			stats.DecayedItems++
		}
		item.Energy = newEnergy
		item.DecayedAt = now
	}

	for _, e := range core.State.Edges {
		dtMs := float64(now.Sub(e.LastReinforcedAt).Milliseconds())
		if dtMs < 0 {
			dtMs = 0
		}
		factor := math.Exp(-math.Ln2 * dtMs / baseMs)
		e.Weight = graph.Clamp01(e.Weight * factor)
		e.LastReinforcedAt = now
	}

	floor := p.EdgeWeightFloor
	if floor <= 0 {
		floor = 0.01
	}
	stats.PrunedEdges = core.PruneEdgesBelow(floor)

	core.State.RecomputeEnergy()

	now2 := now
	core.State.PushHistory(graph.HistoryEntry{T: now2, Op: "decay", Details: map[string]any{
		"decayedItems": stats.DecayedItems,
		"prunedEdges":  stats.PrunedEdges,
	}})

	return stats
}
