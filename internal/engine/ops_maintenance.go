package engine

import (
	"context"

	"mnemo/internal/activation"
	"mnemo/internal/decay"
	"mnemo/internal/store"
)

// DecayNow applies temporal decay to every item's energy and every
// edge's weight (§4.7). halfLifeDays overrides the configured base
// half-life when non-zero, matching decay!'s optional argument.
func (e *Engine) DecayNow(ctx context.Context, halfLifeDays float64) decay.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.params.Decay
	if halfLifeDays > 0 {
		p.BaseHalfLifeDays = halfLifeDays
	}
	stats := decay.Decay(ctx, e.core, e.ev, e.core.State.Policy, p, e.now())
	e.invalidateManifest()
	return stats
}

// Consolidate expires exhausted items and condenses qualifying
// co-activation clusters into reflection items (§4.7).
func (e *Engine) Consolidate() decay.ConsolidateStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := decay.Consolidate(e.core, e.params.Consolidate, e.now())
	e.invalidateManifest()
	return stats
}

// Activate exposes spreading activation directly for introspection and
// debugging (§4.4), independent of a full Recall.
func (e *Engine) Activate(ctx context.Context, seeds map[string]float64, steps int, decayFactor, threshold float64) (map[string]float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return activation.Run(ctx, e.core.State.Edges, seeds, activation.Params{Steps: steps, Decay: decayFactor, Threshold: threshold})
}

// Snapshot renders the canonical snapshot text and persists it through
// the sequential save queue. The text is always returned, even if the
// save fails, so a caller can retry persistence later without losing the
// in-memory state's representation (§7: storage errors are surfaced, not
// rolled back).
//
// The read lock is held for the full round-trip, including the store
// call: stores such as SQLiteStore.Save range over state.Items directly
// (to rebuild the FTS index) with no locking of their own, so releasing
// the lock before that range runs would let a concurrent Remember,
// Associate, or DecayNow mutate the same map mid-iteration (§5). A
// blocked writer during the I/O round-trip is the price of that
// guarantee.
func (e *Engine) Snapshot(ctx context.Context) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	text := store.Marshal(e.core.State)
	if err := e.saveNow(ctx, e.core.State, text); err != nil {
		return text, err
	}
	return text, nil
}
