// Package activation implements spreading activation: iterative
// bidirectional propagation of activation over weighted edges with decay
// and a cutoff threshold.
package activation

import (
	"context"

	mnemoerrors "mnemo/internal/errors"
	"mnemo/internal/graph"
)

// Params controls one spreading-activation run.
type Params struct {
	Steps     int
	Decay     float64
	Threshold float64
}

// Run computes an activation map over item ids given seed activations and
// the edge list, scanning each edge in both directions (undirected
// semantics) for Steps iterations. Seeds are preserved as lower bounds on
// the first step; after every step, entries below Threshold are dropped.
// Missing edge endpoints are skipped rather than erroring. Cancellation is
// cooperative via ctx, checked once per step.
func Run(ctx context.Context, edges []*graph.Edge, seeds map[string]float64, p Params) (map[string]float64, error) {
	if p.Steps < 0 {
		return nil, mnemoerrors.Activation("steps must be non-negative")
	}
	for id, a := range seeds {
		if id == "" {
			return nil, mnemoerrors.Activation("malformed seed: empty id")
		}
		if a < 0 {
			return nil, mnemoerrors.Activation("malformed seed: negative activation for %s", id)
		}
	}

	current := make(map[string]float64, len(seeds))
	for id, a := range seeds {
		current[id] = a
	}

	for step := 0; step < p.Steps; step++ {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return nil, mnemoerrors.Activation("cancelled: %v", ctx.Err())
			default:
			}
		}

		next := make(map[string]float64, len(current))
		for id, a := range current {
			next[id] += a
		}

		for _, e := range edges {
			if a, ok := current[e.From]; ok {
				next[e.To] += a * e.Weight * p.Decay
			}
			if a, ok := current[e.To]; ok {
				next[e.From] += a * e.Weight * p.Decay
			}
		}

		// Seeds act as a lower bound only on the first step's result.
		if step == 0 {
			for id, a := range seeds {
				if next[id] < a {
					next[id] = a
				}
			}
		}

		for id, a := range next {
			if a < p.Threshold {
				delete(next, id)
			}
		}

		current = next
	}

	return current, nil
}
