// Package rank implements the scoring pipeline that composes
// user-replaceable policy lambdas with the built-in retrieval features
// (activation, recency, importance, access, success, fail, hour, day)
// into a per-item score, plus tail-region exploration.
package rank

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"mnemo/internal/graph"
	"mnemo/internal/policy"
)

// Candidate is one item under consideration during a recall.
type Candidate struct {
	ID         string
	Activation float64
	Recency    float64
	Importance float64
	Access     float64
	Success    float64
	Fail       float64
	HourNorm   float64
	DayNorm    float64
}

// Result is one ranked candidate.
type Result struct {
	ID    string
	Score float64
}

// StrongActivationThreshold and StrongActivationFloor implement the
// strong-activation rule of §4.5: when the maximum activation across the
// candidate set reaches the threshold, any individual candidate above the
// floor is scored by activation alone instead of the combined formula.
const (
	StrongActivationThreshold = 0.1
	StrongActivationFloor     = 0.05
)

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func defaultScore(c Candidate) float64 {
	return 0.6*c.Activation + 0.25*c.Recency + 0.15*c.Importance
}

func average(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Score computes the per-candidate score given the active policy. It
// never errors: evaluator failures fall back to the documented defaults.
func Score(ctx context.Context, c Candidate, maxActivation float64, pol graph.Policy, ev *policy.Evaluator) float64 {
	if maxActivation >= StrongActivationThreshold && c.Activation > StrongActivationFloor {
		return c.Activation * 10
	}

	score := combinedScore(ctx, c, pol, ev)
	if !finite(score) {
		score = 0
	}
	return score
}

func combinedScore(ctx context.Context, c Candidate, pol graph.Policy, ev *policy.Evaluator) float64 {
	args := policy.RecallScoreArgs{
		Activation: c.Activation, Recency: c.Recency, Importance: c.Importance, Access: c.Access,
		Success: c.Success, Fail: c.Fail, HourNorm: c.HourNorm, DayNorm: c.DayNorm,
	}

	if len(pol.RecallScoreFns) > 0 {
		components := make([]float64, 0, len(pol.RecallScoreFns))
		for _, fn := range pol.RecallScoreFns {
			v, err := ev.RecallScore(ctx, fn, args)
			if err != nil || !finite(v) {
				v = 0
			}
			components = append(components, v)
		}
		if pol.RecallCombinerFn != "" {
			combined, err := ev.RecallCombiner(ctx, pol.RecallCombinerFn, components)
			if err == nil && finite(combined) {
				return combined
			}
		}
		return average(components)
	}

	if pol.RecallScoreFn != "" {
		v, err := ev.RecallScore(ctx, pol.RecallScoreFn, args)
		if err != nil || !finite(v) {
			// Law (g): an evaluator failure falls back to the built-in score.
			return defaultScore(c)
		}
		return v
	}

	return defaultScore(c)
}

// Rank scores every candidate (total, per law ii), sorts descending with
// ties preserving insertion order (law f), takes the top limit, and then
// considers exploration over the remaining tail region.
func Rank(ctx context.Context, candidates []Candidate, pol graph.Policy, ev *policy.Evaluator, limit int, explorationEpsilon float64, rng *rand.Rand) []Result {
	if limit < 0 {
		limit = 0
	}

	var maxActivation float64
	for _, c := range candidates {
		if c.Activation > maxActivation {
			maxActivation = c.Activation
		}
	}

	scored := make([]Result, len(candidates))
	for i, c := range candidates {
		scored[i] = Result{ID: c.ID, Score: Score(ctx, c, maxActivation, pol, ev)}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if limit > len(scored) {
		limit = len(scored)
	}
	top := append([]Result(nil), scored[:limit]...)
	tail := scored[limit:]

	byID := make(map[string]Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	if len(top) == 0 || len(tail) == 0 {
		return top
	}

	if pol.ExplorationFn != "" {
		idx, err := ev.Exploration(ctx, pol.ExplorationFn, buildExplorationArgs(limit, tail, byID))
		if err == nil && idx >= 0 && idx < len(tail) {
			top[len(top)-1] = tail[idx]
			return top
		}
	}

	if rng != nil && explorationEpsilon > 0 && rng.Float64() < explorationEpsilon {
		best := heuristicPick(tail, byID)
		if best >= 0 {
			top[len(top)-1] = tail[best]
		}
	}

	return top
}

func buildExplorationArgs(limit int, tail []Result, byID map[string]Candidate) policy.ExplorationArgs {
	a := policy.ExplorationArgs{Limit: limit, TailN: len(tail)}
	for _, r := range tail {
		c := byID[r.ID]
		a.Acts = append(a.Acts, c.Activation)
		a.Recs = append(a.Recs, c.Recency)
		a.Imps = append(a.Imps, c.Importance)
		a.Accs = append(a.Accs, c.Access)
		a.Succ = append(a.Succ, c.Success)
		a.Fails = append(a.Fails, c.Fail)
		a.Hours = append(a.Hours, c.HourNorm)
		a.Days = append(a.Days, c.DayNorm)
	}
	return a
}

// heuristicPick implements the fallback exploration heuristic:
// (1/(1+access)) * (0.5 + success/(success+fail+1)) * (0.5 + recency).
func heuristicPick(tail []Result, byID map[string]Candidate) int {
	best := -1
	var bestScore float64
	for i, r := range tail {
		c := byID[r.ID]
		h := (1 / (1 + c.Access)) * (0.5 + c.Success/(c.Success+c.Fail+1)) * (0.5 + c.Recency)
		if best == -1 || h > bestScore {
			best = i
			bestScore = h
		}
	}
	return best
}
