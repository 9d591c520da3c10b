// Package reinforce implements the co-activation reinforcer: sparse
// pairwise edge strengthening over the items returned by a recall, gated
// by shared neighbors or tag overlap and capped per-node and globally.
package reinforce

import (
	"sort"
	"strings"

	"mnemo/internal/graph"
)

// Config holds the tunables named in §6 of the specification.
type Config struct {
	CoactTopKPerNode  int
	MaxPairsPerRecall int
	ReinforceDelta    float64
}

// Stats summarizes one reinforcement pass.
type Stats struct {
	Created        int
	Reinforced     int
	AvgWeightDelta float64
}

type pairCandidate struct {
	a, b            string
	score           float64
	existingWeight  float64
}

// Reinforce builds pairs over topIDs (the returned top set of a recall,
// not the full candidate set), gates them by shared co-activation
// neighbor or non-zero tag Jaccard, ranks the survivors, and writes both
// directions of a co-activated edge for the capped selection.
func Reinforce(core *graph.Core, topIDs []string, cfg Config) Stats {
	if len(topIDs) < 2 || cfg.MaxPairsPerRecall <= 0 {
		return Stats{}
	}

	adjacency := coActivationAdjacency(core.State.Edges)
	existing := existingCoactWeights(core.State.Edges)

	var candidates []pairCandidate
	for i := 0; i < len(topIDs); i++ {
		for j := i + 1; j < len(topIDs); j++ {
			a, b := topIDs[i], topIDs[j]
			if a == b {
				continue
			}
			itemA, okA := core.State.Items[a]
			itemB, okB := core.State.Items[b]
			if !okA || !okB {
				continue
			}

			shareNeighbor := intersects(adjacency[a], adjacency[b])
			tagJ := jaccard(itemA.Tags, itemB.Tags)
			if !shareNeighbor && tagJ == 0 {
				continue
			}

			tokenJ := jaccard(tokenize(itemA.Text), tokenize(itemB.Text))
			w := existing[pairKey(a, b)]
			score := 0.6*w + 0.3*tokenJ + 0.1*tagJ
			candidates = append(candidates, pairCandidate{a: a, b: b, score: score, existingWeight: w})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	perNode := make(map[string]int)
	var selected []pairCandidate
	for _, c := range candidates {
		if len(selected) >= cfg.MaxPairsPerRecall {
			break
		}
		k := cfg.CoactTopKPerNode
		if k > 0 && (perNode[c.a] >= k || perNode[c.b] >= k) {
			continue
		}
		selected = append(selected, c)
		perNode[c.a]++
		perNode[c.b]++
	}

	var stats Stats
	var totalDelta float64
	var deltaCount int
	for _, c := range selected {
		wasExisting := c.existingWeight > 0
		if wasExisting {
			stats.Reinforced++
		} else {
			stats.Created++
		}

		for _, dir := range [2][2]string{{c.a, c.b}, {c.b, c.a}} {
			before := edgeWeight(core.State.Edges, dir[0], dir[1])
			_, _ = core.Associate(dir[0], dir[1], graph.RelationCoActivated, cfg.ReinforceDelta)
			after := edgeWeight(core.State.Edges, dir[0], dir[1])
			totalDelta += after - before
			deltaCount++
		}
	}
	if deltaCount > 0 {
		stats.AvgWeightDelta = totalDelta / float64(deltaCount)
	}
	return stats
}

func pairKey(a, b string) string {
	if a < b {
		return a + "\x00" + b
	}
	return b + "\x00" + a
}

func coActivationAdjacency(edges []*graph.Edge) map[string]map[string]bool {
	adj := make(map[string]map[string]bool)
	for _, e := range edges {
		if e.Relation != graph.RelationCoActivated {
			continue
		}
		if adj[e.From] == nil {
			adj[e.From] = make(map[string]bool)
		}
		adj[e.From][e.To] = true
	}
	return adj
}

func existingCoactWeights(edges []*graph.Edge) map[string]float64 {
	out := make(map[string]float64)
	for _, e := range edges {
		if e.Relation != graph.RelationCoActivated {
			continue
		}
		k := pairKey(e.From, e.To)
		if w := e.Weight; w > out[k] {
			out[k] = w
		}
	}
	return out
}

func edgeWeight(edges []*graph.Edge, from, to string) float64 {
	for _, e := range edges {
		if e.From == from && e.To == to && e.Relation == graph.RelationCoActivated {
			return e.Weight
		}
	}
	return 0
}

func intersects(a, b map[string]bool) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	small, big := a, b
	if len(big) < len(small) {
		small, big = big, small
	}
	for k := range small {
		if big[k] {
			return true
		}
	}
	return false
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(a))
	for _, x := range a {
		setA[x] = true
	}
	setB := make(map[string]bool, len(b))
	for _, x := range b {
		setB[x] = true
	}
	inter := 0
	for x := range setA {
		if setB[x] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()[]{}")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
