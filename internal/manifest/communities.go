package manifest

import (
	"sort"

	"mnemo/internal/graph"
)

// undirectedWeights collapses the two directed co-activated edges that
// represent one undirected relationship into a single max weight per
// unordered pair.
func undirectedWeights(edges []*graph.Edge) map[[2]string]float64 {
	out := make(map[[2]string]float64)
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

func pairKey(a, b string) [2]string {
	if a < b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}

// quantile returns the value at the given percentile (0..1) of a sorted
// copy of xs using linear interpolation; an empty input returns 0.
func quantile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := p * float64(len(sorted)-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// sparsifiedAdjacency keeps, per node, only edges at or above the
// percentile-th quantile of positive weights, capped to its top-K
// strongest neighbors.
func sparsifiedAdjacency(weights map[[2]string]float64, percentile float64, topK int) map[string]map[string]float64 {
	var positive []float64
	for _, w := range weights {
		if w > 0 {
			positive = append(positive, w)
		}
	}
	threshold := quantile(positive, percentile)

	type nbr struct {
		id string
		w  float64
	}
	byNode := make(map[string][]nbr)
	for pair, w := range weights {
		if w < threshold {
			continue
		}
		byNode[pair[0]] = append(byNode[pair[0]], nbr{pair[1], w})
		byNode[pair[1]] = append(byNode[pair[1]], nbr{pair[0], w})
	}

	adj := make(map[string]map[string]float64, len(byNode))
	for id, nbrs := range byNode {
		sort.Slice(nbrs, func(i, j int) bool {
			if nbrs[i].w != nbrs[j].w {
				return nbrs[i].w > nbrs[j].w
			}
			return nbrs[i].id < nbrs[j].id
		})
		if topK > 0 && len(nbrs) > topK {
			nbrs = nbrs[:topK]
		}
		m := make(map[string]float64, len(nbrs))
		for _, n := range nbrs {
			m[n.id] = n.w
		}
		adj[id] = m
	}
	return adj
}

// labelPropagate runs asynchronous weighted label propagation over adj
// (nodes visited in sorted id order, each new label visible at once),
// seeded with every known node id (so isolated nodes form singleton
// communities), for up to 10 rounds or until stable.
func labelPropagate(nodeIDs []string, adj map[string]map[string]float64) map[string]string {
	label := make(map[string]string, len(nodeIDs))
	for _, id := range nodeIDs {
		label[id] = id
	}

	ids := append([]string(nil), nodeIDs...)
	sort.Strings(ids)

	for round := 0; round < 10; round++ {
		changed := false
		for _, id := range ids {
			neighbors := adj[id]
			if len(neighbors) == 0 {
				continue
			}
			scores := make(map[string]float64)
			for nb, w := range neighbors {
				scores[label[nb]] += w
			}
			best := label[id]
			bestScore := scores[best]
			var candidates []string
			for l := range scores {
				candidates = append(candidates, l)
			}
			sort.Strings(candidates)
			for _, l := range candidates {
				if scores[l] > bestScore {
					best = l
					bestScore = scores[l]
				}
			}
			if best != label[id] {
				label[id] = best
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return label
}

// Community is one detected cluster of items.
type Community struct {
	Label    string
	Members  []string
	Keywords []string
}

// DetectCommunities sparsifies the co-activation graph, runs label
// propagation, and merges components smaller than 3 into the most
// strongly connected larger community (measured over the full,
// unsparsified weight map). A small component with no edge to any larger
// community is kept as a community of its own.
func DetectCommunities(nodeIDs []string, edges []*graph.Edge, percentile float64, topK int) [][]string {
	weights := undirectedWeights(edges)
	adj := sparsifiedAdjacency(weights, percentile, topK)
	labels := labelPropagate(nodeIDs, adj)

	grouped := make(map[string][]string)
	for _, id := range nodeIDs {
		l := labels[id]
		grouped[l] = append(grouped[l], id)
	}

	var groupLabels []string
	for l := range grouped {
		groupLabels = append(groupLabels, l)
	}
	sort.Strings(groupLabels)

	const minSize = 3
	var big, tiny []string
	for _, l := range groupLabels {
		if len(grouped[l]) >= minSize {
			big = append(big, l)
		} else {
			tiny = append(tiny, l)
		}
	}

	for _, t := range tiny {
		target := mostConnectedCommunity(grouped[t], grouped, big, weights)
		if target == "" {
			big = append(big, t)
			continue
		}
		grouped[target] = append(grouped[target], grouped[t]...)
		delete(grouped, t)
	}

	var out [][]string
	finalLabels := big
	if len(finalLabels) == 0 {
		finalLabels = groupLabels
	}
	sort.Strings(finalLabels)
	for _, l := range finalLabels {
		if members, ok := grouped[l]; ok {
			sort.Strings(members)
			out = append(out, members)
		}
	}
	return out
}

func mostConnectedCommunity(members []string, grouped map[string][]string, candidates []string, weights map[[2]string]float64) string {
	best := ""
	var bestWeight float64
	for _, c := range candidates {
		var total float64
		for _, m := range members {
			for _, other := range grouped[c] {
				total += weights[pairKey(m, other)]
			}
		}
		if total > bestWeight {
			bestWeight = total
			best = c
		}
	}
	return best
}
