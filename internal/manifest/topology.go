package manifest

import (
	"sort"

	"mnemo/internal/graph"
)

// Topology holds the summary statistics rendered in the manifest's Graph
// section.
type Topology struct {
	Density              float64
	ClusteringCoefficient float64
	Bridge               *Bridge
}

// Bridge is the single strongest edge connecting two different
// communities.
type Bridge struct {
	From, To string
	Weight   float64
}

const clusteringSampleSize = 50

// ComputeTopology collapses every edge (any relation) to its undirected
// unique pairs for density, estimates a clustering coefficient over a
// bounded, deterministic sample of nodes, and finds the single strongest
// edge that crosses a community boundary.
func ComputeTopology(nodeIDs []string, edges []*graph.Edge, communities [][]string) Topology {
	uniquePairs := make(map[[2]string]bool)
	adjacency := make(map[string]map[string]bool)
	for _, e := range edges {
		k := pairKey(e.From, e.To)
		uniquePairs[k] = true
		if adjacency[e.From] == nil {
			adjacency[e.From] = make(map[string]bool)
		}
		if adjacency[e.To] == nil {
			adjacency[e.To] = make(map[string]bool)
		}
		adjacency[e.From][e.To] = true
		adjacency[e.To][e.From] = true
	}

	n := len(nodeIDs)
	var density float64
	if n > 1 {
		maxPairs := float64(n*(n-1)) / 2
		density = float64(len(uniquePairs)) / maxPairs
	}

	sample := append([]string(nil), nodeIDs...)
	sort.Strings(sample)
	if len(sample) > clusteringSampleSize {
		sample = sample[:clusteringSampleSize]
	}
	var coeffSum float64
	var coeffCount int
	for _, id := range sample {
		neighbors := make([]string, 0, len(adjacency[id]))
		for nb := range adjacency[id] {
			neighbors = append(neighbors, nb)
		}
		if len(neighbors) < 2 {
			continue
		}
		var links int
		for i := 0; i < len(neighbors); i++ {
			for j := i + 1; j < len(neighbors); j++ {
				if adjacency[neighbors[i]][neighbors[j]] {
					links++
				}
			}
		}
		possible := len(neighbors) * (len(neighbors) - 1) / 2
		coeffSum += float64(links) / float64(possible)
		coeffCount++
	}
	var clustering float64
	if coeffCount > 0 {
		clustering = coeffSum / float64(coeffCount)
	}

	memberCommunity := make(map[string]int, n)
	for ci, members := range communities {
		for _, m := range members {
			memberCommunity[m] = ci
		}
	}

	var bridge *Bridge
	for _, e := range edges {
		if memberCommunity[e.From] == memberCommunity[e.To] {
			continue
		}
		if bridge == nil || e.Weight > bridge.Weight {
			bridge = &Bridge{From: e.From, To: e.To, Weight: e.Weight}
		}
	}

	return Topology{Density: density, ClusteringCoefficient: clustering, Bridge: bridge}
}
