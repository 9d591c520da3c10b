// Package manifest renders a compact, cached textual summary of the
// associative memory graph: stats, detected communities, temporal
// layers, key nodes, topology, and recent activity.
package manifest

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"mnemo/internal/graph"
)

// Params are the manifest tunables named in §6.
type Params struct {
	ClusterPercentile float64
	NeighborTopK      int
	TopKeywords       int
	KeyNodeCount      int
	RecentActivity    int
	CacheTTL          time.Duration
}

func (p Params) withDefaults() Params {
	if p.ClusterPercentile <= 0 {
		p.ClusterPercentile = 0.6
	}
	if p.NeighborTopK <= 0 {
		p.NeighborTopK = 3
	}
	if p.TopKeywords <= 0 {
		p.TopKeywords = 5
	}
	if p.KeyNodeCount <= 0 {
		p.KeyNodeCount = 5
	}
	if p.RecentActivity <= 0 {
		p.RecentActivity = 5
	}
	if p.CacheTTL <= 0 {
		p.CacheTTL = 30 * time.Second
	}
	return p
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "to": true, "in": true,
	"on": true, "and": true, "or": true, "is": true, "are": true, "was": true,
	"were": true, "it": true, "for": true, "with": true, "at": true, "by": true,
	"this": true, "that": true, "be": true, "as": true, "about": true,
}

// Generate renders the full manifest text for the current state. Callers
// wanting the 30s TTL caching behavior should go through Cache.Get
// instead of calling this directly on every request.
func Generate(core *graph.Core, p Params, now time.Time) string {
	p = p.withDefaults()
	state := core.State

	ids := make([]string, 0, len(state.Items))
	for id := range state.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	communities := DetectCommunities(ids, state.Edges, p.ClusterPercentile, p.NeighborTopK)
	topology := ComputeTopology(ids, state.Edges, communities)

	var b strings.Builder

	writeStatsLine(&b, state, ids)
	b.WriteString("\n")
	writeThemes(&b, core, communities, p.TopKeywords)
	b.WriteString("\n")
	writeTemporalLayers(&b, core, ids, now)
	b.WriteString("\n")
	writeKeyNodes(&b, core, ids, now, p.KeyNodeCount)
	b.WriteString("\n")
	writeGraphTopology(&b, topology)
	b.WriteString("\n")
	writeRecentActivity(&b, state, p.RecentActivity)

	return b.String()
}

func writeStatsLine(b *strings.Builder, state *graph.State, ids []string) {
	avgDegree := 0.0
	if len(ids) > 0 {
		avgDegree = 2 * float64(len(state.Edges)) / float64(len(ids))
	}
	fmt.Fprintf(b, "Stats: items=%d edges=%d avgDegree=%.2f energy=%.2f threshold=%.2f\n",
		len(ids), len(state.Edges), avgDegree, state.Energy, state.Threshold)
}

func writeThemes(b *strings.Builder, core *graph.Core, communities [][]string, topKeywords int) {
	b.WriteString("Themes:\n")
	now := core.Clock.Now()
	for i, members := range communities {
		keywords := communityKeywords(core, members, now, topKeywords)
		label := "misc"
		if len(keywords) > 0 {
			label = keywords[0]
		}
		fmt.Fprintf(b, "%d. %s (%d items): %s\n", i+1, label, len(members), strings.Join(keywords, ", "))
	}
}

// CommunityKeywords exposes the same weighted term-frequency keyword
// extraction Generate uses for its Themes section, for callers (such as
// find-convergent-patterns) that want structured community data without
// rendering the full manifest text.
func CommunityKeywords(core *graph.Core, members []string, now time.Time, topN int) []string {
	return communityKeywords(core, members, now, topN)
}

func communityKeywords(core *graph.Core, members []string, now time.Time, topN int) []string {
	freq := make(map[string]float64)
	for _, id := range members {
		item, ok := core.State.Items[id]
		if !ok {
			continue
		}
		weight := float64(item.AccessCount) + 1 + graph.Recency(item.LastAccessedAt, now) + 0.5*item.Importance
		for _, w := range strings.Fields(strings.ToLower(item.Text)) {
			w = strings.Trim(w, ".,!?;:\"'()[]{}")
			if w == "" || stopWords[w] {
				continue
			}
			freq[w] += weight
		}
	}
	type kv struct {
		word  string
		score float64
	}
	kvs := make([]kv, 0, len(freq))
	for w, s := range freq {
		kvs = append(kvs, kv{w, s})
	}
	sort.Slice(kvs, func(i, j int) bool {
		if kvs[i].score != kvs[j].score {
			return kvs[i].score > kvs[j].score
		}
		return kvs[i].word < kvs[j].word
	})
	if len(kvs) > topN {
		kvs = kvs[:topN]
	}
	out := make([]string, len(kvs))
	for i, k := range kvs {
		out[i] = k.word
	}
	return out
}

func writeTemporalLayers(b *strings.Builder, core *graph.Core, ids []string, now time.Time) {
	var emerging, active, stable, decaying int
	for _, id := range ids {
		item := core.State.Items[id]
		switch {
		case now.Sub(item.CreatedAt) <= time.Hour:
			emerging++
		case !item.LastAccessedAt.IsZero() && now.Sub(item.LastAccessedAt) <= 24*time.Hour:
			active++
		case now.Sub(item.UpdatedAt) > 7*24*time.Hour &&
			(item.LastAccessedAt.IsZero() || now.Sub(item.LastAccessedAt) > 7*24*time.Hour):
			stable++
		case !item.LastAccessedAt.IsZero() && now.Sub(item.LastAccessedAt) > 10*24*time.Hour && item.Energy < 0.05:
			decaying++
		}
	}
	fmt.Fprintf(b, "Temporal: emerging=%d active=%d stable=%d decaying=%d\n", emerging, active, stable, decaying)
}

func writeKeyNodes(b *strings.Builder, core *graph.Core, ids []string, now time.Time, count int) {
	b.WriteString("Key nodes:\n")
	if len(ids) == 0 {
		return
	}

	degree := make(map[string]int, len(ids))
	for _, e := range core.State.Edges {
		degree[e.From]++
		degree[e.To]++
	}

	maxImp, maxAcc, maxDeg := 0.0, 0.0, 0
	for _, id := range ids {
		item := core.State.Items[id]
		if item.Importance > maxImp {
			maxImp = item.Importance
		}
		if float64(item.AccessCount) > maxAcc {
			maxAcc = float64(item.AccessCount)
		}
		if degree[id] > maxDeg {
			maxDeg = degree[id]
		}
	}
	if maxImp == 0 {
		maxImp = 1
	}
	if maxAcc == 0 {
		maxAcc = 1
	}
	if maxDeg == 0 {
		maxDeg = 1
	}

	type scored struct {
		id    string
		score float64
	}
	scoredNodes := make([]scored, 0, len(ids))
	for _, id := range ids {
		item := core.State.Items[id]
		impR := item.Importance / maxImp
		accR := float64(item.AccessCount) / maxAcc
		degR := float64(degree[id]) / float64(maxDeg)
		s := 0.5*impR + 0.3*accR + 0.2*degR
		scoredNodes = append(scoredNodes, scored{id, s})
	}
	sort.SliceStable(scoredNodes, func(i, j int) bool { return scoredNodes[i].score > scoredNodes[j].score })
	if len(scoredNodes) > count {
		scoredNodes = scoredNodes[:count]
	}
	for _, s := range scoredNodes {
		item := core.State.Items[s.id]
		fmt.Fprintf(b, "- %s (%.2f): %s\n", s.id, s.score, truncate(item.Text, 40))
	}
}

func writeGraphTopology(b *strings.Builder, t Topology) {
	fmt.Fprintf(b, "Graph: density=%.3f clustering=%.3f", t.Density, t.ClusteringCoefficient)
	if t.Bridge != nil {
		fmt.Fprintf(b, " bridge=%s->%s(%.2f)", t.Bridge.From, t.Bridge.To, t.Bridge.Weight)
	}
	b.WriteString("\n")
}

func writeRecentActivity(b *strings.Builder, state *graph.State, count int) {
	b.WriteString("Recent activity:\n")
	hist := state.History
	if len(hist) > count {
		hist = hist[len(hist)-count:]
	}
	for i := len(hist) - 1; i >= 0; i-- {
		h := hist[i]
		fmt.Fprintf(b, "- %s: %s\n", h.Op, formatDetails(h.Details))
	}
}

func formatDetails(details map[string]any) string {
	if len(details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, details[k])
	}
	return strings.Join(parts, " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
