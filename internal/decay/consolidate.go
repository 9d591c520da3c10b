package decay

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"mnemo/internal/graph"
)

// ConsolidateParams are the clustering tunables named in §6.
type ConsolidateParams struct {
	ClusterEdgeMinWeight float64
	ClusterMinSize       int
	ClusterKeepRecent    int
	EventAgeThreshold    time.Duration // default 30 days
}

// ConsolidateStats summarizes one consolidation pass.
type ConsolidateStats struct {
	ExpiredItems       int
	ReflectionsCreated int
	ClusteredRemoved   int
}

const (
	summarizeTopKeywords = 8
	summarizeMaxSnippets = 5
	snippetRunes         = 60
)

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "to": true, "in": true,
	"on": true, "and": true, "or": true, "is": true, "are": true, "was": true,
	"were": true, "it": true, "for": true, "with": true, "at": true, "by": true,
	"this": true, "that": true, "be": true, "as": true, "about": true,
}

// Consolidate expires exhausted items, discovers clusters of old
// co-activated events, and condenses each qualifying cluster into a
// reflection item, keeping only the most recent raw members.
func Consolidate(core *graph.Core, p ConsolidateParams, now time.Time) ConsolidateStats {
	var stats ConsolidateStats

	expireTTLItems(core, now, &stats)

	ageThreshold := p.EventAgeThreshold
	if ageThreshold <= 0 {
		ageThreshold = 30 * 24 * time.Hour
	}

	eligible := make(map[string]bool)
	for id, item := range core.State.Items {
		if item.Kind == graph.KindEvent && now.Sub(item.CreatedAt) >= ageThreshold {
			eligible[id] = true
		}
	}

	adj := make(map[string]map[string]bool)
	for _, e := range core.State.Edges {
		if e.Relation != graph.RelationCoActivated || e.Weight < p.ClusterEdgeMinWeight {
			continue
		}
		if !eligible[e.From] || !eligible[e.To] {
			continue
		}
		if adj[e.From] == nil {
			adj[e.From] = make(map[string]bool)
		}
		if adj[e.To] == nil {
			adj[e.To] = make(map[string]bool)
		}
		adj[e.From][e.To] = true
		adj[e.To][e.From] = true
	}

	visited := make(map[string]bool)
	var components [][]string
	ids := make([]string, 0, len(eligible))
	for id := range eligible {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if visited[id] {
			continue
		}
		comp := bfsComponent(id, adj, visited)
		if len(comp) > 1 {
			components = append(components, comp)
		}
	}

	minSize := p.ClusterMinSize
	if minSize <= 0 {
		minSize = 3
	}
	keepRecent := p.ClusterKeepRecent
	if keepRecent < 0 {
		keepRecent = 0
	}

	for _, comp := range components {
		if len(comp) < minSize {
			continue
		}
		reflection := buildReflection(core, comp)
		item, err := core.Remember(graph.RememberInput{
			Text:       reflection,
			Kind:       graph.KindReflection,
			Importance: averageImportance(core, comp),
		})
		if err != nil {
			continue
		}
		stats.ReflectionsCreated++

		for _, member := range comp {
			_, _ = core.Associate(item.ID, member, graph.RelationSummarizes, 0.8)
			_, _ = core.Associate(member, item.ID, graph.RelationSummarizes, 0.8)
		}

		sort.Slice(comp, func(i, j int) bool {
			return core.State.Items[comp[i]].CreatedAt.After(core.State.Items[comp[j]].CreatedAt)
		})
		for i, member := range comp {
			if i < keepRecent {
				continue
			}
			core.Remove(member)
			stats.ClusteredRemoved++
		}
	}

	core.State.PushHistory(graph.HistoryEntry{T: now, Op: "consolidate", Details: map[string]any{
		"expiredItems":       stats.ExpiredItems,
		"reflectionsCreated": stats.ReflectionsCreated,
		"clusteredRemoved":   stats.ClusteredRemoved,
	}})

	return stats
}

func expireTTLItems(core *graph.Core, now time.Time, stats *ConsolidateStats) {
	var toExpire []string
	for id, item := range core.State.Items {
		if item.TTL == "" {
			continue
		}
		d, err := graph.ParseDuration(item.TTL)
		if err != nil {
			continue
		}
		if now.Sub(item.CreatedAt) >= d && item.Energy < 0.05 {
			toExpire = append(toExpire, id)
		}
	}
	for _, id := range toExpire {
		core.Remove(id)
		stats.ExpiredItems++
	}
}

func bfsComponent(start string, adj map[string]map[string]bool, visited map[string]bool) []string {
	queue := []string{start}
	visited[start] = true
	var comp []string
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		comp = append(comp, n)
		neighbors := make([]string, 0, len(adj[n]))
		for nb := range adj[n] {
			neighbors = append(neighbors, nb)
		}
		sort.Strings(neighbors)
		for _, nb := range neighbors {
			if !visited[nb] {
				visited[nb] = true
				queue = append(queue, nb)
			}
		}
	}
	return comp
}

func averageImportance(core *graph.Core, ids []string) float64 {
	if len(ids) == 0 {
		return 0.5
	}
	var sum float64
	for _, id := range ids {
		sum += core.State.Items[id].Importance
	}
	return graph.Clamp01(sum / float64(len(ids)))
}

func buildReflection(core *graph.Core, ids []string) string {
	freq := make(map[string]int)
	var snippets []string
	for _, id := range ids {
		item := core.State.Items[id]
		for _, w := range strings.Fields(strings.ToLower(item.Text)) {
			w = strings.Trim(w, ".,!?;:\"'()[]{}")
			if w == "" || stopWords[w] {
				continue
			}
			freq[w]++
		}
		if len(snippets) < summarizeMaxSnippets {
			snippets = append(snippets, truncateRunes(item.Text, snippetRunes))
		}
	}

	type kv struct {
		word  string
		count int
	}
	kvs := make([]kv, 0, len(freq))
	for w, c := range freq {
		kvs = append(kvs, kv{w, c})
	}
	sort.Slice(kvs, func(i, j int) bool {
		if kvs[i].count != kvs[j].count {
			return kvs[i].count > kvs[j].count
		}
		return kvs[i].word < kvs[j].word
	})
	if len(kvs) > summarizeTopKeywords {
		kvs = kvs[:summarizeTopKeywords]
	}
	keywords := make([]string, len(kvs))
	for i, k := range kvs {
		keywords[i] = k.word
	}

	return fmt.Sprintf("Reflection on %s: %s", strings.Join(keywords, ", "), strings.Join(snippets, "; "))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
