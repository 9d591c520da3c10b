package engine

import (
	"sort"

	"mnemo/internal/clock"
	"mnemo/internal/graph"
	"mnemo/internal/manifest"
)

// Stats is a one-shot structural summary of the store.
type Stats struct {
	Items          int
	Edges          int
	Sessions       int
	HistoryEntries int
	PolicyVersions int
	Energy         float64
	Threshold      float64
}

// Stats reports item/edge/session counts and process-level scalars.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := e.core.State
	return Stats{
		Items:          len(s.Items),
		Edges:          len(s.Edges),
		Sessions:       len(s.Sessions),
		HistoryEntries: len(s.History),
		PolicyVersions: len(s.PolicyVersions),
		Energy:         s.Energy,
		Threshold:      s.Threshold,
	}
}

// Summarize returns the compact textual manifest (§4.8), served from the
// 30s-TTL cache for the default (global) scope. A non-empty scope bypasses
// the cache and renders a manifest over just that scope's items and the
// edges between them, since the cache only ever memoizes the whole-store
// view.
func (e *Engine) Summarize(scope string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	now := e.now()
	if scope == "" {
		return e.cache.Get(e.core, now)
	}
	return manifest.Generate(scopedCore(e.core, scope), e.params.Manifest, now)
}

// scopedCore builds a throwaway Core restricted to one scope's items and
// the edges between them, for one-off scoped manifest rendering.
func scopedCore(core *graph.Core, scope string) *graph.Core {
	filtered := &graph.State{
		WorkspaceID: core.State.WorkspaceID,
		BornAt:      core.State.BornAt,
		Energy:      core.State.Energy,
		Threshold:   core.State.Threshold,
		Items:       make(map[string]*graph.Item),
		Policy:      core.State.Policy,
		History:     core.State.History,
	}
	for id, item := range core.State.Items {
		if item.Scope == scope {
			filtered.Items[id] = item
		}
	}
	for _, e := range core.State.Edges {
		if _, okFrom := filtered.Items[e.From]; !okFrom {
			continue
		}
		if _, okTo := filtered.Items[e.To]; !okTo {
			continue
		}
		filtered.Edges = append(filtered.Edges, e)
	}
	return graph.NewCore(filtered, clock.NewFixed(core.Clock.Now()))
}

// Pattern is one convergent cluster of items discovered over the
// co-activation graph, independent of the rendered manifest.
type Pattern struct {
	Members  []string
	Keywords []string
}

// FindConvergentPatterns runs the manifest generator's community
// detection directly and returns every community with at least minSize
// members as structured data, for callers that want to act on clusters
// programmatically rather than read them out of the manifest text.
func (e *Engine) FindConvergentPatterns(minSize int) []Pattern {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if minSize <= 0 {
		minSize = 2
	}
	p := e.params.Manifest

	ids := make([]string, 0, len(e.core.State.Items))
	for id := range e.core.State.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	communities := manifest.DetectCommunities(ids, e.core.State.Edges, orDefault(p.ClusterPercentile, 0.6), orDefaultInt(p.NeighborTopK, 3))

	now := e.now()
	var out []Pattern
	for _, members := range communities {
		if len(members) < minSize {
			continue
		}
		out = append(out, Pattern{
			Members:  members,
			Keywords: manifest.CommunityKeywords(e.core, members, now, orDefaultInt(p.TopKeywords, 8)),
		})
	}
	return out
}

func orDefault(v, d float64) float64 {
	if v <= 0 {
		return d
	}
	return v
}

func orDefaultInt(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}
