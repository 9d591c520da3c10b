package engine

import (
	"context"
	"sort"
	"strings"
	"time"

	"mnemo/internal/activation"
	"mnemo/internal/feedback"
	"mnemo/internal/graph"
	"mnemo/internal/rank"
	"mnemo/internal/reinforce"
	"mnemo/internal/store"
)

// RecallResult is one ranked item returned by Recall.
type RecallResult struct {
	ID    string
	Text  string
	Score float64
}

// Recall is the central retrieval operation: it seeds spreading
// activation from query matches, ranks the union of seeded and connected
// items, reinforces co-activation among the top set, records a session
// for later feedback attribution, and touches access bookkeeping on every
// returned item. The query="current" case (Open Question (c)) receives
// no special handling and falls through to the same matching as any
// other literal query string, as the specification resolves it.
func (e *Engine) Recall(ctx context.Context, query string, limit int, scope string) ([]RecallResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.recallTimeout())
	defer cancel()

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	state := e.core.State

	seeds := matchQuery(state, query, scope)

	activationMap, err := activation.Run(ctx, state.Edges, seeds, e.params.Activation)
	if err != nil {
		return nil, err
	}

	candidates := e.buildCandidates(state, scope, activationMap, now)
	if len(candidates) == 0 {
		return nil, nil
	}

	ranked := rank.Rank(ctx, candidates, state.Policy, e.ev, limit, e.params.ExplorationEpsilon, e.rng)

	topIDs := make([]string, len(ranked))
	for i, r := range ranked {
		topIDs[i] = r.ID
	}

	reinforce.Reinforce(e.core, topIDs, e.params.Reinforce)

	feedback.RecordSession(state, now, topIDs, activeRecallPolicyIDs(state.Policy), query, state.Energy)

	for _, id := range topIDs {
		e.core.TouchAccess(id, now)
	}

	results := make([]RecallResult, len(ranked))
	for i, r := range ranked {
		item := state.Items[r.ID]
		text := ""
		if item != nil {
			text = item.Text
		}
		results[i] = RecallResult{ID: r.ID, Text: text, Score: r.Score}
	}

	e.invalidateManifest()
	state.PushHistory(graph.HistoryEntry{T: now, Op: "recall", Details: map[string]any{"query": query, "results": len(results)}})

	return results, nil
}

func (e *Engine) recallTimeout() time.Duration {
	if e.params.RecallTimeout <= 0 {
		return 2 * time.Second
	}
	return e.params.RecallTimeout
}

func activeRecallPolicyIDs(pol graph.Policy) []string {
	var ids []string
	if pol.RecallScoreFn != "" {
		ids = append(ids, feedback.HashSource(pol.RecallScoreFn))
	}
	for _, fn := range pol.RecallScoreFns {
		ids = append(ids, feedback.HashSource(fn))
	}
	if pol.RecallCombinerFn != "" {
		ids = append(ids, feedback.HashSource(pol.RecallCombinerFn))
	}
	if pol.ExplorationFn != "" {
		ids = append(ids, feedback.HashSource(pol.ExplorationFn))
	}
	return ids
}

// matchQuery scores every (scope-filtered) item by simple case-insensitive
// token overlap between the query and the item's text/tags. An empty
// query seeds nothing, leaving ranking to the built-in recency/importance
// features alone.
func matchQuery(state *graph.State, query string, scope string) map[string]float64 {
	seeds := make(map[string]float64)
	tokens := tokenizeQuery(query)
	if len(tokens) == 0 {
		return seeds
	}
	for id, item := range state.Items {
		if scope != "" && item.Scope != scope {
			continue
		}
		score := queryOverlapScore(tokens, item)
		if score > 0 {
			seeds[id] = score
		}
	}
	return seeds
}

func tokenizeQuery(q string) []string {
	fields := strings.Fields(strings.ToLower(q))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()[]{}")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func queryOverlapScore(tokens []string, item *graph.Item) float64 {
	haystack := strings.ToLower(item.Text)
	tagSet := make(map[string]bool, len(item.Tags))
	for _, t := range item.Tags {
		tagSet[strings.ToLower(t)] = true
	}
	var hits int
	for _, tok := range tokens {
		if tagSet[tok] || strings.Contains(haystack, tok) {
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	return float64(hits) / float64(len(tokens))
}

// buildCandidates assembles a rank.Candidate for every item reachable by
// the recall: every seeded/activated item, plus every item in scope
// (whether or not the query matched anything) so recency/importance
// ranking still works with an empty query.
func (e *Engine) buildCandidates(state *graph.State, scope string, activationMap map[string]float64, now time.Time) []rank.Candidate {
	ids := make(map[string]bool, len(activationMap))
	for id := range activationMap {
		ids[id] = true
	}
	for id, item := range state.Items {
		if scope != "" && item.Scope != scope {
			continue
		}
		ids[id] = true
	}

	ordered := make([]string, 0, len(ids))
	for id := range ids {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	out := make([]rank.Candidate, 0, len(ordered))
	for _, id := range ordered {
		item, ok := state.Items[id]
		if !ok {
			continue
		}
		out = append(out, rank.Candidate{
			ID:         id,
			Activation: activationMap[id],
			Recency:    graph.Recency(lastTouch(item), now),
			Importance: item.Importance,
			Access:     float64(item.AccessCount),
			Success:    float64(item.Success),
			Fail:       float64(item.Fail),
			HourNorm:   float64(now.Hour()) / 23,
			DayNorm:    float64(int(now.Weekday())) / 6,
		})
	}
	return out
}

func lastTouch(item *graph.Item) time.Time {
	t := item.CreatedAt
	if item.UpdatedAt.After(t) {
		t = item.UpdatedAt
	}
	if item.LastAccessedAt.After(t) {
		t = item.LastAccessedAt
	}
	return t
}

// SearchResult is one keyword-matched item.
type SearchResult struct {
	ID   string
	Rank float64
}

// Search runs the backend's indexed full-text search when the backend
// supports it (sqlitestore), falling back to the same token-overlap scan
// Recall uses to seed activation when it does not (filestore).
func (e *Engine) Search(ctx context.Context, query string, limit int, scope string) ([]SearchResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if searcher, ok := e.backend.(store.Searcher); ok {
		ids, err := searcher.Search(ctx, query, limit, scope)
		if err != nil {
			return nil, err
		}
		out := make([]SearchResult, 0, len(ids))
		for i, id := range ids {
			out = append(out, SearchResult{ID: id, Rank: 1 - float64(i)/float64(len(ids)+1)})
		}
		return out, nil
	}

	seeds := matchQuery(e.core.State, query, scope)
	type scored struct {
		id string
		r  float64
	}
	var scoredIDs []scored
	for id, s := range seeds {
		scoredIDs = append(scoredIDs, scored{id, s})
	}
	sort.Slice(scoredIDs, func(i, j int) bool { return scoredIDs[i].r > scoredIDs[j].r })
	if limit > 0 && len(scoredIDs) > limit {
		scoredIDs = scoredIDs[:limit]
	}
	out := make([]SearchResult, len(scoredIDs))
	for i, s := range scoredIDs {
		out[i] = SearchResult{ID: s.id, Rank: s.r}
	}
	return out, nil
}
