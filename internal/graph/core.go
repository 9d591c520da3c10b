package graph

import (
	"time"

	"mnemo/internal/clock"
	mnemoerrors "mnemo/internal/errors"
)

// Core wraps a State with the mutation primitives of §4.3. It performs no
// locking of its own; callers (engine.Engine) serialize access.
type Core struct {
	State *State
	Clock clock.Clock
}

func NewCore(s *State, c clock.Clock) *Core {
	return &Core{State: s, Clock: c}
}

// RememberInput is the validated input to Remember.
type RememberInput struct {
	Text       string
	Kind       Kind
	Importance float64
	TTL        string
	Tags       []string
	Scope      string
}

// Remember validates input, mints an id, inserts the item, touches
// process energy, and appends a history entry.
func (c *Core) Remember(in RememberInput) (*Item, error) {
	if in.Text == "" {
		return nil, mnemoerrors.Validation("text cannot be empty")
	}
	if !in.Kind.Valid() {
		return nil, mnemoerrors.Validation("unknown kind %q", in.Kind)
	}
	if in.Importance < 0 || in.Importance > 1 {
		return nil, mnemoerrors.Validation("importance %v out of [0,1]", in.Importance)
	}
	if err := validateTags(in.Tags); err != nil {
		return nil, err
	}
	if in.TTL != "" {
		if _, err := ParseDuration(in.TTL); err != nil {
			return nil, err
		}
	}

	now := c.Clock.Now()
	item := &Item{
		ID:         clock.NewID(c.Clock),
		Kind:       in.Kind,
		Text:       in.Text,
		Tags:       dedupTags(in.Tags),
		Importance: Clamp01(in.Importance),
		Energy:     1,
		TTL:        in.TTL,
		Scope:      in.Scope,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, exists := c.State.Items[item.ID]; exists {
		return nil, mnemoerrors.Duplicate("id collision %s", item.ID)
	}
	c.State.Items[item.ID] = item

	c.State.Energy = Clamp01(c.State.Energy*0.95 + 0.05)
	c.State.PushHistory(HistoryEntry{T: now, Op: "remember", Details: map[string]any{"id": item.ID}})

	return item, nil
}

// Associate upserts an edge between two existing items. When creating it
// uses the clamped weight; when reinforcing an existing (from,to,relation)
// edge it adds delta (weight itself, by convention of this call) and
// clamps, updating LastReinforcedAt.
func (c *Core) Associate(from, to, relation string, weight float64) (*Edge, error) {
	if relation == "" {
		return nil, mnemoerrors.Validation("relation cannot be empty")
	}
	if _, ok := c.State.Items[from]; !ok {
		return nil, mnemoerrors.NotFound("item %s", from)
	}
	if _, ok := c.State.Items[to]; !ok {
		return nil, mnemoerrors.NotFound("item %s", to)
	}

	now := c.Clock.Now()
	for _, e := range c.State.Edges {
		if e.key() == (edgeKey{from, to, relation}) {
			e.Weight = Clamp01(e.Weight + weight)
			e.LastReinforcedAt = now
			c.State.PushHistory(HistoryEntry{T: now, Op: "associate", Details: map[string]any{"from": from, "to": to, "reinforced": true}})
			return e, nil
		}
	}

	e := &Edge{From: from, To: to, Relation: relation, Weight: Clamp01(weight), LastReinforcedAt: now}
	c.State.Edges = append(c.State.Edges, e)
	c.State.PushHistory(HistoryEntry{T: now, Op: "associate", Details: map[string]any{"from": from, "to": to, "reinforced": false}})
	return e, nil
}

// GetItem fetches an item by id, recording an access. The third access
// (and only the third — later accesses are left to explicit feedback)
// counts as an implicit success signal, per the accessCount>=3 threshold
// fixed for implicit feedback.
func (c *Core) GetItem(id string) (*Item, error) {
	item, ok := c.State.Items[id]
	if !ok {
		return nil, mnemoerrors.NotFound("item %s", id)
	}
	item.LastAccessedAt = c.Clock.Now()
	item.AccessCount++
	if item.AccessCount == 3 {
		item.Success++
	}
	return item, nil
}

// Path is one terminal simple path discovered by Trace.
type Path struct {
	Items []string
}

const maxTraceDepth = 6

// Trace performs a bounded DFS from start over directed edges, returning
// every terminal simple path (no revisits within a path) up to depth.
func (c *Core) Trace(start string, depth int) ([]Path, error) {
	if depth < 0 || depth > maxTraceDepth {
		depth = maxTraceDepth
	}
	if _, ok := c.State.Items[start]; !ok {
		return nil, mnemoerrors.NotFound("item %s", start)
	}

	adjacency := make(map[string][]string)
	for _, e := range c.State.Edges {
		adjacency[e.From] = append(adjacency[e.From], e.To)
	}

	var paths []Path
	visited := map[string]bool{start: true}
	var walk func(node string, path []string)
	walk = func(node string, path []string) {
		next := adjacency[node]
		if len(path) >= depth+1 || len(next) == 0 {
			paths = append(paths, Path{Items: append([]string(nil), path...)})
			return
		}
		extended := false
		for _, n := range next {
			if visited[n] {
				continue
			}
			visited[n] = true
			walk(n, append(path, n))
			visited[n] = false
			extended = true
		}
		if !extended {
			paths = append(paths, Path{Items: append([]string(nil), path...)})
		}
	}
	walk(start, []string{start})
	return paths, nil
}

// Remove deletes an item and every incident edge, per Invariant 4.
func (c *Core) Remove(id string) {
	delete(c.State.Items, id)
	kept := c.State.Edges[:0]
	for _, e := range c.State.Edges {
		if e.From == id || e.To == id {
			continue
		}
		kept = append(kept, e)
	}
	c.State.Edges = kept
}

// PruneEdgesBelow removes edges with Weight < floor (Invariant 4).
func (c *Core) PruneEdgesBelow(floor float64) int {
	kept := c.State.Edges[:0]
	removed := 0
	for _, e := range c.State.Edges {
		if e.Weight < floor {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	c.State.Edges = kept
	return removed
}

// TouchAccess is a convenience used by the ranker/feedback path to mark an
// item accessed without going through GetItem's error handling.
func (c *Core) TouchAccess(id string, t time.Time) {
	if item, ok := c.State.Items[id]; ok {
		item.LastAccessedAt = t
		item.AccessCount++
	}
}
