package engine

import (
	"mnemo/internal/feedback"
	"mnemo/internal/graph"
)

// Remember inserts a new item (§4.3).
func (e *Engine) Remember(in graph.RememberInput) (*graph.Item, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	item, err := e.core.Remember(in)
	if err != nil {
		return nil, err
	}
	e.invalidateManifest()
	return item, nil
}

// GetItem fetches an item by id, touching its access bookkeeping.
func (e *Engine) GetItem(id string) (*graph.Item, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	item, err := e.core.GetItem(id)
	if err != nil {
		return nil, err
	}
	e.invalidateManifest()
	return item, nil
}

// Associate upserts an edge between two existing items (§4.3).
func (e *Engine) Associate(from, to, relation string, weight float64) (*graph.Edge, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	edge, err := e.core.Associate(from, to, relation, weight)
	if err != nil {
		return nil, err
	}
	e.invalidateManifest()
	return edge, nil
}

// Trace performs a bounded DFS from start, returning terminal simple
// paths. Read-only: it does not mutate state or invalidate the manifest.
func (e *Engine) Trace(start string, depth int) ([]graph.Path, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.core.Trace(start, depth)
}

// Feedback attributes outcome to the most recent recall session
// containing id, and to the policy versions that session referenced
// (§4.9).
func (e *Engine) Feedback(id string, outcome bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := feedback.Feedback(e.core.State, id, outcome); err != nil {
		return err
	}
	e.invalidateManifest()

	now := e.now()
	e.core.State.PushHistory(graph.HistoryEntry{T: now, Op: "feedback", Details: map[string]any{"id": id, "outcome": outcome}})
	return nil
}
