// Package store defines the persistence contract for the associative
// memory graph and two backends: a canonical snapshot file and an
// indexed SQLite database with full-text search.
package store

import (
	"context"

	"mnemo/internal/graph"
)

// Store is the persistence contract named in §6. Load returns (nil, nil)
// when there is nothing to load yet (a fresh workspace).
type Store interface {
	Load(ctx context.Context) (*graph.State, error)
	Save(ctx context.Context, state *graph.State, snapshotText string) error
	Close() error
}

// Searcher is implemented by backends that support full-text search over
// item text (currently sqlitestore only; filestore callers fall back to
// a linear scan).
type Searcher interface {
	Search(ctx context.Context, query string, limit int, scope string) ([]string, error)
}
