package manifest

import (
	"sync"
	"time"

	"mnemo/internal/graph"
)

// Cache memoizes Generate for CacheTTL, or until Invalidate is called by
// a mutating operation — whichever comes first.
type Cache struct {
	mu      sync.Mutex
	params  Params
	text    string
	genAt   time.Time
	dirty   bool
	hasText bool
}

// NewCache returns a cache that starts dirty (forcing the first Get to
// regenerate).
func NewCache(p Params) *Cache {
	return &Cache{params: p.withDefaults(), dirty: true}
}

// Invalidate marks the cached manifest stale; called after every
// mutating engine operation.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty = true
}

// Get returns the cached manifest if it is still fresh, regenerating it
// otherwise.
func (c *Cache) Get(core *graph.Core, now time.Time) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty && c.hasText && now.Sub(c.genAt) < c.params.CacheTTL {
		return c.text
	}
	c.text = Generate(core, c.params, now)
	c.genAt = now
	c.dirty = false
	c.hasText = true
	return c.text
}
