// Package engine wires the graph core, spreading activation, ranker,
// co-activation reinforcer, decay/consolidation, manifest generator,
// feedback/policy-versioning, and persistence packages into the named
// Query Surface operations (§4.10) behind a single read/write lock.
package engine

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/semaphore"

	"mnemo/internal/activation"
	"mnemo/internal/clock"
	"mnemo/internal/decay"
	mnemoerrors "mnemo/internal/errors"
	"mnemo/internal/graph"
	"mnemo/internal/manifest"
	"mnemo/internal/policy"
	"mnemo/internal/reinforce"
	"mnemo/internal/store"
)

// Params are the engine-wide tunables named in §6, grouped by the
// subsystem that consumes them.
type Params struct {
	Activation         activation.Params
	Reinforce          reinforce.Config
	Decay              decay.Params
	Consolidate        decay.ConsolidateParams
	Manifest           manifest.Params
	ExplorationEpsilon float64
	RecallTimeout      time.Duration // default 2s, per §5
}

// DefaultParams returns the documented defaults from §6.
func DefaultParams() Params {
	return Params{
		Activation: activation.Params{Steps: 3, Decay: 0.85, Threshold: 0.2},
		Reinforce:  reinforce.Config{CoactTopKPerNode: 3, MaxPairsPerRecall: 12, ReinforceDelta: 0.05},
		Decay:      decay.Params{BaseHalfLifeDays: 7, EdgeWeightFloor: 0.01},
		Consolidate: decay.ConsolidateParams{
			ClusterEdgeMinWeight: 0.2, ClusterMinSize: 10, ClusterKeepRecent: 5,
			EventAgeThreshold: 30 * 24 * time.Hour,
		},
		Manifest:           manifest.Params{ClusterPercentile: 0.6, NeighborTopK: 3, TopKeywords: 8, KeyNodeCount: 5, RecentActivity: 5, CacheTTL: 30 * time.Second},
		ExplorationEpsilon: 0.05,
		RecallTimeout:      2 * time.Second,
	}
}

// Engine is the process-wide associative memory instance. All state
// mutation is serialized through mu (single writer); reads may proceed
// concurrently over a consistent snapshot, per §5.
type Engine struct {
	mu sync.RWMutex

	core    *graph.Core
	clk     clock.Clock
	ev      *policy.Evaluator
	backend store.Store
	cache   *manifest.Cache
	params  Params
	rng     *rand.Rand

	saveSem *semaphore.Weighted
	breaker *gobreaker.CircuitBreaker
}

// New builds an Engine around an already-loaded state. Most callers
// should use Open instead, which loads (or initializes) the state from a
// backend first.
func New(state *graph.State, clk clock.Clock, backend store.Store, params Params) *Engine {
	return &Engine{
		core:        graph.NewCore(state, clk),
		clk:         clk,
		ev:          policy.NewEvaluator(),
		backend:     backend,
		cache:       manifest.NewCache(params.Manifest),
		params:      params,
		rng:         rand.New(rand.NewSource(clk.Now().UnixNano())),
		saveSem:     semaphore.NewWeighted(1),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "mnemo-store",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.Requests >= 3 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
			},
		}),
	}
}

// Open loads state for workspaceID from backend (initializing an empty
// workspace if none exists yet) and returns a ready Engine.
func Open(ctx context.Context, backend store.Store, clk clock.Clock, workspaceID string, params Params) (*Engine, error) {
	state, err := backend.Load(ctx)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = graph.New(workspaceID, clk.Now())
	}
	return New(state, clk, backend, params), nil
}

// Close flushes a final snapshot (best-effort) and closes the backend.
func (e *Engine) Close(ctx context.Context) error {
	_, saveErr := e.Snapshot(ctx)
	closeErr := e.backend.Close()
	if closeErr != nil {
		return closeErr
	}
	return saveErr
}

// saveNow persists text and the items/edges reachable from state through
// the sequential save queue (a size-1 semaphore) wrapped in a circuit
// breaker, so a flaky backend cannot be hammered by repeated snapshot
// calls. Callers must hold at least e.mu's read lock for the duration of
// this call: the store ranges over state's maps directly.
func (e *Engine) saveNow(ctx context.Context, state *graph.State, text string) error {
	if err := e.saveSem.Acquire(ctx, 1); err != nil {
		return mnemoerrors.Storage("acquire save queue", err)
	}
	defer e.saveSem.Release(1)

	_, err := e.breaker.Execute(func() (any, error) {
		return nil, e.backend.Save(ctx, state, text)
	})
	if err != nil {
		return mnemoerrors.Storage("save snapshot", err)
	}
	return nil
}

func (e *Engine) invalidateManifest() {
	e.cache.Invalidate()
}

func (e *Engine) now() time.Time { return e.clk.Now() }
