package activation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mnemo/internal/graph"
)

func edge(from, to string, w float64) *graph.Edge {
	return &graph.Edge{From: from, To: to, Relation: "rel", Weight: w}
}

func TestSeedsOnlyZeroSteps(t *testing.T) {
	seeds := map[string]float64{"a": 0.7, "b": 0.3}
	got, err := Run(context.Background(), nil, seeds, Params{Steps: 0, Decay: 0.85, Threshold: 0.2})
	require.NoError(t, err)
	assert.InDelta(t, 0.7, got["a"], 1e-9)
	assert.InDelta(t, 0.3, got["b"], 1e-9)
}

func TestAssociateThenActivateScenario(t *testing.T) {
	edges := []*graph.Edge{edge("A", "B", 0.6)}
	got, err := Run(context.Background(), edges, map[string]float64{"A": 1}, Params{Steps: 1, Decay: 0.8, Threshold: 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.48, got["B"], 1e-9)
}

func TestDisconnectedSubgraphConfinement(t *testing.T) {
	edges := []*graph.Edge{edge("A", "B", 0.5), edge("X", "Y", 0.9)}
	got, err := Run(context.Background(), edges, map[string]float64{"A": 1}, Params{Steps: 3, Decay: 0.85, Threshold: 0})
	require.NoError(t, err)
	_, hasX := got["X"]
	_, hasY := got["Y"]
	assert.False(t, hasX)
	assert.False(t, hasY)
}

func TestMonotonicityInWeight(t *testing.T) {
	low := []*graph.Edge{edge("A", "B", 0.2)}
	high := []*graph.Edge{edge("A", "B", 0.8)}
	gotLow, _ := Run(context.Background(), low, map[string]float64{"A": 1}, Params{Steps: 2, Decay: 0.85, Threshold: 0})
	gotHigh, _ := Run(context.Background(), high, map[string]float64{"A": 1}, Params{Steps: 2, Decay: 0.85, Threshold: 0})
	assert.GreaterOrEqual(t, gotHigh["B"], gotLow["B"])
}

func TestThresholdMonotonicity(t *testing.T) {
	edges := []*graph.Edge{edge("A", "B", 0.6), edge("B", "C", 0.1)}
	lowThresh, _ := Run(context.Background(), edges, map[string]float64{"A": 1}, Params{Steps: 3, Decay: 0.85, Threshold: 0.01})
	highThresh, _ := Run(context.Background(), edges, map[string]float64{"A": 1}, Params{Steps: 3, Decay: 0.85, Threshold: 0.3})
	for id := range highThresh {
		_, ok := lowThresh[id]
		assert.True(t, ok, "higher threshold introduced an id %s absent at lower threshold", id)
	}
}

func TestMissingEndpointsSkipped(t *testing.T) {
	edges := []*graph.Edge{edge("A", "ghost", 0.5)}
	_, err := Run(context.Background(), edges, map[string]float64{"A": 1}, Params{Steps: 2, Decay: 0.85, Threshold: 0})
	assert.NoError(t, err)
}

func TestMalformedSeedRejected(t *testing.T) {
	_, err := Run(context.Background(), nil, map[string]float64{"a": -1}, Params{Steps: 1, Decay: 0.5, Threshold: 0})
	assert.Error(t, err)
}
