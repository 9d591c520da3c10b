package decay

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mnemo/internal/graph"
)

func TestConsolidateTTLExpiryOnlyBelowEnergyFloor(t *testing.T) {
	core, c := newTestCore(t)
	low, err := core.Remember(graph.RememberInput{Text: "expires", Kind: graph.KindFact, Importance: 0.1, TTL: "1d"})
	require.NoError(t, err)
	high, err := core.Remember(graph.RememberInput{Text: "stays", Kind: graph.KindFact, Importance: 0.1, TTL: "1d"})
	require.NoError(t, err)

	core.State.Items[low.ID].Energy = 0.01
	core.State.Items[high.ID].Energy = 0.5

	c.Advance(2 * 24 * time.Hour)
	stats := Consolidate(core, ConsolidateParams{}, core.Clock.Now())

	assert.Equal(t, 1, stats.ExpiredItems)
	_, lowStillThere := core.State.Items[low.ID]
	_, highStillThere := core.State.Items[high.ID]
	assert.False(t, lowStillThere)
	assert.True(t, highStillThere)
}

func TestConsolidateClustersAndKeepsRecent(t *testing.T) {
	core, c := newTestCore(t)
	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		item, err := core.Remember(graph.RememberInput{
			Text: fmt.Sprintf("event %d happened at the office", i),
			Kind: graph.KindEvent, Importance: 0.5,
		})
		require.NoError(t, err)
		ids = append(ids, item.ID)
	}

	c.Advance(31 * 24 * time.Hour)

	for i := 0; i < len(ids)-1; i++ {
		_, err := core.Associate(ids[i], ids[i+1], graph.RelationCoActivated, 0.5)
		require.NoError(t, err)
		_, err = core.Associate(ids[i+1], ids[i], graph.RelationCoActivated, 0.5)
		require.NoError(t, err)
	}

	stats := Consolidate(core, ConsolidateParams{
		ClusterEdgeMinWeight: 0.3,
		ClusterMinSize:       3,
		ClusterKeepRecent:    2,
	}, core.Clock.Now())

	assert.Equal(t, 1, stats.ReflectionsCreated)
	assert.Equal(t, 3, stats.ClusteredRemoved)

	var reflections int
	for _, item := range core.State.Items {
		if item.Kind == graph.KindReflection {
			reflections++
		}
	}
	assert.Equal(t, 1, reflections)
}

func TestConsolidateSkipsComponentsBelowMinSize(t *testing.T) {
	core, c := newTestCore(t)
	a, err := core.Remember(graph.RememberInput{Text: "one event", Kind: graph.KindEvent, Importance: 0.5})
	require.NoError(t, err)
	b, err := core.Remember(graph.RememberInput{Text: "another event", Kind: graph.KindEvent, Importance: 0.5})
	require.NoError(t, err)

	c.Advance(31 * 24 * time.Hour)
	_, err = core.Associate(a.ID, b.ID, graph.RelationCoActivated, 0.9)
	require.NoError(t, err)

	stats := Consolidate(core, ConsolidateParams{ClusterEdgeMinWeight: 0.3, ClusterMinSize: 3, ClusterKeepRecent: 1}, core.Clock.Now())
	assert.Equal(t, 0, stats.ReflectionsCreated)
}
