package manifest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mnemo/internal/clock"
	"mnemo/internal/graph"
)

func seedThreeCommunities(t *testing.T) *graph.Core {
	t.Helper()
	c := clock.NewFixed(time.Unix(1_700_000_000, 0))
	state := graph.New("test", c.Now())
	core := graph.NewCore(state, c)

	groups := [][]string{
		{"kayaking trip down the river", "river kayaking gear checklist", "kayaking with friends on the river"},
		{"quarterly budget review", "budget spreadsheet for the team", "reviewing budget line items"},
		{"baking sourdough bread", "bread baking starter maintenance"},
	}

	for _, texts := range groups {
		var ids []string
		for _, txt := range texts {
			item, err := core.Remember(graph.RememberInput{Text: txt, Kind: graph.KindFact, Importance: 0.5})
			require.NoError(t, err)
			ids = append(ids, item.ID)
		}
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				_, err := core.Associate(ids[i], ids[j], graph.RelationCoActivated, 0.8)
				require.NoError(t, err)
				_, err = core.Associate(ids[j], ids[i], graph.RelationCoActivated, 0.8)
				require.NoError(t, err)
			}
		}
	}
	return core
}

func TestManifestShapeScenarioSix(t *testing.T) {
	core := seedThreeCommunities(t)
	text := Generate(core, Params{}, core.Clock.Now())

	assert.Contains(t, text, "Themes:")
	assert.Contains(t, text, "Graph:")

	numbered := 0
	for i := 1; i <= 9; i++ {
		if strings.Contains(text, fmt.Sprintf("%d. ", i)) {
			numbered++
		}
	}
	assert.GreaterOrEqual(t, numbered, 3)

	for _, banned := range []string{"golang", "Go ", "runtime.", "goroutine"} {
		assert.NotContains(t, text, banned)
	}
}

func TestCacheServesStaleUntilInvalidated(t *testing.T) {
	core := seedThreeCommunities(t)
	c := NewCache(Params{CacheTTL: time.Minute})

	first := c.Get(core, core.Clock.Now())
	_, err := core.Remember(graph.RememberInput{Text: "new unrelated item", Kind: graph.KindFact, Importance: 0.1})
	require.NoError(t, err)

	stillCached := c.Get(core, core.Clock.Now())
	assert.Equal(t, first, stillCached)

	c.Invalidate()
	refreshed := c.Get(core, core.Clock.Now())
	assert.NotEqual(t, first, refreshed)
}

func TestQuantileBasic(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 3, quantile(xs, 0.5), 1e-9)
	assert.InDelta(t, 1, quantile(xs, 0), 1e-9)
	assert.InDelta(t, 5, quantile(xs, 1), 1e-9)
}

func TestDetectCommunitiesMergesTinyComponents(t *testing.T) {
	core := seedThreeCommunities(t)
	ids := make([]string, 0, len(core.State.Items))
	for id := range core.State.Items {
		ids = append(ids, id)
	}
	communities := DetectCommunities(ids, core.State.Edges, 0.6, 3)
	total := 0
	for _, c := range communities {
		total += len(c)
	}
	assert.Equal(t, len(ids), total)
}
