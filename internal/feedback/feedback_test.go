package feedback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mnemo/internal/clock"
	"mnemo/internal/graph"
)

func newTestCore(t *testing.T) (*graph.Core, *clock.Fixed) {
	t.Helper()
	c := clock.NewFixed(time.Unix(1_700_000_000, 0))
	state := graph.New("test", c.Now())
	return graph.NewCore(state, c), c
}

func TestFeedbackAttributesMostRecentSession(t *testing.T) {
	core, c := newTestCore(t)
	item, err := core.Remember(graph.RememberInput{Text: "x", Kind: graph.KindFact, Importance: 0.5})
	require.NoError(t, err)

	RecordSession(core.State, c.Now(), []string{item.ID}, []string{"v1"}, "query one", 0.9)
	c.Advance(time.Minute)
	RecordSession(core.State, c.Now(), []string{item.ID}, []string{"v2"}, "query two", 0.9)

	core.State.PolicyVersions = append(core.State.PolicyVersions,
		graph.Version{ID: "v1", Name: "recall-score"},
		graph.Version{ID: "v2", Name: "recall-score"},
	)

	require.NoError(t, Feedback(core.State, item.ID, true))

	assert.Equal(t, 1, item.Success)
	assert.Equal(t, 1, core.State.PolicyVersions[1].Success, "only v2, referenced by the most recent session, is credited")
	assert.Equal(t, 0, core.State.PolicyVersions[0].Success)
}

func TestFeedbackMissingItemErrors(t *testing.T) {
	core, _ := newTestCore(t)
	err := Feedback(core.State, "m_missing", true)
	assert.Error(t, err)
}

func TestSetPolicyFnScenarioFivePolicyVersioning(t *testing.T) {
	core, c := newTestCore(t)
	invalidated := 0
	invalidate := func() { invalidated++ }

	src1 := `(lambda (a r i ac s f h d) a)`
	src2 := `(lambda (a r i ac s f h d) r)`

	id1, err := SetPolicyFn(core.State, "recall-score", src1, c.Now(), invalidate)
	require.NoError(t, err)
	assert.Equal(t, HashSource(src1), id1)

	id2, err := SetPolicyFn(core.State, "recall-score", src2, c.Now(), invalidate)
	require.NoError(t, err)

	require.Len(t, core.State.PolicyVersions, 1, "the first set-policy-fn has no prior source to retire")
	assert.Equal(t, HashSource(src1), core.State.PolicyVersions[0].ID)
	assert.Equal(t, src2, core.State.Policy.RecallScoreFn)
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 2, invalidated)
}

func TestFeedbackCreditsActivePolicySource(t *testing.T) {
	core, c := newTestCore(t)
	invalidate := func() {}

	src1 := `(lambda (a r i ac s f h d) a)`
	src2 := `(lambda (a r i ac s f h d) r)`
	_, err := SetPolicyFn(core.State, "recall-score", src1, c.Now(), invalidate)
	require.NoError(t, err)
	id2, err := SetPolicyFn(core.State, "recall-score", src2, c.Now(), invalidate)
	require.NoError(t, err)

	item, err := core.Remember(graph.RememberInput{Text: "x", Kind: graph.KindFact, Importance: 0.5})
	require.NoError(t, err)
	RecordSession(core.State, c.Now(), []string{item.ID}, []string{id2}, "query", 0.9)

	require.NoError(t, Feedback(core.State, item.ID, true))

	stat, ok := core.State.ActivePolicyStats[id2]
	require.True(t, ok, "feedback against the still-active source must accrue somewhere ListPolicyVersions can read it back")
	assert.Equal(t, 1, stat.Success)
	assert.Equal(t, 0, stat.Fail)
	assert.Equal(t, 0, core.State.PolicyVersions[0].Success, "the already-retired src1 entry must not be touched")

	require.NoError(t, Feedback(core.State, item.ID, false))
	assert.Equal(t, 1, core.State.ActivePolicyStats[id2].Success)
	assert.Equal(t, 1, core.State.ActivePolicyStats[id2].Fail)
}

func TestFeedbackStatsCarryForwardOnRetirement(t *testing.T) {
	core, c := newTestCore(t)
	invalidate := func() {}

	src1 := `(lambda (a r i ac s f h d) a)`
	src2 := `(lambda (a r i ac s f h d) r)`
	id1, err := SetPolicyFn(core.State, "recall-score", src1, c.Now(), invalidate)
	require.NoError(t, err)

	item, err := core.Remember(graph.RememberInput{Text: "x", Kind: graph.KindFact, Importance: 0.5})
	require.NoError(t, err)
	RecordSession(core.State, c.Now(), []string{item.ID}, []string{id1}, "query", 0.9)
	require.NoError(t, Feedback(core.State, item.ID, true))
	require.NoError(t, Feedback(core.State, item.ID, true))

	_, err = SetPolicyFn(core.State, "recall-score", src2, c.Now(), invalidate)
	require.NoError(t, err)

	require.Len(t, core.State.PolicyVersions, 1)
	assert.Equal(t, 2, core.State.PolicyVersions[0].Success, "accumulated active-source stats must carry into the retired version")
	_, stillActive := core.State.ActivePolicyStats[id1]
	assert.False(t, stillActive, "the slot is cleared once its stats land on the retired version")
}

func TestSetPolicyFnUnknownSlot(t *testing.T) {
	core, c := newTestCore(t)
	_, err := SetPolicyFn(core.State, "not-a-slot", "src", c.Now(), nil)
	assert.Error(t, err)
}
