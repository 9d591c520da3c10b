package rank

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"mnemo/internal/graph"
	"mnemo/internal/policy"
)

func TestDefaultScoreFormula(t *testing.T) {
	ev := policy.NewEvaluator()
	c := Candidate{ID: "a", Activation: 0.02, Recency: 0.4, Importance: 0.8}
	got := Score(context.Background(), c, 0.02, graph.Policy{}, ev)
	want := 0.6*0.02 + 0.25*0.4 + 0.15*0.8
	assert.InDelta(t, want, got, 1e-9)
}

func TestStrongActivationOverride(t *testing.T) {
	ev := policy.NewEvaluator()
	c := Candidate{ID: "a", Activation: 0.2, Importance: 1, Recency: 1}
	got := Score(context.Background(), c, 0.2, graph.Policy{}, ev)
	assert.InDelta(t, 2.0, got, 1e-9)
}

func TestStrongActivationDoesNotApplyBelowFloor(t *testing.T) {
	ev := policy.NewEvaluator()
	c := Candidate{ID: "a", Activation: 0.03, Importance: 0.5, Recency: 0.5}
	got := Score(context.Background(), c, 0.2, graph.Policy{}, ev) // max activation elsewhere is high
	want := 0.6*0.03 + 0.25*0.5 + 0.15*0.5
	assert.InDelta(t, want, got, 1e-9)
}

func TestRecallScoreFnFallbackOnNonFinite(t *testing.T) {
	ev := policy.NewEvaluator()
	pol := graph.Policy{RecallScoreFn: `(lambda (a r i ac s f h d) (/ a 0))`}
	c := Candidate{ID: "a", Activation: 0.02, Recency: 0.4, Importance: 0.8}
	got := Score(context.Background(), c, 0.02, pol, ev)
	want := defaultScore(c)
	assert.InDelta(t, want, got, 1e-9)
}

func TestRecallScoreFnsAveraged(t *testing.T) {
	ev := policy.NewEvaluator()
	pol := graph.Policy{RecallScoreFns: []string{
		`(lambda (a r i ac s f h d) 1)`,
		`(lambda (a r i ac s f h d) 3)`,
	}}
	c := Candidate{ID: "a"}
	got := Score(context.Background(), c, 0, pol, ev)
	assert.InDelta(t, 2.0, got, 1e-9)
}

func TestRankStableOnTies(t *testing.T) {
	ev := policy.NewEvaluator()
	cands := []Candidate{
		{ID: "first", Activation: 0, Recency: 0, Importance: 0},
		{ID: "second", Activation: 0, Recency: 0, Importance: 0},
		{ID: "third", Activation: 0, Recency: 0, Importance: 0},
	}
	results := Rank(context.Background(), cands, graph.Policy{}, ev, 3, 0, nil)
	assert.Equal(t, []string{"first", "second", "third"}, idsOf(results))
}

func TestRankDeterministic(t *testing.T) {
	ev := policy.NewEvaluator()
	cands := []Candidate{
		{ID: "a", Activation: 0.1, Recency: 0.9},
		{ID: "b", Activation: 0.9, Recency: 0.1},
	}
	r1 := Rank(context.Background(), cands, graph.Policy{}, ev, 2, 0, nil)
	r2 := Rank(context.Background(), cands, graph.Policy{}, ev, 2, 0, nil)
	assert.Equal(t, r1, r2)
}

func idsOf(rs []Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
