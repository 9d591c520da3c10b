package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mnemo/internal/graph"
)

func sampleState() *graph.State {
	born := time.Unix(1_700_000_000, 0).UTC()
	s := graph.New("workspace-1", born)
	s.Policy.RecallScoreFn = `(lambda (a r i ac s f h d) a)`
	s.Policy.RecallScoreFns = []string{`(lambda () 1)`, `(lambda () 2)`}

	item := &graph.Item{
		ID: "m_abc123_deadbeef", Kind: graph.KindFact, Text: `she said "hi" \ there`,
		Tags: []string{"a", "b"}, Importance: 0.5, Energy: 0.9, TTL: "30d",
		CreatedAt: born, UpdatedAt: born, AccessCount: 2, Success: 1, Fail: 0,
	}
	s.Items[item.ID] = item

	item2 := &graph.Item{
		ID: "m_abc124_deadbeef", Kind: graph.KindEvent, Text: "second item",
		CreatedAt: born, UpdatedAt: born,
	}
	s.Items[item2.ID] = item2

	s.Edges = append(s.Edges, &graph.Edge{
		From: item.ID, To: item2.ID, Relation: "supports", Weight: 0.6, LastReinforcedAt: born,
	})

	s.PushHistory(graph.HistoryEntry{T: born, Op: "remember"})
	return s
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	s := sampleState()
	text := Marshal(s)

	parsed, err := Unmarshal(text)
	require.NoError(t, err)

	assert.Equal(t, s.WorkspaceID, parsed.WorkspaceID)
	assert.Equal(t, s.Energy, parsed.Energy)
	assert.Equal(t, s.Threshold, parsed.Threshold)
	assert.Equal(t, s.Policy.RecallScoreFn, parsed.Policy.RecallScoreFn)
	assert.Equal(t, s.Policy.RecallScoreFns, parsed.Policy.RecallScoreFns)
	require.Len(t, parsed.Items, 2)

	orig := s.Items["m_abc123_deadbeef"]
	got := parsed.Items["m_abc123_deadbeef"]
	require.NotNil(t, got)
	assert.Equal(t, orig.Text, got.Text)
	assert.Equal(t, orig.Tags, got.Tags)
	assert.Equal(t, orig.Importance, got.Importance)
	assert.Equal(t, orig.TTL, got.TTL)
	assert.Equal(t, orig.AccessCount, got.AccessCount)
	assert.Equal(t, orig.Success, got.Success)

	require.Len(t, parsed.Edges, 1)
	assert.Equal(t, "supports", parsed.Edges[0].Relation)
	assert.InDelta(t, 0.6, parsed.Edges[0].Weight, 1e-9)
}

func TestMarshalIsIdempotentOnReparse(t *testing.T) {
	s := sampleState()
	text1 := Marshal(s)
	parsed, err := Unmarshal(text1)
	require.NoError(t, err)
	text2 := Marshal(parsed)
	assert.Equal(t, text1, text2)
}

func TestUnmarshalRejectsMalformedInput(t *testing.T) {
	_, err := Unmarshal("(memory (id 5))")
	assert.Error(t, err)

	_, err = Unmarshal("not even an sexpr")
	assert.Error(t, err)
}
