package metrics_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mnemo/internal/clock"
	"mnemo/internal/engine"
	"mnemo/internal/graph"
	"mnemo/internal/metrics"
	"mnemo/internal/store"
)

type nopStore struct{}

func (nopStore) Load(ctx context.Context) (*graph.State, error) { return nil, nil }
func (nopStore) Save(ctx context.Context, state *graph.State, text string) error { return nil }
func (nopStore) Close() error { return nil }

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	c := clock.NewFixed(time.Unix(1_700_000_000, 0))
	eng, err := engine.Open(context.Background(), nopStore{}, c, "metrics-test", engine.DefaultParams())
	require.NoError(t, err)
	return eng
}

func TestInstrumentedEngineRecordsOperations(t *testing.T) {
	m := metrics.NewCollector("mnemo_test_remember")
	inst := metrics.Instrument(newTestEngine(t), m)

	item, err := inst.Remember(graph.RememberInput{Text: "test item", Kind: graph.KindFact, Importance: 0.5})
	require.NoError(t, err)
	require.NotNil(t, item)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ItemsRemembered))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OperationsTotal.WithLabelValues("remember")))
}

func TestInstrumentedEngineRecordsFeedbackOutcomes(t *testing.T) {
	m := metrics.NewCollector("mnemo_test_feedback")
	eng := newTestEngine(t)
	inst := metrics.Instrument(eng, m)

	item, err := eng.Remember(graph.RememberInput{Text: "feedback target", Kind: graph.KindFact, Importance: 0.5})
	require.NoError(t, err)

	_, err = eng.Recall(context.Background(), "feedback", 5, "")
	require.NoError(t, err)

	require.NoError(t, inst.Feedback(item.ID, true))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FeedbackOutcomes.WithLabelValues("positive")))
}

func TestRefreshGaugesSamplesStats(t *testing.T) {
	m := metrics.NewCollector("mnemo_test_gauges")
	eng := newTestEngine(t)
	inst := metrics.Instrument(eng, m)

	_, err := eng.Remember(graph.RememberInput{Text: "gauge item", Kind: graph.KindFact, Importance: 0.5})
	require.NoError(t, err)

	inst.RefreshGauges()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EngineItemCount))
}

func TestDecayNowUpdatesCounters(t *testing.T) {
	m := metrics.NewCollector("mnemo_test_decay")
	eng := newTestEngine(t)
	inst := metrics.Instrument(eng, m)

	_, err := eng.Remember(graph.RememberInput{Text: "decays over time", Kind: graph.KindFact, Importance: 0.5})
	require.NoError(t, err)

	inst.DecayNow(context.Background(), 7)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DecayPassesTotal))
}

var _ store.Store = nopStore{}
