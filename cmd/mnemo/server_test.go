package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mnemo/internal/clock"
	"mnemo/internal/engine"
	"mnemo/internal/graph"
	"mnemo/internal/metrics"
	"mnemo/internal/store"
)

type nopStore struct{}

func (nopStore) Load(ctx context.Context) (*graph.State, error)                 { return nil, nil }
func (nopStore) Save(ctx context.Context, state *graph.State, text string) error { return nil }
func (nopStore) Close() error                                                   { return nil }

var _ store.Store = nopStore{}

func newTestServer(t *testing.T) (*Server, *metrics.Collector) {
	t.Helper()
	c := clock.NewFixed(time.Unix(1_700_000_000, 0))
	eng, err := engine.Open(context.Background(), nopStore{}, c, "server-test", engine.DefaultParams())
	require.NoError(t, err)

	collector := metrics.NewCollector("mnemo_server_test")
	inst := metrics.Instrument(eng, collector)
	return NewServer(inst, zap.NewNop()), collector
}

func TestHealthzReturnsOK(t *testing.T) {
	srv, collector := newTestServer(t)
	router := srv.Router(collector)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRememberThenRecallOverHTTP(t *testing.T) {
	srv, collector := newTestServer(t)
	router := srv.Router(collector)

	body, err := json.Marshal(graph.RememberInput{
		Text: "the deployment runbook for the payments service", Kind: graph.KindFact, Importance: 0.7,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/remember", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var item graph.Item
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
	assert.NotEmpty(t, item.ID)

	recallReq, err := json.Marshal(map[string]any{"query": "deployment runbook", "limit": 5})
	require.NoError(t, err)

	req2 := httptest.NewRequest(http.MethodPost, "/v1/recall", bytes.NewReader(recallReq))
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req2)
	require.Equal(t, http.StatusOK, w2.Code)

	var results []engine.RecallResult
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &results))
	require.NotEmpty(t, results)
	assert.Equal(t, item.ID, results[0].ID)
}

func TestGetItemNotFoundReturns404(t *testing.T) {
	srv, collector := newTestServer(t)
	router := srv.Router(collector)

	req := httptest.NewRequest(http.MethodGet, "/v1/items/does-not-exist", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpointExposesPrometheusFormat(t *testing.T) {
	srv, collector := newTestServer(t)
	router := srv.Router(collector)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mnemo_server_test_items_remembered_total")
}
