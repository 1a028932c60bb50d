package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantfold/crossarb/internal/agent"
	"github.com/quantfold/crossarb/pkg/config"
	"github.com/quantfold/crossarb/pkg/healthprobe"
	"github.com/quantfold/crossarb/pkg/types"
)

type fakeManager struct {
	mu      sync.Mutex
	states  map[string]agent.State
	running map[string]bool
	limit   int
}

func newFakeManager(limit int) *fakeManager {
	return &fakeManager{
		states:  make(map[string]agent.State),
		running: make(map[string]bool),
		limit:   limit,
	}
}

func (f *fakeManager) Create(userID string, cfg config.AgentConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.states[userID]; ok {
		return types.ErrAgentExists
	}
	if len(f.states) >= f.limit {
		return types.ErrAgentLimit
	}
	f.states[userID] = agent.State{UserID: userID, Config: cfg}
	return nil
}

func (f *fakeManager) Start(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[userID]
	if !ok {
		return types.ErrAgentNotFound
	}
	state.Running = true
	f.states[userID] = state
	return nil
}

func (f *fakeManager) Stop(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[userID]
	if !ok {
		return types.ErrAgentNotFound
	}
	if !state.Running {
		return types.ErrAgentNotRunning
	}
	state.Running = false
	f.states[userID] = state
	return nil
}

func (f *fakeManager) Remove(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.states[userID]; !ok {
		return types.ErrAgentNotFound
	}
	delete(f.states, userID)
	return nil
}

func (f *fakeManager) UpdateConfig(userID string, cfg config.AgentConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[userID]
	if !ok {
		return types.ErrAgentNotFound
	}
	state.Config = cfg
	f.states[userID] = state
	return nil
}

func (f *fakeManager) Status(userID string) (agent.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[userID]
	if !ok {
		return agent.State{}, types.ErrAgentNotFound
	}
	return state, nil
}

func (f *fakeManager) StatusAll() []agent.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]agent.State, 0, len(f.states))
	for _, s := range f.states {
		out = append(out, s)
	}
	return out
}

func defaults() config.AgentConfig {
	return config.AgentConfig{
		MinTradeSize:       10 * types.StableUnits,
		MaxTradeSize:       1000 * types.StableUnits,
		MinSpreadBps:       50,
		FillPollInterval:   1,
		FillPollTimeout:    1,
		UnwindPollInterval: 1,
		UnwindMaxPolls:     6,
		ExecutionMode:      config.ModeDryRun,
	}
}

type fakeQuotes struct {
	snap types.QuoteSnapshot
	ok   bool
}

func (f *fakeQuotes) LastGood() (types.QuoteSnapshot, bool) { return f.snap, f.ok }

func newTestServer(t *testing.T) (*httptest.Server, *fakeManager) {
	t.Helper()

	mgr := newFakeManager(10)
	hc := healthprobe.New()
	hc.SetReady(true)

	srv := New(&Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: hc,
		Agents:        mgr,
		AgentDefaults: defaults(),
		Quotes: &fakeQuotes{
			snap: types.QuoteSnapshot{SnapshotID: 7, ProducedAtMs: 1234, Quotes: []types.MarketQuote{{Venue: "amm", MarketID: "0xm1"}}},
			ok:   true,
		},
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, mgr
}

func TestServer_HealthAndMetrics(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		resp.Body.Close()
	}
}

func TestServer_QuotesEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/quotes")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap types.QuoteSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, uint64(7), snap.SnapshotID)
	require.Len(t, snap.Quotes, 1)
	assert.Equal(t, "0xm1", snap.Quotes[0].MarketID)
}

func TestServer_QuotesEndpointEmpty(t *testing.T) {
	hc := healthprobe.New()
	srv := New(&Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: hc,
		Quotes:        &fakeQuotes{},
	})

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/quotes")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestServer_CreateAgentWithDefaults(t *testing.T) {
	ts, mgr := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/agents", "application/json",
		strings.NewReader(`{"userId":"alice"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	state, err := mgr.Status("alice")
	require.NoError(t, err)
	assert.Equal(t, defaults().MaxTradeSize, state.Config.MaxTradeSize)
}

func TestServer_CreateAgentWithOverrides(t *testing.T) {
	ts, mgr := newTestServer(t)

	body := `{"userId":"bob","config":{"minSpreadBps":120,"maxTotalTrades":5}}`
	resp, err := http.Post(ts.URL+"/api/agents", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	state, err := mgr.Status("bob")
	require.NoError(t, err)
	assert.Equal(t, int64(120), state.Config.MinSpreadBps)
	assert.Equal(t, 5, state.Config.MaxTotalTrades)
	// Untouched fields keep the defaults.
	assert.Equal(t, defaults().MaxTradeSize, state.Config.MaxTradeSize)
}

func TestServer_CreateValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/agents", "application/json",
		strings.NewReader(`{"config":{}}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/agents", "application/json",
		strings.NewReader(`not json`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_DuplicateCreateConflicts(t *testing.T) {
	ts, _ := newTestServer(t)

	for i, want := range []int{http.StatusCreated, http.StatusConflict} {
		resp, err := http.Post(ts.URL+"/api/agents", "application/json",
			strings.NewReader(`{"userId":"alice"}`))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, want, resp.StatusCode, "attempt %d", i)
	}
}

func TestServer_StartStopLifecycle(t *testing.T) {
	ts, mgr := newTestServer(t)
	require.NoError(t, mgr.Create("alice", defaults()))

	resp, err := http.Post(ts.URL+"/api/agents/alice/start", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	state, _ := mgr.Status("alice")
	assert.True(t, state.Running)

	resp, err = http.Post(ts.URL+"/api/agents/alice/stop", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Stopping twice conflicts.
	resp, err = http.Post(ts.URL+"/api/agents/alice/stop", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestServer_StatusEndpoints(t *testing.T) {
	ts, mgr := newTestServer(t)
	require.NoError(t, mgr.Create("alice", defaults()))

	resp, err := http.Get(ts.URL + "/api/agents/alice")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state agent.State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.Equal(t, "alice", state.UserID)

	resp, err = http.Get(ts.URL + "/api/agents/ghost")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	listResp, err := http.Get(ts.URL + "/api/agents")
	require.NoError(t, err)
	defer listResp.Body.Close()

	var states []agent.State
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&states))
	assert.Len(t, states, 1)
}

func TestServer_UpdateConfigPartial(t *testing.T) {
	ts, mgr := newTestServer(t)
	require.NoError(t, mgr.Create("alice", defaults()))

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/agents/alice/config",
		strings.NewReader(`{"dailyLossLimit":5000000}`))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	state, _ := mgr.Status("alice")
	assert.Equal(t, int64(5_000_000), state.Config.DailyLossLimit)
	assert.Equal(t, defaults().MinSpreadBps, state.Config.MinSpreadBps)
}

func TestServer_RemoveAgent(t *testing.T) {
	ts, mgr := newTestServer(t)
	require.NoError(t, mgr.Create("alice", defaults()))

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/agents/alice", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = mgr.Status("alice")
	assert.ErrorIs(t, err, types.ErrAgentNotFound)
}
