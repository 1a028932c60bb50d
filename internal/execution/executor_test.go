package execution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantfold/crossarb/internal/arbitrage"
	"github.com/quantfold/crossarb/internal/position"
	"github.com/quantfold/crossarb/internal/testutil"
	"github.com/quantfold/crossarb/internal/venue"
	"github.com/quantfold/crossarb/pkg/config"
	"github.com/quantfold/crossarb/pkg/types"
)

type harness struct {
	exec  *Executor
	amm   *testutil.MockAdapter
	clob  *testutil.MockAdapter
	store *position.Store
	pause *PauseState
	repo  *testutil.MemRepo
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	amm := testutil.NewMockAdapter("amm")
	clob := testutil.NewMockAdapter("clob")
	repo := testutil.NewMemRepo()
	store := position.NewStore("user-1", repo, zap.NewNop())
	pause := NewPauseState()

	resolver := &testutil.StaticResolver{Pairs: map[string]types.TokenPair{
		"amm":  {YesTokenID: "amm-yes", NoTokenID: "amm-no"},
		"clob": {YesTokenID: "clob-yes", NoTokenID: "clob-no"},
	}}

	exec := New("user-1",
		map[string]venue.Adapter{"amm": amm, "clob": clob},
		resolver, store, pause, zap.NewNop())

	return &harness{exec: exec, amm: amm, clob: clob, store: store, pause: pause, repo: repo}
}

func testOpp() arbitrage.Opportunity {
	return arbitrage.Opportunity{
		MarketID:    "m1",
		BuyYesVenue: "amm",
		BuyNoVenue:  "clob",
		YesPrice:    types.PriceFromFloat(0.48),
		NoPrice:     types.PriceFromFloat(0.49),
		TotalCost:   types.PriceFromFloat(0.97),
		SpreadBps:   270,
	}
}

func fastConfig() config.AgentConfig {
	return config.AgentConfig{
		FillPollInterval:   2 * time.Millisecond,
		FillPollTimeout:    50 * time.Millisecond,
		UnwindPollInterval: 2 * time.Millisecond,
		UnwindMaxPolls:     3,
	}
}

func filledResult(orderID string) types.PlaceOrderResult {
	return types.PlaceOrderResult{Success: true, OrderID: orderID, Status: types.OrderStatusFilled}
}

func openResult(orderID string) types.PlaceOrderResult {
	return types.PlaceOrderResult{Success: true, OrderID: orderID, Status: types.OrderStatusOpen}
}

func TestExecute_BothLegsFillAtPlacement(t *testing.T) {
	h := newHarness(t)
	h.amm.ScriptPlace(filledResult("a1"))
	h.clob.ScriptPlace(filledResult("b1"))

	res := h.exec.Execute(context.Background(), testOpp(), 50*types.StableUnits, fastConfig())

	require.True(t, res.Executed)
	assert.Equal(t, types.PositionFilled, res.Status)

	// Immediate fills must not trigger status polling.
	assert.Zero(t, h.amm.StatusCalls("a1"))
	assert.Zero(t, h.clob.StatusCalls("b1"))

	stored, ok := h.repo.Get(res.PositionID)
	require.True(t, ok)
	assert.Equal(t, types.PositionFilled, stored.Status)
	assert.True(t, stored.LegA.Filled)
	assert.True(t, stored.LegB.Filled)

	paused, _ := h.pause.Paused()
	assert.False(t, paused)
}

func TestExecute_OneLegPlacementFails(t *testing.T) {
	h := newHarness(t)
	h.amm.ScriptPlace(types.PlaceOrderResult{Err: "insufficient funds"})
	h.clob.ScriptPlace(openResult("b1"))

	res := h.exec.Execute(context.Background(), testOpp(), 50*types.StableUnits, fastConfig())

	require.False(t, res.Executed)
	assert.Equal(t, ReasonPlacementFailed, res.Reason)

	// The surviving leg is cancelled immediately; nothing is recorded.
	assert.Equal(t, []string{"b1"}, h.clob.Cancelled())
	assert.Empty(t, h.store.List())
}

func TestExecute_PartialFillUnwindSucceeds(t *testing.T) {
	h := newHarness(t)
	h.amm.ScriptPlace(openResult("a1"))
	h.clob.ScriptPlace(openResult("b1"))

	h.amm.ScriptStatus("a1", types.OrderState{OrderID: "a1", Status: types.OrderStatusFilled, FilledSize: 50 * types.StableUnits})
	h.clob.ScriptStatus("b1", types.OrderState{OrderID: "b1", Status: types.OrderStatusCancelled})

	// Unwind sell on the filled venue: resting, then filled.
	h.amm.ScriptPlace(openResult("u1"))
	h.amm.ScriptStatus("u1",
		types.OrderState{OrderID: "u1", Status: types.OrderStatusOpen},
		types.OrderState{OrderID: "u1", Status: types.OrderStatusFilled})

	res := h.exec.Execute(context.Background(), testOpp(), 50*types.StableUnits, fastConfig())

	require.True(t, res.Executed)
	assert.Equal(t, types.PositionClosed, res.Status)
	assert.Zero(t, res.PnL) // unwound at the fill price

	// The unwind order was a SELL at the same price and size.
	placed := h.amm.Placed()
	require.Len(t, placed, 2)
	unwind := placed[1]
	assert.Equal(t, types.SideSell, unwind.Side)
	assert.Equal(t, int64(50*types.StableUnits), unwind.Size)
	assert.Equal(t, 0, unwind.Price.Cmp(types.PriceFromFloat(0.48)))
	assert.Equal(t, "amm-yes", unwind.TokenID)

	// Pause cleared after the unwind filled.
	paused, _ := h.pause.Paused()
	assert.False(t, paused)

	stored, _ := h.repo.Get(res.PositionID)
	assert.Equal(t, types.PositionClosed, stored.Status)
	assert.False(t, stored.ClosedAt.IsZero())
}

func TestExecute_PartialFillUnwindRejected(t *testing.T) {
	h := newHarness(t)
	h.amm.ScriptPlace(openResult("a1"))
	h.clob.ScriptPlace(openResult("b1"))

	h.amm.ScriptStatus("a1", types.OrderState{OrderID: "a1", Status: types.OrderStatusFilled, FilledSize: 50 * types.StableUnits})
	h.clob.ScriptStatus("b1", types.OrderState{OrderID: "b1", Status: types.OrderStatusCancelled})

	// Unwind placement refused by the venue.
	h.amm.ScriptPlace(types.PlaceOrderResult{Err: "market suspended"})

	res := h.exec.Execute(context.Background(), testOpp(), 50*types.StableUnits, fastConfig())

	require.True(t, res.Executed)
	assert.Equal(t, types.PositionPartial, res.Status)

	paused, reason := h.pause.Paused()
	assert.True(t, paused)
	assert.Equal(t, PauseReasonUnwind, reason)

	// Further executions are refused while paused.
	next := h.exec.Execute(context.Background(), testOpp(), 50*types.StableUnits, fastConfig())
	assert.False(t, next.Executed)
	assert.Equal(t, ReasonPaused, next.Reason)
}

func TestExecute_TimeoutBothUnfilled(t *testing.T) {
	h := newHarness(t)
	h.amm.ScriptPlace(openResult("a1"))
	h.clob.ScriptPlace(openResult("b1"))

	// Orders rest OPEN forever; the poll budget expires.
	h.amm.ScriptStatus("a1", types.OrderState{OrderID: "a1", Status: types.OrderStatusOpen})
	h.clob.ScriptStatus("b1", types.OrderState{OrderID: "b1", Status: types.OrderStatusOpen})

	cfg := fastConfig()
	cfg.FillPollTimeout = 15 * time.Millisecond

	res := h.exec.Execute(context.Background(), testOpp(), 50*types.StableUnits, cfg)

	require.True(t, res.Executed)
	assert.Equal(t, types.PositionExpired, res.Status)

	// Both resting orders cancelled defensively.
	assert.Equal(t, []string{"a1"}, h.amm.Cancelled())
	assert.Equal(t, []string{"b1"}, h.clob.Cancelled())

	paused, _ := h.pause.Paused()
	assert.False(t, paused)
}

func TestExecute_FinalCheckCatchesLateFill(t *testing.T) {
	h := newHarness(t)
	h.amm.ScriptPlace(filledResult("a1"))
	h.clob.ScriptPlace(openResult("b1"))

	// UNKNOWN during the budget, FILLED exactly at the final check.
	script := make([]types.OrderState, 0, 40)
	for i := 0; i < 39; i++ {
		script = append(script, types.OrderState{OrderID: "b1", Status: types.OrderStatusUnknown})
	}
	script = append(script, types.OrderState{OrderID: "b1", Status: types.OrderStatusFilled, FilledSize: 50 * types.StableUnits})
	h.clob.ScriptStatus("b1", script...)

	cfg := fastConfig()
	cfg.FillPollInterval = time.Millisecond
	cfg.FillPollTimeout = 45 * time.Millisecond

	res := h.exec.Execute(context.Background(), testOpp(), 50*types.StableUnits, cfg)

	require.True(t, res.Executed)
	// Either the loop or the final check observed the fill; never EXPIRED
	// with a filled leg.
	assert.NotEqual(t, types.PositionExpired, res.Status)
}

func TestExecute_RefusedWhenPaused(t *testing.T) {
	h := newHarness(t)
	h.pause.Pause(PauseReasonUnwind)

	res := h.exec.Execute(context.Background(), testOpp(), 50*types.StableUnits, fastConfig())
	require.False(t, res.Executed)
	assert.Equal(t, ReasonPaused, res.Reason)
	assert.Empty(t, h.amm.Placed())
}

func TestExecute_MissingTokenIDRefused(t *testing.T) {
	h := newHarness(t)

	broken := &testutil.StaticResolver{Err: types.ErrMissingTokenID}
	h.exec.resolver = broken

	res := h.exec.Execute(context.Background(), testOpp(), 50*types.StableUnits, fastConfig())
	require.False(t, res.Executed)
	assert.Equal(t, ReasonMissingTokenID, res.Reason)
	assert.Empty(t, h.amm.Placed())
	assert.Empty(t, h.clob.Placed())
}

func TestExecute_FingerprintSingleBuild(t *testing.T) {
	h := newHarness(t)
	h.amm.ScriptPlace(openResult("a1"))
	h.clob.ScriptPlace(openResult("b1"))
	// No status scripts: UNKNOWN keeps the first execution polling.

	cfg := fastConfig()
	cfg.FillPollTimeout = 200 * time.Millisecond

	done := make(chan Result, 1)
	go func() {
		done <- h.exec.Execute(context.Background(), testOpp(), 50*types.StableUnits, cfg)
	}()

	// Wait until the first execution is inside the poll loop.
	require.Eventually(t, func() bool {
		return len(h.amm.Placed()) == 1
	}, time.Second, time.Millisecond)

	second := h.exec.Execute(context.Background(), testOpp(), 50*types.StableUnits, fastConfig())
	assert.False(t, second.Executed)
	assert.Equal(t, ReasonInFlight, second.Reason)

	<-done
}

func TestCancelOpen_CancelsRestingLegs(t *testing.T) {
	h := newHarness(t)
	h.amm.ScriptPlace(openResult("a1"))
	h.clob.ScriptPlace(openResult("b1"))
	h.amm.ScriptStatus("a1", types.OrderState{OrderID: "a1", Status: types.OrderStatusOpen})
	h.clob.ScriptStatus("b1", types.OrderState{OrderID: "b1", Status: types.OrderStatusOpen})

	cfg := fastConfig()
	cfg.FillPollTimeout = 10 * time.Millisecond
	h.exec.Execute(context.Background(), testOpp(), 50*types.StableUnits, cfg)

	// EXPIRED already cancelled both; CancelOpen must not double-cancel
	// terminal positions.
	before := len(h.amm.Cancelled())
	h.exec.CancelOpen(context.Background())
	assert.Equal(t, before, len(h.amm.Cancelled()))
}

func seedOpenPosition(t *testing.T, h *harness, id string) types.Position {
	t.Helper()
	pos := types.Position{
		ID:       id,
		UserID:   "user-1",
		MarketID: "m1",
		LegA: types.PositionLeg{
			Venue: "amm", TokenID: "amm-yes", Side: types.SideBuy,
			Price: types.PriceFromFloat(0.48), Size: 50 * types.StableUnits,
			OrderID: "a1", Status: types.OrderStatusOpen,
		},
		LegB: types.PositionLeg{
			Venue: "clob", TokenID: "clob-no", Side: types.SideBuy,
			Price: types.PriceFromFloat(0.49), Size: 50 * types.StableUnits,
			OrderID: "b1", Status: types.OrderStatusOpen,
		},
		Status:         types.PositionOpen,
		TotalCost:      types.PriceFromFloat(0.97),
		ExpectedPayout: types.Scale1e18,
		SizeUnits:      50 * types.StableUnits,
		OpenedAt:       time.Now().UTC(),
	}
	h.repo.Seed(pos)
	_, err := h.store.ReloadOpen(context.Background())
	require.NoError(t, err)
	return pos
}

func TestCancelOpen_SeededRestingPosition(t *testing.T) {
	h := newHarness(t)
	seedOpenPosition(t, h, "p-resting")

	h.exec.CancelOpen(context.Background())

	assert.Equal(t, []string{"a1"}, h.amm.Cancelled())
	assert.Equal(t, []string{"b1"}, h.clob.Cancelled())
}

func TestResumeOpen_SettlesReloadedPosition(t *testing.T) {
	h := newHarness(t)
	pos := seedOpenPosition(t, h, "p-reloaded")

	h.amm.ScriptStatus("a1", types.OrderState{OrderID: "a1", Status: types.OrderStatusFilled, FilledSize: 50 * types.StableUnits})
	h.clob.ScriptStatus("b1", types.OrderState{OrderID: "b1", Status: types.OrderStatusFilled, FilledSize: 50 * types.StableUnits})

	h.exec.ResumeOpen(context.Background(), fastConfig())

	stored, ok := h.repo.Get(pos.ID)
	require.True(t, ok)
	assert.Equal(t, types.PositionFilled, stored.Status)
}

func seedPartialPosition(t *testing.T, h *harness, id string) types.Position {
	t.Helper()
	pos := types.Position{
		ID:       id,
		UserID:   "user-1",
		MarketID: "m1",
		LegA: types.PositionLeg{
			Venue: "amm", TokenID: "amm-yes", Side: types.SideBuy,
			Price: types.PriceFromFloat(0.48), Size: 50 * types.StableUnits,
			OrderID: "a1", Status: types.OrderStatusFilled,
			Filled: true, FilledSize: 50 * types.StableUnits,
		},
		LegB: types.PositionLeg{
			Venue: "clob", TokenID: "clob-no", Side: types.SideBuy,
			Price: types.PriceFromFloat(0.49), Size: 50 * types.StableUnits,
			OrderID: "b1", Status: types.OrderStatusCancelled,
		},
		Status:         types.PositionPartial,
		TotalCost:      types.PriceFromFloat(0.97),
		ExpectedPayout: types.Scale1e18,
		SizeUnits:      50 * types.StableUnits,
		OpenedAt:       time.Now().UTC(),
	}
	h.repo.Seed(pos)
	_, err := h.store.ReloadOpen(context.Background())
	require.NoError(t, err)
	return pos
}

func TestResumeOpen_PartialRearmsPauseAndUnwinds(t *testing.T) {
	h := newHarness(t)
	pos := seedPartialPosition(t, h, "p-partial")

	// The pre-restart unwind sell is still resting venue-side.
	h.amm.ScriptOpenOrders(types.OpenOrder{
		OrderID: "stale-sell", TokenID: "amm-yes", MarketID: "m1",
		Side: types.SideSell, Size: 50 * types.StableUnits,
	})
	h.amm.ScriptPlace(filledResult("u2"))

	h.exec.ResumeOpen(context.Background(), fastConfig())

	// The stale sell was cancelled before the replacement went out.
	assert.Contains(t, h.amm.Cancelled(), "stale-sell")

	placed := h.amm.Placed()
	require.Len(t, placed, 1)
	assert.Equal(t, types.SideSell, placed[0].Side)
	assert.Equal(t, "amm-yes", placed[0].TokenID)

	stored, ok := h.repo.Get(pos.ID)
	require.True(t, ok)
	assert.Equal(t, types.PositionClosed, stored.Status)

	paused, _ := h.pause.Paused()
	assert.False(t, paused)
}

func TestResumeOpen_PartialStaysPausedWhenUnwindRejected(t *testing.T) {
	h := newHarness(t)
	pos := seedPartialPosition(t, h, "p-partial-stuck")

	h.amm.ScriptPlace(types.PlaceOrderResult{Err: "market suspended"})

	h.exec.ResumeOpen(context.Background(), fastConfig())

	// Still directional after the restart, so the latch must hold.
	paused, reason := h.pause.Paused()
	assert.True(t, paused)
	assert.Equal(t, PauseReasonUnwind, reason)

	stored, ok := h.repo.Get(pos.ID)
	require.True(t, ok)
	assert.Equal(t, types.PositionPartial, stored.Status)

	next := h.exec.Execute(context.Background(), testOpp(), 50*types.StableUnits, fastConfig())
	assert.False(t, next.Executed)
	assert.Equal(t, ReasonPaused, next.Reason)
}

func TestUnwindPnL(t *testing.T) {
	size := int64(50 * types.StableUnits)

	assert.Zero(t, unwindPnL(types.PriceFromFloat(0.48), types.PriceFromFloat(0.48), size))

	// Selling 1 cent above cost on 50 units realizes 0.50.
	pnl := unwindPnL(types.PriceFromFloat(0.48), types.PriceFromFloat(0.49), size)
	assert.Equal(t, int64(types.StableUnits/2), pnl)
}
