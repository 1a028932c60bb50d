package execution

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantfold/crossarb/internal/arbitrage"
	"github.com/quantfold/crossarb/internal/markets"
	"github.com/quantfold/crossarb/internal/position"
	"github.com/quantfold/crossarb/internal/venue"
	"github.com/quantfold/crossarb/pkg/config"
	"github.com/quantfold/crossarb/pkg/types"
)

// Failure reason codes returned in Result.Reason.
const (
	ReasonPaused          = "paused"
	ReasonInFlight        = "execution_in_flight"
	ReasonMissingTokenID  = "missing_token_id"
	ReasonUnknownVenue    = "unknown_venue"
	ReasonPlacementFailed = "leg_placement_failed"
)

// Result is the outcome of one execution attempt. The executor never panics
// or propagates errors upward; everything is captured here.
type Result struct {
	Executed   bool
	PositionID string
	Status     types.PositionStatus
	PnL        int64
	Reason     string // set when Executed is false
}

// Executor turns a sized opportunity into a two-legged position whose legs
// end both filled, both unfilled, or cleanly unwound. At most one execution
// runs per market for this user; the agent is paused while a partial fill
// awaits its unwind.
type Executor struct {
	userID   string
	adapters map[string]venue.Adapter
	resolver markets.Resolver
	store    *position.Store
	pause    *PauseState
	logger   *zap.Logger

	mu       sync.Mutex
	inflight map[string]struct{} // marketID set
}

// New creates an executor over the user's venue adapters.
func New(
	userID string,
	adapters map[string]venue.Adapter,
	resolver markets.Resolver,
	store *position.Store,
	pause *PauseState,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		userID:   userID,
		adapters: adapters,
		resolver: resolver,
		store:    store,
		pause:    pause,
		logger:   logger,
		inflight: make(map[string]struct{}),
	}
}

// Execute runs the full placement, polling and classification sequence for
// one opportunity at the given per-leg notional.
func (e *Executor) Execute(ctx context.Context, opp arbitrage.Opportunity, size int64, cfg config.AgentConfig) Result {
	if paused, _ := e.pause.Paused(); paused {
		return Result{Reason: ReasonPaused}
	}

	e.mu.Lock()
	if _, busy := e.inflight[opp.MarketID]; busy {
		e.mu.Unlock()
		return Result{Reason: ReasonInFlight}
	}
	e.inflight[opp.MarketID] = struct{}{}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.inflight, opp.MarketID)
		e.mu.Unlock()
	}()

	res := e.execute(ctx, opp, size, cfg)
	if res.Executed {
		ExecutionsTotal.WithLabelValues(string(res.Status)).Inc()
	} else {
		ExecutionsTotal.WithLabelValues("refused_" + res.Reason).Inc()
	}
	return res
}

func (e *Executor) execute(ctx context.Context, opp arbitrage.Opportunity, size int64, cfg config.AgentConfig) Result {
	yesAdapter, ok := e.adapters[opp.BuyYesVenue]
	if !ok {
		return Result{Reason: ReasonUnknownVenue}
	}
	noAdapter, ok := e.adapters[opp.BuyNoVenue]
	if !ok {
		return Result{Reason: ReasonUnknownVenue}
	}

	yesPair, err := e.resolver.TokenPair(ctx, opp.BuyYesVenue, opp.MarketID)
	if err != nil {
		e.logger.Warn("token-resolve-failed",
			zap.String("venue", opp.BuyYesVenue),
			zap.String("market", opp.MarketID),
			zap.Error(err))
		return Result{Reason: ReasonMissingTokenID}
	}
	noPair, err := e.resolver.TokenPair(ctx, opp.BuyNoVenue, opp.MarketID)
	if err != nil {
		e.logger.Warn("token-resolve-failed",
			zap.String("venue", opp.BuyNoVenue),
			zap.String("market", opp.MarketID),
			zap.Error(err))
		return Result{Reason: ReasonMissingTokenID}
	}

	legA := types.PositionLeg{
		Venue:   opp.BuyYesVenue,
		TokenID: yesPair.YesTokenID,
		Side:    types.SideBuy,
		Price:   opp.YesPrice,
		Size:    size,
	}
	legB := types.PositionLeg{
		Venue:   opp.BuyNoVenue,
		TokenID: noPair.NoTokenID,
		Side:    types.SideBuy,
		Price:   opp.NoPrice,
		Size:    size,
	}

	// Both legs go out concurrently and join before anything else happens.
	var resA, resB types.PlaceOrderResult
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		resA = yesAdapter.PlaceOrder(ctx, e.toRequest(opp.MarketID, legA))
	}()
	go func() {
		defer wg.Done()
		resB = noAdapter.PlaceOrder(ctx, e.toRequest(opp.MarketID, legB))
	}()
	wg.Wait()

	if !resA.Success || !resB.Success {
		// One-sided success leaves an orphan; cancel it best-effort.
		if resA.Success {
			yesAdapter.CancelOrder(ctx, resA.OrderID, legA.TokenID)
		}
		if resB.Success {
			noAdapter.CancelOrder(ctx, resB.OrderID, legB.TokenID)
		}
		e.logger.Warn("leg-placement-failed",
			zap.String("market", opp.MarketID),
			zap.String("yes-error", resA.Err),
			zap.String("no-error", resB.Err))
		return Result{Reason: ReasonPlacementFailed}
	}

	applyPlacement(&legA, resA)
	applyPlacement(&legB, resB)

	pos := types.Position{
		ID:             uuid.New().String(),
		UserID:         e.userID,
		MarketID:       opp.MarketID,
		LegA:           legA,
		LegB:           legB,
		Status:         types.PositionOpen,
		TotalCost:      opp.TotalCost,
		ExpectedPayout: types.Scale1e18,
		SpreadBps:      opp.SpreadBps,
		SizeUnits:      size,
		OpenedAt:       time.Now().UTC(),
	}

	if err := e.store.Open(ctx, pos); err != nil {
		// The legs are live; keep going and rely on the in-memory view.
		e.logger.Error("position-persist-failed", zap.String("id", pos.ID), zap.Error(err))
	}

	// Immediate two-sided fill skips the poll loop entirely.
	if !pos.LegA.Filled || !pos.LegB.Filled {
		e.pollFills(ctx, &pos, cfg)
	}

	return e.classify(ctx, &pos, cfg)
}

func (e *Executor) toRequest(marketID string, leg types.PositionLeg) types.PlaceOrderRequest {
	return types.PlaceOrderRequest{
		MarketID: marketID,
		TokenID:  leg.TokenID,
		Side:     leg.Side,
		Price:    leg.Price,
		Size:     leg.Size,
	}
}

// applyPlacement folds a placement result into the leg.
func applyPlacement(leg *types.PositionLeg, res types.PlaceOrderResult) {
	leg.OrderID = res.OrderID
	leg.Status = res.Status
	if res.Status == types.OrderStatusFilled {
		leg.Filled = true
		leg.FilledSize = leg.Size
	}
}

// pollFills drives both legs toward a terminal state within the fill budget.
func (e *Executor) pollFills(ctx context.Context, pos *types.Position, cfg config.AgentConfig) {
	start := time.Now()
	defer func() {
		FillPollDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	deadline := time.After(cfg.FillPollTimeout)
	ticker := time.NewTicker(cfg.FillPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			// Final check: catch last-moment fills before classification.
			e.refreshLegs(ctx, pos)
			return
		case <-ticker.C:
			e.refreshLegs(ctx, pos)
			if legsSettled(pos) {
				return
			}
		}
	}
}

// refreshLegs fetches both non-filled legs' statuses concurrently. UNKNOWN
// responses leave the leg untouched; the next tick tries again.
func (e *Executor) refreshLegs(ctx context.Context, pos *types.Position) {
	var wg sync.WaitGroup
	for _, leg := range []*types.PositionLeg{&pos.LegA, &pos.LegB} {
		if leg.Filled || leg.Status.Terminal() {
			continue
		}
		wg.Add(1)
		go func(leg *types.PositionLeg) {
			defer wg.Done()

			state := e.adapters[leg.Venue].GetOrderStatus(ctx, leg.OrderID)
			if state.Status == types.OrderStatusUnknown {
				return
			}

			leg.Status = state.Status
			if state.FilledSize > leg.FilledSize {
				leg.FilledSize = state.FilledSize
			}
			if state.Status == types.OrderStatusFilled || leg.FilledSize >= leg.Size {
				leg.Filled = true
			}
		}(leg)
	}
	wg.Wait()
}

// legsSettled reports whether polling can stop: both filled, both terminal
// without fills, or one of each.
func legsSettled(pos *types.Position) bool {
	aDone := pos.LegA.Filled || pos.LegA.Status.Terminal()
	bDone := pos.LegB.Filled || pos.LegB.Status.Terminal()
	return aDone && bDone
}

// classify turns the settled legs into the position's terminal state and
// runs the unwind when exactly one leg filled.
func (e *Executor) classify(ctx context.Context, pos *types.Position, cfg config.AgentConfig) Result {
	switch {
	case pos.LegA.Filled && pos.LegB.Filled:
		pos.Status = types.PositionFilled
		e.commit(ctx, pos)
		return Result{Executed: true, PositionID: pos.ID, Status: pos.Status}

	case !pos.LegA.Filled && !pos.LegB.Filled:
		// Defensive double-cancel; the orders may only be resting, not dead.
		e.cancelLeg(ctx, &pos.LegA)
		e.cancelLeg(ctx, &pos.LegB)
		pos.Status = types.PositionExpired
		e.commit(ctx, pos)
		return Result{Executed: true, PositionID: pos.ID, Status: pos.Status}

	default:
		return e.unwind(ctx, pos, cfg)
	}
}

// unwind handles the one-filled-leg case: cancel the unfilled leg, pause the
// agent, sell back the acquired tokens at the fill price, and close the
// position only when that sell fills.
func (e *Executor) unwind(ctx context.Context, pos *types.Position, cfg config.AgentConfig) Result {
	filled, other, ok := pos.FilledLeg()
	if !ok {
		// Unreachable from classify; refuse rather than guess.
		e.logger.Error("unwind-without-single-filled-leg", zap.String("id", pos.ID))
		return Result{Reason: ReasonPlacementFailed}
	}

	// Pause before any unwind I/O so no new execution starts meanwhile.
	e.pause.Pause(PauseReasonUnwind)
	pos.Status = types.PositionPartial
	e.commit(ctx, pos)
	PartialFillsTotal.Inc()

	e.cancelLeg(ctx, other)

	adapter := e.adapters[filled.Venue]
	unwindReq := types.PlaceOrderRequest{
		MarketID: pos.MarketID,
		TokenID:  filled.TokenID,
		Side:     types.SideSell,
		Price:    filled.Price,
		Size:     filled.Size,
	}

	res := adapter.PlaceOrder(ctx, unwindReq)
	if !res.Success {
		e.logger.Error("unwind-placement-failed",
			zap.String("position", pos.ID),
			zap.String("venue", filled.Venue),
			zap.String("error", res.Err))
		UnwindsTotal.WithLabelValues("rejected").Inc()
		return Result{Executed: true, PositionID: pos.ID, Status: pos.Status}
	}

	if e.awaitUnwindFill(ctx, adapter, res, cfg) {
		pnl := unwindPnL(filled.Price, unwindReq.Price, filled.FilledSize)
		pos.PnL = pnl
		pos.Status = types.PositionClosed
		pos.ClosedAt = time.Now().UTC()
		e.commit(ctx, pos)
		e.pause.Clear()
		UnwindsTotal.WithLabelValues("filled").Inc()
		e.logger.Info("unwind-complete",
			zap.String("position", pos.ID),
			zap.Int64("pnl", pnl))
		return Result{Executed: true, PositionID: pos.ID, Status: pos.Status, PnL: pnl}
	}

	// Still directional: stay paused, leave PARTIAL for the operator.
	UnwindsTotal.WithLabelValues("unresolved").Inc()
	e.logger.Error("unwind-unresolved-operator-required",
		zap.String("position", pos.ID),
		zap.String("unwind-order", res.OrderID))
	return Result{Executed: true, PositionID: pos.ID, Status: pos.Status}
}

// awaitUnwindFill polls the unwind order a bounded number of times.
func (e *Executor) awaitUnwindFill(ctx context.Context, adapter venue.Adapter, res types.PlaceOrderResult, cfg config.AgentConfig) bool {
	if res.Status == types.OrderStatusFilled {
		return true
	}

	maxPolls := cfg.UnwindMaxPolls
	if maxPolls <= 0 {
		maxPolls = 6
	}

	for i := 0; i < maxPolls; i++ {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(cfg.UnwindPollInterval):
		}

		state := adapter.GetOrderStatus(ctx, res.OrderID)
		switch state.Status {
		case types.OrderStatusFilled:
			return true
		case types.OrderStatusCancelled, types.OrderStatusExpired:
			return false
		}
	}
	return false
}

// unwindPnL is the realized pnl of an unwind: sell proceeds minus buy cost
// on the filled size. With the unwind priced at the fill price it is zero;
// the general form covers a future re-priced unwind.
func unwindPnL(buyPrice, sellPrice *big.Int, filledSize int64) int64 {
	diff := new(big.Int).Sub(sellPrice, buyPrice)
	diff.Mul(diff, big.NewInt(filledSize))
	diff.Div(diff, types.Scale1e18)
	return diff.Int64()
}

// cancelLeg cancels a leg's order unless it is already terminal-dead.
func (e *Executor) cancelLeg(ctx context.Context, leg *types.PositionLeg) {
	if leg.OrderID == "" || leg.Status == types.OrderStatusCancelled {
		return
	}
	adapter, ok := e.adapters[leg.Venue]
	if !ok {
		return
	}
	if adapter.CancelOrder(ctx, leg.OrderID, leg.TokenID) {
		leg.Status = types.OrderStatusCancelled
	}
}

// commit writes the position transition; persistence failures are logged and
// absorbed so the execution outcome still reaches the agent.
func (e *Executor) commit(ctx context.Context, pos *types.Position) {
	if err := e.store.Update(ctx, *pos); err != nil {
		e.logger.Error("position-transition-persist-failed",
			zap.String("id", pos.ID),
			zap.String("status", string(pos.Status)),
			zap.Error(err))
	}
}

// CancelOpen cancels both legs of every non-terminal position. Called on
// agent stop so resting orders are not abandoned.
func (e *Executor) CancelOpen(ctx context.Context) {
	for _, pos := range e.store.ListNonTerminal() {
		e.cancelLeg(ctx, &pos.LegA)
		e.cancelLeg(ctx, &pos.LegB)
		e.logger.Info("open-position-orders-cancelled", zap.String("id", pos.ID))
	}
}

// ResumeOpen re-enters reloaded non-terminal positions into their pending
// work: OPEN positions resume fill polling, PARTIAL positions re-arm the
// pause and resume the unwind. Used once at agent start after the store
// reloads from the repository.
func (e *Executor) ResumeOpen(ctx context.Context, cfg config.AgentConfig) {
	for _, pos := range e.store.ListNonTerminal() {
		p := pos
		switch p.Status {
		case types.PositionOpen:
			e.logger.Info("resuming-fill-poll", zap.String("id", p.ID))
			if !legsSettled(&p) {
				e.pollFills(ctx, &p, cfg)
			}
			e.classify(ctx, &p, cfg)

		case types.PositionPartial:
			// The pause latch lives in memory only; re-arm it before any
			// unwind I/O so the restarted agent cannot trade while the
			// position is still directional.
			e.pause.Pause(PauseReasonUnwind)
			e.logger.Warn("resuming-unwind", zap.String("id", p.ID))
			e.resumeUnwind(ctx, &p, cfg)
		}
	}
}

// resumeUnwind re-runs the unwind for a PARTIAL position reloaded after a
// restart. The interrupted unwind sell may still rest venue-side under an
// order id that was never persisted, so any resting sell on the filled leg's
// token is cancelled first to keep the exit single-sided.
func (e *Executor) resumeUnwind(ctx context.Context, pos *types.Position, cfg config.AgentConfig) {
	filled, _, ok := pos.FilledLeg()
	if !ok {
		e.logger.Error("resume-unwind-without-single-filled-leg", zap.String("id", pos.ID))
		return
	}

	adapter, found := e.adapters[filled.Venue]
	if !found {
		e.logger.Error("resume-unwind-unknown-venue",
			zap.String("id", pos.ID),
			zap.String("venue", filled.Venue))
		return
	}

	for _, o := range adapter.GetOpenOrders(ctx) {
		if o.TokenID == filled.TokenID && o.Side == types.SideSell {
			adapter.CancelOrder(ctx, o.OrderID, o.TokenID)
		}
	}

	e.unwind(ctx, pos, cfg)
}
