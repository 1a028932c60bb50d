package agent

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/crossarb/internal/arbitrage"
	"github.com/quantfold/crossarb/internal/execution"
	"github.com/quantfold/crossarb/internal/position"
	"github.com/quantfold/crossarb/internal/risk"
	"github.com/quantfold/crossarb/internal/venue"
	"github.com/quantfold/crossarb/pkg/config"
	"github.com/quantfold/crossarb/pkg/types"
)

// QuoteSource produces merged cross-venue snapshots.
type QuoteSource interface {
	Snapshot(ctx context.Context) types.QuoteSnapshot
}

// Detector ranks arbitrage opportunities in a snapshot.
type Detector interface {
	Detect(snap types.QuoteSnapshot) []arbitrage.Opportunity
}

// RiskGate sizes and approves opportunities.
type RiskGate interface {
	Evaluate(ctx context.Context, opp arbitrage.Opportunity, cfg config.AgentConfig, session risk.Session, now time.Time) risk.Decision
}

// Executor runs the two-legged placement sequence.
type Executor interface {
	Execute(ctx context.Context, opp arbitrage.Opportunity, size int64, cfg config.AgentConfig) execution.Result
	CancelOpen(ctx context.Context)
	ResumeOpen(ctx context.Context, cfg config.AgentConfig)
}

// Deps wires one agent's collaborators. Everything here is owned by the
// supervisor and scoped to a single user.
type Deps struct {
	UserID       string
	Quotes       QuoteSource
	Detector     Detector
	Gate         RiskGate
	Executor     Executor
	Adapters     map[string]venue.Adapter
	Store        *position.Store
	Pause        *execution.PauseState
	Losses       *risk.LossTracker
	ScanInterval time.Duration
	Logger       *zap.Logger
}

// State is the agent's externally visible snapshot, served over the HTTP API.
type State struct {
	UserID         string             `json:"userId"`
	Running        bool               `json:"running"`
	Paused         bool               `json:"paused"`
	PauseReason    string             `json:"pauseReason,omitempty"`
	TradesExecuted int                `json:"tradesExecuted"`
	PnLRealized    int64              `json:"pnlRealized"`
	SessionStartMs int64              `json:"sessionStartMs"`
	LastScanMs     int64              `json:"lastScanMs"`
	Config         config.AgentConfig `json:"config"`
}

// Agent runs one user's scan-evaluate-execute loop. The loop goroutine owns
// all trading I/O; Start, Stop, State and UpdateConfig are safe from any
// goroutine.
type Agent struct {
	deps Deps

	mu             sync.Mutex
	cfg            config.AgentConfig
	running        bool
	sessionStartMs int64
	lastScanMs     int64
	tradesExecuted int
	cancel         context.CancelFunc
	done           chan struct{}
}

// New creates a stopped agent with the given trading options.
func New(deps Deps, cfg config.AgentConfig) *Agent {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Agent{deps: deps, cfg: cfg}
}

// Start authenticates venues, reloads open positions, resumes their fill
// polling, and launches the scan loop. Starting a running agent is an error.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return types.ErrAgentRunning
	}
	cfg := a.cfg
	a.mu.Unlock()

	for name, adapter := range a.deps.Adapters {
		if err := adapter.Authenticate(ctx); err != nil {
			a.deps.Logger.Error("venue-auth-failed",
				zap.String("venue", name), zap.Error(err))
			return err
		}
		// A failed approval degrades live trading but must not keep the
		// agent down; the adapter retries approval work on demand.
		if err := adapter.EnsureApprovals(ctx); err != nil {
			a.deps.Logger.Warn("venue-approvals-failed",
				zap.String("venue", name), zap.Error(err))
		}
	}

	reloaded, err := a.deps.Store.ReloadOpen(ctx)
	if err != nil {
		return err
	}
	if len(reloaded) > 0 {
		a.deps.Logger.Info("open-positions-reloaded",
			zap.String("user", a.deps.UserID),
			zap.Int("count", len(reloaded)))
		a.deps.Executor.ResumeOpen(ctx, cfg)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	a.mu.Lock()
	a.running = true
	a.sessionStartMs = time.Now().UnixMilli()
	a.tradesExecuted = 0
	a.cancel = cancel
	a.done = done
	a.mu.Unlock()

	AgentsRunning.Inc()
	a.deps.Logger.Info("agent-started", zap.String("user", a.deps.UserID))

	go a.loop(loopCtx, done)
	return nil
}

// Stop halts the scan loop, waits for any in-flight execution to finish, and
// cancels resting orders of open positions.
func (a *Agent) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return types.ErrAgentNotRunning
	}
	cancel := a.cancel
	done := a.done
	a.mu.Unlock()

	cancel()
	<-done

	a.mu.Lock()
	if !a.running {
		// A concurrent Stop won the race past the wait.
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	a.deps.Executor.CancelOpen(ctx)

	AgentsRunning.Dec()
	a.deps.Logger.Info("agent-stopped", zap.String("user", a.deps.UserID))
	return nil
}

// UpdateConfig validates and swaps the trading options. The next scan uses
// the new values; an in-flight execution keeps the old ones.
func (a *Agent) UpdateConfig(cfg config.AgentConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()

	a.deps.Logger.Info("agent-config-updated", zap.String("user", a.deps.UserID))
	return nil
}

// State returns the agent's current snapshot.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()

	paused, reason := a.deps.Pause.Paused()
	return State{
		UserID:         a.deps.UserID,
		Running:        a.running,
		Paused:         paused,
		PauseReason:    reason,
		TradesExecuted: a.tradesExecuted,
		PnLRealized:    a.deps.Store.RealizedPnL(),
		SessionStartMs: a.sessionStartMs,
		LastScanMs:     a.lastScanMs,
		Config:         a.cfg,
	}
}

// loop scans on the configured interval. Scans run synchronously so a slow
// execution coalesces pending ticks instead of stacking scans.
func (a *Agent) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	interval := a.deps.ScanInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if a.sessionExpired() {
				a.deps.Logger.Info("session-limits-reached",
					zap.String("user", a.deps.UserID))
				go func() {
					// Stop waits on the loop; it cannot run inline here.
					stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
					defer cancel()
					_ = a.Stop(stopCtx)
				}()
				return
			}
			a.scan(ctx)
		}
	}
}

// sessionExpired reports whether a session cap ended the trading session.
func (a *Agent) sessionExpired() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cfg.MaxTotalTrades > 0 && a.tradesExecuted >= a.cfg.MaxTotalTrades {
		return true
	}
	if a.cfg.TradingDuration > 0 {
		elapsed := time.Now().UnixMilli() - a.sessionStartMs
		if elapsed >= a.cfg.TradingDuration.Milliseconds() {
			return true
		}
	}
	return false
}

// scan runs one snapshot-detect-evaluate-execute pass. Opportunities are
// tried best-first; a risk rejection moves on to the next one, an execution
// (of any outcome) ends the pass.
func (a *Agent) scan(ctx context.Context) {
	start := time.Now()
	ScansTotal.Inc()
	defer func() {
		ScanDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	a.mu.Lock()
	cfg := a.cfg
	session := risk.Session{
		TradesExecuted: a.tradesExecuted,
		SessionStartMs: a.sessionStartMs,
		DailyLoss:      a.deps.Losses.TodayLoss(start),
	}
	a.lastScanMs = start.UnixMilli()
	a.mu.Unlock()

	snap := a.deps.Quotes.Snapshot(ctx)
	if len(snap.Quotes) == 0 {
		return
	}

	opps := a.deps.Detector.Detect(snap)
	for _, opp := range opps {
		decision := a.deps.Gate.Evaluate(ctx, opp, cfg, session, time.Now())
		if !decision.Approved {
			continue
		}

		res := a.deps.Executor.Execute(ctx, opp, decision.Size, cfg)
		if !res.Executed {
			a.deps.Logger.Debug("execution-refused",
				zap.String("market", opp.MarketID),
				zap.String("reason", res.Reason))
			return
		}

		a.deps.Losses.Record(res.PnL, time.Now())

		a.mu.Lock()
		a.tradesExecuted++
		a.mu.Unlock()

		TradesTotal.WithLabelValues(string(res.Status)).Inc()
		a.deps.Logger.Info("trade-executed",
			zap.String("user", a.deps.UserID),
			zap.String("market", opp.MarketID),
			zap.String("position", res.PositionID),
			zap.String("status", string(res.Status)),
			zap.Int64("size", decision.Size),
			zap.Int64("pnl", res.PnL))
		return
	}
}
