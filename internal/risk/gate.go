package risk

import (
	"context"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/quantfold/crossarb/internal/arbitrage"
	"github.com/quantfold/crossarb/pkg/config"
	"github.com/quantfold/crossarb/pkg/types"
)

// Kelly parameters. The win probability reflects that a detected pairing is
// near-certain to pay out; the residual models venue failure and stale quotes.
const (
	kellyWinProb  = 0.95
	kellyLossProb = 0.05
)

// liquidityCapPct caps a leg at this share of displayed liquidity so one
// trade does not consume the whole book level.
const liquidityCapPct = 90

// BalanceReader exposes the stable-token balance check the gate performs
// before approving a trade.
type BalanceReader interface {
	StableBalance(ctx context.Context, owner common.Address) (int64, error)
}

// Session is the agent's accounting view at evaluation time.
type Session struct {
	TradesExecuted int
	SessionStartMs int64
	DailyLoss      int64 // realized loss for the current UTC day, positive
}

// Decision is the gate's verdict on one opportunity.
type Decision struct {
	Approved bool
	Size     int64  // stable base units per leg, zero when rejected
	Reason   string // reject reason code, empty when approved
}

// Gate sizes opportunities and rejects unsafe trades. One Gate serves one
// agent and reads that agent's config on every evaluation so config updates
// between scans take effect immediately.
type Gate struct {
	balances BalanceReader
	owner    common.Address
	logger   *zap.Logger
}

// NewGate creates a risk gate for the given owner address.
func NewGate(balances BalanceReader, owner common.Address, logger *zap.Logger) *Gate {
	return &Gate{
		balances: balances,
		owner:    owner,
		logger:   logger,
	}
}

// Evaluate sizes the opportunity and runs every risk check in order. The
// first failing check rejects with its reason code.
func (g *Gate) Evaluate(
	ctx context.Context,
	opp arbitrage.Opportunity,
	cfg config.AgentConfig,
	session Session,
	now time.Time,
) Decision {
	// Session caps cost nothing to check and bound everything else.
	if cfg.MaxTotalTrades > 0 && session.TradesExecuted >= cfg.MaxTotalTrades {
		return g.reject(opp, types.RejectMaxTrades)
	}
	if cfg.TradingDuration > 0 {
		elapsed := now.UnixMilli() - session.SessionStartMs
		if elapsed >= cfg.TradingDuration.Milliseconds() {
			return g.reject(opp, types.RejectSessionExpired)
		}
	}
	if cfg.DailyLossLimit > 0 && session.DailyLoss >= cfg.DailyLossLimit {
		return g.reject(opp, types.RejectDailyLossLimit)
	}

	if cfg.MaxResolutionDays > 0 && !opp.ResolvesAt.IsZero() {
		horizon := now.Add(time.Duration(cfg.MaxResolutionDays) * 24 * time.Hour)
		if opp.ResolvesAt.After(horizon) {
			return g.reject(opp, types.RejectResolutionTooFar)
		}
	}

	balance, err := g.balances.StableBalance(ctx, g.owner)
	if err != nil {
		g.logger.Warn("balance-check-failed", zap.Error(err))
		return g.reject(opp, types.RejectInsufficientFunds)
	}

	size := sizeNotional(opp, cfg, balance)
	if size < cfg.MinTradeSize {
		return g.reject(opp, types.RejectBelowMinSize)
	}
	if balance < size {
		return g.reject(opp, types.RejectInsufficientFunds)
	}

	ApprovalsTotal.Inc()
	return Decision{Approved: true, Size: size}
}

func (g *Gate) reject(opp arbitrage.Opportunity, reason string) Decision {
	RejectionsTotal.WithLabelValues(reason).Inc()
	g.logger.Debug("opportunity-rejected",
		zap.String("market", opp.MarketID),
		zap.String("reason", reason))
	return Decision{Reason: reason}
}

// sizeNotional computes the per-leg notional: half the max trade size, capped
// by 90% of executable liquidity, then shrunk to the half-Kelly fraction of
// available capital.
func sizeNotional(opp arbitrage.Opportunity, cfg config.AgentConfig, capital int64) int64 {
	notional := cfg.MaxTradeSize / 2

	liquidityCap := opp.MaxSize / 100 * liquidityCapPct
	if liquidityCap < notional {
		notional = liquidityCap
	}

	// Round to the nearest base unit; truncation would shave a unit off
	// exact fractions like 0.25 of the capital.
	fraction := kellyFraction(opp.TotalCost)
	kellyCap := int64(math.Round(fraction * float64(capital)))
	if kellyCap < notional {
		notional = kellyCap
	}

	if notional < 0 {
		return 0
	}
	return notional
}

// kellyFraction returns the half-Kelly stake fraction for a pairing costing
// totalCost per $1 of payout. b is the net odds of the trade.
func kellyFraction(totalCost *big.Int) float64 {
	cost := new(big.Float).SetInt(totalCost)
	payout := new(big.Float).SetInt(types.Scale1e18)

	edge := new(big.Float).Sub(payout, cost)
	b, _ := new(big.Float).Quo(edge, cost).Float64()
	if b <= 0 {
		return 0
	}

	f := (kellyWinProb*b - kellyLossProb) / b
	if f < 0 {
		return 0
	}
	return f / 2
}
