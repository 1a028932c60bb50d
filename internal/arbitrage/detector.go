package arbitrage

import (
	"math/big"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/crossarb/internal/venue"
	"github.com/quantfold/crossarb/pkg/types"
)

// legGasUnits is the gas budget of one on-chain leg.
const legGasUnits = 400_000

// defaultHorizonDays is assumed when a market exposes no resolution time.
const defaultHorizonDays = 30

// Config holds detector parameters. Fees are per venue in basis points; gas
// parameters convert the on-chain leg's cost into stable base units.
type Config struct {
	MinSpreadBps   int64
	FeeBps         map[string]int64
	GasPriceWei    int64
	GasToQuoteRate float64
	Logger         *zap.Logger
}

// Detector scans quote snapshots for cross-venue pairings whose combined
// price is below the resolution payout.
type Detector struct {
	config   Config
	gasUnits int64
	logger   *zap.Logger
}

// New creates a detector.
func New(cfg Config) *Detector {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		config:   cfg,
		gasUnits: gasCostUnits(cfg.GasPriceWei, cfg.GasToQuoteRate),
		logger:   logger,
	}
}

// gasCostUnits converts a gas price into stable base units for one leg.
func gasCostUnits(gasPriceWei int64, gasToQuoteRate float64) int64 {
	wei := new(big.Int).Mul(big.NewInt(gasPriceWei), big.NewInt(legGasUnits))
	native := new(big.Float).Quo(new(big.Float).SetInt(wei), new(big.Float).SetInt(types.Scale1e18))
	quote := new(big.Float).Mul(native, big.NewFloat(gasToQuoteRate))
	units, _ := new(big.Float).Mul(quote, big.NewFloat(types.StableUnits)).Int64()
	return units
}

// Detect returns all opportunities in the snapshot at or above the minimum
// net spread, best first. Ordering is deterministic for equal inputs.
func (d *Detector) Detect(snap types.QuoteSnapshot) []Opportunity {
	start := time.Now()
	defer func() {
		DetectionDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	byMarket := make(map[string]map[string]types.MarketQuote)
	for _, q := range snap.Quotes {
		if byMarket[q.MarketID] == nil {
			byMarket[q.MarketID] = make(map[string]types.MarketQuote)
		}
		byMarket[q.MarketID][q.Venue] = q
	}

	var opps []Opportunity
	for _, venues := range byMarket {
		a, okA := venues[venue.VenueAMM]
		b, okB := venues[venue.VenueCLOB]
		if !okA || !okB {
			continue
		}

		// Two directions per market: YES here + NO there, and the reverse.
		if opp, ok := d.pair(snap, a, b); ok {
			opps = append(opps, opp)
		}
		if opp, ok := d.pair(snap, b, a); ok {
			opps = append(opps, opp)
		}
	}

	sort.Slice(opps, func(i, j int) bool {
		if opps[i].AnnualYieldBps != opps[j].AnnualYieldBps {
			return opps[i].AnnualYieldBps > opps[j].AnnualYieldBps
		}
		if opps[i].EstProfit != opps[j].EstProfit {
			return opps[i].EstProfit > opps[j].EstProfit
		}
		if opps[i].BuyYesVenue != opps[j].BuyYesVenue {
			return opps[i].BuyYesVenue < opps[j].BuyYesVenue
		}
		return opps[i].MarketID < opps[j].MarketID
	})

	OpportunitiesDetected.Add(float64(len(opps)))
	if len(opps) > 0 {
		best := opps[0]
		d.logger.Debug("opportunities-detected",
			zap.Int("count", len(opps)),
			zap.String("best-market", best.MarketID),
			zap.Int64("best-spread-bps", best.SpreadBps))
	}

	return opps
}

// pair evaluates buying YES on yesQ's venue and NO on noQ's venue.
func (d *Detector) pair(snap types.QuoteSnapshot, yesQ, noQ types.MarketQuote) (Opportunity, bool) {
	if yesQ.YesPrice == nil || noQ.NoPrice == nil {
		return Opportunity{}, false
	}
	if yesQ.YesPrice.Sign() <= 0 || noQ.NoPrice.Sign() <= 0 {
		return Opportunity{}, false
	}

	totalCost := new(big.Int).Add(yesQ.YesPrice, noQ.NoPrice)
	if totalCost.Cmp(types.Scale1e18) >= 0 {
		return Opportunity{}, false
	}

	maxSize := yesQ.YesLiquidity
	if noQ.NoLiquidity < maxSize {
		maxSize = noQ.NoLiquidity
	}
	if maxSize <= 0 {
		return Opportunity{}, false
	}

	gas := int64(0)
	if yesQ.Venue == venue.VenueAMM {
		gas += d.gasUnits
	}
	if noQ.Venue == venue.VenueAMM {
		gas += d.gasUnits
	}

	grossBps := types.SpreadBps(totalCost)
	feeBps := d.config.FeeBps[yesQ.Venue] + d.config.FeeBps[noQ.Venue]

	// Gas enters the net spread as basis points of the capital committed at
	// entry, so the minimum-spread filter sees the full cost of the trade.
	gasBps := int64(0)
	if gas > 0 {
		notional := new(big.Int).Mul(totalCost, big.NewInt(maxSize))
		notional.Div(notional, types.Scale1e18)
		if notional.Sign() <= 0 {
			return Opportunity{}, false
		}
		gasBps = gas * 10_000 / notional.Int64()
	}

	netBps := grossBps - feeBps - gasBps
	if netBps < d.config.MinSpreadBps {
		return Opportunity{}, false
	}

	estProfit := maxSize*(grossBps-feeBps)/10_000 - gas
	if estProfit <= 0 {
		return Opportunity{}, false
	}

	resolvesAt := yesQ.ResolvesAt
	if resolvesAt.IsZero() {
		resolvesAt = noQ.ResolvesAt
	}

	horizonDays := float64(defaultHorizonDays)
	if !resolvesAt.IsZero() {
		days := time.Until(resolvesAt).Hours() / 24
		if days >= 1 {
			horizonDays = days
		} else {
			horizonDays = 1
		}
	}

	question := yesQ.Question
	if question == "" {
		question = noQ.Question
	}

	return Opportunity{
		MarketID:       yesQ.MarketID,
		BuyYesVenue:    yesQ.Venue,
		BuyNoVenue:     noQ.Venue,
		YesPrice:       yesQ.YesPrice,
		NoPrice:        noQ.NoPrice,
		TotalCost:      totalCost,
		GrossSpreadBps: grossBps,
		SpreadBps:      netBps,
		EstProfit:      estProfit,
		MaxSize:        maxSize,
		AnnualYieldBps: int64(float64(netBps) * 365 / horizonDays),
		SnapshotID:     snap.SnapshotID,
		DetectedAtMs:   snap.ProducedAtMs,
		ResolvesAt:     resolvesAt,
		Question:       question,
	}, true
}
