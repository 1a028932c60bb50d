package arbitrage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/crossarb/pkg/types"
)

func newDetector(minSpreadBps int64) *Detector {
	return New(Config{
		MinSpreadBps: minSpreadBps,
		FeeBps:       map[string]int64{"amm": 20, "clob": 10},
	})
}

func snapOf(quotes ...types.MarketQuote) types.QuoteSnapshot {
	return types.QuoteSnapshot{
		SnapshotID:   7,
		ProducedAtMs: time.Now().UnixMilli(),
		Quotes:       quotes,
	}
}

func q(venueName, market string, yes, no float64, liq int64) types.MarketQuote {
	return types.MarketQuote{
		Venue:        venueName,
		MarketID:     market,
		YesPrice:     types.PriceFromFloat(yes),
		NoPrice:      types.PriceFromFloat(no),
		YesLiquidity: liq,
		NoLiquidity:  liq,
	}
}

func TestDetect_FindsCrossVenueSpread(t *testing.T) {
	d := newDetector(50)

	// YES cheap on amm (0.48), NO cheap on clob (0.49): cost 0.97.
	snap := snapOf(
		q("amm", "m1", 0.48, 0.55, 1000*types.StableUnits),
		q("clob", "m1", 0.53, 0.49, 800*types.StableUnits),
	)

	opps := d.Detect(snap)
	require.NotEmpty(t, opps)

	best := opps[0]
	assert.Equal(t, "m1", best.MarketID)
	assert.Equal(t, "amm", best.BuyYesVenue)
	assert.Equal(t, "clob", best.BuyNoVenue)
	assert.Equal(t, int64(300), best.GrossSpreadBps)
	assert.Equal(t, int64(270), best.SpreadBps) // 300 - 20 - 10
	assert.Equal(t, int64(800*types.StableUnits), best.MaxSize)
	assert.Equal(t, uint64(7), best.SnapshotID)
}

func TestDetect_BothDirectionsConsidered(t *testing.T) {
	d := newDetector(10)

	// Reverse direction: YES cheap on clob, NO cheap on amm.
	snap := snapOf(
		q("amm", "m1", 0.55, 0.42, 1000*types.StableUnits),
		q("clob", "m1", 0.45, 0.58, 1000*types.StableUnits),
	)

	opps := d.Detect(snap)
	require.Len(t, opps, 1)
	assert.Equal(t, "clob", opps[0].BuyYesVenue)
	assert.Equal(t, "amm", opps[0].BuyNoVenue)
}

func TestDetect_RejectsCostAtOrAboveDollar(t *testing.T) {
	d := newDetector(0)

	snap := snapOf(
		q("amm", "m1", 0.50, 0.52, 1000*types.StableUnits),
		q("clob", "m1", 0.52, 0.50, 1000*types.StableUnits),
	)

	assert.Empty(t, d.Detect(snap))
}

func TestDetect_MinSpreadFilter(t *testing.T) {
	// Gross 300bps, net 270 after fees; threshold above that filters it.
	snap := snapOf(
		q("amm", "m1", 0.48, 0.55, 1000*types.StableUnits),
		q("clob", "m1", 0.53, 0.49, 1000*types.StableUnits),
	)

	assert.NotEmpty(t, newDetector(270).Detect(snap))
	assert.Empty(t, newDetector(271).Detect(snap))
}

func TestDetect_SingleVenueMarketSkipped(t *testing.T) {
	d := newDetector(0)

	snap := snapOf(q("amm", "m1", 0.40, 0.40, 1000*types.StableUnits))
	assert.Empty(t, d.Detect(snap))
}

func TestDetect_GasReducesProfit(t *testing.T) {
	// 50 gwei, rate 1.0: one on-chain leg costs 400k * 50e9 / 1e18 = 0.02
	// quote tokens = 20_000 base units.
	d := New(Config{
		MinSpreadBps:   0,
		FeeBps:         map[string]int64{},
		GasPriceWei:    50_000_000_000,
		GasToQuoteRate: 1.0,
	})

	snap := snapOf(
		q("amm", "m1", 0.48, 0.55, 100*types.StableUnits),
		q("clob", "m1", 0.53, 0.49, 100*types.StableUnits),
	)

	opps := d.Detect(snap)
	require.NotEmpty(t, opps)

	// 100 units * 300bps = 3.00 minus 0.02 gas for the amm leg.
	assert.Equal(t, int64(3_000_000-20_000), opps[0].EstProfit)

	// Gas shows up in the net spread too: 0.02 over 97.00 committed = 2bps.
	assert.Equal(t, int64(298), opps[0].SpreadBps)
}

func TestDetect_GasCountsAgainstMinSpread(t *testing.T) {
	cfg := Config{
		MinSpreadBps:   0,
		FeeBps:         map[string]int64{},
		GasPriceWei:    50_000_000_000,
		GasToQuoteRate: 1.0,
	}

	snap := snapOf(
		q("amm", "m1", 0.48, 0.55, 100*types.StableUnits),
		q("clob", "m1", 0.53, 0.49, 100*types.StableUnits),
	)

	// Net of gas the spread is 298bps; a threshold between net and gross
	// must reject, which it would not if gas were ignored in the filter.
	cfg.MinSpreadBps = 298
	assert.NotEmpty(t, New(cfg).Detect(snap))

	cfg.MinSpreadBps = 299
	assert.Empty(t, New(cfg).Detect(snap))
}

func TestDetect_RankingPrefersNearerResolution(t *testing.T) {
	d := newDetector(0)

	soon := time.Now().Add(7 * 24 * time.Hour)
	far := time.Now().Add(180 * 24 * time.Hour)

	nearQ := q("amm", "m-near", 0.48, 0.55, 1000*types.StableUnits)
	nearQ.ResolvesAt = soon
	nearQ2 := q("clob", "m-near", 0.53, 0.49, 1000*types.StableUnits)
	nearQ2.ResolvesAt = soon

	farQ := q("amm", "m-far", 0.47, 0.55, 1000*types.StableUnits)
	farQ.ResolvesAt = far
	farQ2 := q("clob", "m-far", 0.53, 0.48, 1000*types.StableUnits)
	farQ2.ResolvesAt = far

	opps := d.Detect(snapOf(nearQ, nearQ2, farQ, farQ2))
	require.NotEmpty(t, opps)

	// The far market has the wider spread but the near one annualizes better.
	assert.Equal(t, "m-near", opps[0].MarketID)
}

func TestDetect_DeterministicOrder(t *testing.T) {
	d := newDetector(0)

	snap := snapOf(
		q("amm", "m1", 0.48, 0.55, 1000*types.StableUnits),
		q("clob", "m1", 0.53, 0.49, 1000*types.StableUnits),
		q("amm", "m2", 0.48, 0.55, 1000*types.StableUnits),
		q("clob", "m2", 0.53, 0.49, 1000*types.StableUnits),
	)

	first := d.Detect(snap)
	second := d.Detect(snap)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].MarketID, second[i].MarketID)
		assert.Equal(t, first[i].BuyYesVenue, second[i].BuyYesVenue)
	}
}

func TestGasCostUnits(t *testing.T) {
	assert.Equal(t, int64(0), gasCostUnits(0, 1.0))
	assert.Equal(t, int64(20_000), gasCostUnits(50_000_000_000, 1.0))
	assert.Equal(t, int64(10_000), gasCostUnits(50_000_000_000, 0.5))
}
