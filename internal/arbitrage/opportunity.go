package arbitrage

import (
	"math/big"
	"time"
)

// Opportunity is one executable cross-venue pairing: buy YES on one venue and
// NO on the other for a combined cost below the $1 resolution payout.
type Opportunity struct {
	MarketID string

	// Venue to buy each outcome on. The two venues always differ.
	BuyYesVenue string
	BuyNoVenue  string

	YesPrice  *big.Int // 1e18-scaled
	NoPrice   *big.Int // 1e18-scaled
	TotalCost *big.Int // YesPrice + NoPrice, strictly below 1e18

	GrossSpreadBps int64 // before fees and gas
	SpreadBps      int64 // net of venue fees
	EstProfit      int64 // stable base units at MaxSize, net of fees and gas

	// MaxSize is the executable notional, the lesser of the two legs'
	// displayed liquidity.
	MaxSize int64

	// AnnualYieldBps ranks opportunities by capital efficiency: net spread
	// scaled to a yearly rate over the market's resolution horizon.
	AnnualYieldBps int64

	SnapshotID   uint64
	DetectedAtMs int64
	ResolvesAt   time.Time
	Question     string
}
