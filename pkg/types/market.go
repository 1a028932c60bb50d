package types

import (
	"math/big"
	"time"
)

// MarketQuote is one venue's two-sided view of one binary market.
// Immutable once produced by the quote source.
type MarketQuote struct {
	Venue        string
	MarketID     string   // 32-byte hex identifier
	YesPrice     *big.Int // 1e18-scaled
	NoPrice      *big.Int // 1e18-scaled
	YesLiquidity int64    // stable-token base units
	NoLiquidity  int64    // stable-token base units

	// Optional event metadata.
	Question   string
	ResolvesAt time.Time // zero when the venue does not expose a horizon
}

// QuoteSnapshot is one refreshed view of market quotes across venues.
// SnapshotID increases monotonically per source.
type QuoteSnapshot struct {
	SnapshotID   uint64
	ProducedAtMs int64
	Quotes       []MarketQuote
}

// TokenPair holds the per-venue outcome token ids of one market.
type TokenPair struct {
	YesTokenID string
	NoTokenID  string
}
