package types

import (
	"math/big"
	"time"
)

// PositionStatus is the lifecycle state of an arbitrage position.
type PositionStatus string

const (
	// PositionOpen: both legs submitted, fills pending.
	PositionOpen PositionStatus = "OPEN"
	// PositionFilled: both legs filled; payout is locked in.
	PositionFilled PositionStatus = "FILLED"
	// PositionPartial: exactly one leg filled, the other terminal-unfilled.
	// The agent is net directional until the unwind completes.
	PositionPartial PositionStatus = "PARTIAL"
	// PositionExpired: both legs terminal without fills.
	PositionExpired PositionStatus = "EXPIRED"
	// PositionClosed: settled or unwound.
	PositionClosed PositionStatus = "CLOSED"
)

// Terminal reports whether a position can no longer transition on its own.
// PARTIAL is not terminal: it resolves through the unwind protocol or
// operator intervention.
func (s PositionStatus) Terminal() bool {
	switch s {
	case PositionFilled, PositionExpired, PositionClosed:
		return true
	default:
		return false
	}
}

// PositionLeg is one of the two orders constituting a position.
type PositionLeg struct {
	Venue      string      `json:"venue"`
	OrderID    string      `json:"orderId"`
	TokenID    string      `json:"tokenId"`
	Side       Side        `json:"side"`
	Price      *big.Int    `json:"price"` // 1e18-scaled
	Size       int64       `json:"size"`  // stable base units
	Filled     bool        `json:"filled"`
	FilledSize int64       `json:"filledSize"`
	Status     OrderStatus `json:"status"`
}

// Position is a two-legged arbitrage position.
type Position struct {
	ID             string
	UserID         string
	MarketID       string
	LegA           PositionLeg
	LegB           PositionLeg
	Status         PositionStatus
	TotalCost      *big.Int // 1e18-scaled cost per token pair
	ExpectedPayout *big.Int // 1e18-scaled, Scale1e18 for binary pairs
	SpreadBps      int64
	SizeUnits      int64 // stable base units committed per leg
	PnL            int64 // realized, stable base units; meaningful once CLOSED
	OpenedAt       time.Time
	ClosedAt       time.Time // zero until CLOSED
}

// FilledLeg returns the filled leg and the other leg when exactly one leg is
// filled. ok is false otherwise.
func (p *Position) FilledLeg() (filled, other *PositionLeg, ok bool) {
	if p.LegA.Filled == p.LegB.Filled {
		return nil, nil, false
	}
	if p.LegA.Filled {
		return &p.LegA, &p.LegB, true
	}
	return &p.LegB, &p.LegA, true
}
