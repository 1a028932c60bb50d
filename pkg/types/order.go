package types

import (
	"math/big"
	"strings"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderStatus is the normalized order status set. Every venue-specific
// status string is mapped into this closed set before it leaves an adapter.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusPartial   OrderStatus = "PARTIAL"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusExpired   OrderStatus = "EXPIRED"
	OrderStatusUnknown   OrderStatus = "UNKNOWN"
)

// statusAliases maps venue vocabularies onto the normalized set.
var statusAliases = map[string]OrderStatus{
	"OPEN":             OrderStatusOpen,
	"LIVE":             OrderStatusOpen,
	"PENDING":          OrderStatusOpen,
	"NEW":              OrderStatusOpen,
	"FILLED":           OrderStatusFilled,
	"MATCHED":          OrderStatusFilled,
	"EXECUTED":         OrderStatusFilled,
	"PARTIAL":          OrderStatusPartial,
	"PARTIAL_MATCH":    OrderStatusPartial,
	"PARTIALLY_FILLED": OrderStatusPartial,
	"CANCELLED":        OrderStatusCancelled,
	"CANCELED":         OrderStatusCancelled,
	"EXPIRED":          OrderStatusExpired,
}

// NormalizeStatus maps a raw venue status onto the closed status set.
// Unrecognized or empty strings normalize to UNKNOWN; callers treat UNKNOWN
// as "retry next poll". Normalization is idempotent.
func NormalizeStatus(raw string) OrderStatus {
	key := strings.ToUpper(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, "-", "_")
	if s, ok := statusAliases[key]; ok {
		return s
	}
	return OrderStatusUnknown
}

// Terminal reports whether a status can no longer change.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusExpired:
		return true
	default:
		return false
	}
}

// PlaceOrderRequest describes one leg submission to a venue.
type PlaceOrderRequest struct {
	MarketID string
	TokenID  string
	Side     Side
	Price    *big.Int // 1e18-scaled ratio in (0, 1)
	Size     int64    // stable-token base units
}

// PlaceOrderResult is the value-typed outcome of a placement. Transport and
// venue-reject failures are captured here, never raised to the caller.
type PlaceOrderResult struct {
	Success bool
	OrderID string
	Status  OrderStatus
	Err     string
}

// OrderState is a venue's view of an order at poll time.
type OrderState struct {
	OrderID       string
	Status        OrderStatus
	FilledSize    int64
	RemainingSize int64
}

// OpenOrder is one entry of an adapter's open-order listing.
type OpenOrder struct {
	OrderID  string
	TokenID  string
	MarketID string
	Side     Side
	Price    *big.Int
	Size     int64
}
