package venue

import (
	"context"
	"math/big"

	"github.com/quantfold/crossarb/pkg/types"
)

// Venue names used across quotes, opportunities and positions.
const (
	VenueAMM  = "amm"
	VenueCLOB = "clob"
)

// Adapter is the uniform order interface over one trading venue. Per-call
// failures are captured in the returned values; an adapter never panics and
// only constructor misconfiguration surfaces as an error.
type Adapter interface {
	// Name returns the venue identifier.
	Name() string

	// Authenticate establishes a venue credential, or is a no-op for venues
	// with per-request signing. Called once at agent start and again after
	// a 401-class failure.
	Authenticate(ctx context.Context) error

	// PlaceOrder submits one order. Transport failures, venue rejects and
	// validation errors all come back as Success=false.
	PlaceOrder(ctx context.Context, req types.PlaceOrderRequest) types.PlaceOrderResult

	// CancelOrder cancels an order, best effort.
	CancelOrder(ctx context.Context, orderID, tokenID string) bool

	// GetOrderStatus returns the venue's current view of an order. Transient
	// fetch failures yield status UNKNOWN; callers retry on the next poll.
	GetOrderStatus(ctx context.Context, orderID string) types.OrderState

	// GetOpenOrders lists resting orders; empty on failure.
	GetOpenOrders(ctx context.Context) []types.OpenOrder

	// EnsureApprovals idempotently grants the venue's exchange contract
	// spending approval for the outcome-token and stable-token contracts.
	EnsureApprovals(ctx context.Context) error
}

// orderAmounts converts a (side, price, notional) triple into the maker and
// taker amounts of an exchange order. Notional is in stable base units; the
// token leg is notional/price scaled to 6-decimal token units.
func orderAmounts(side types.Side, price *big.Int, size int64) (maker, taker string) {
	stable := big.NewInt(size)
	tokens := new(big.Int).Mul(stable, types.Scale1e18)
	tokens.Div(tokens, price)

	if side == types.SideBuy {
		// Stable in, outcome tokens out.
		return stable.String(), tokens.String()
	}
	// Outcome tokens in, stable out.
	return tokens.String(), stable.String()
}
