package types

import "errors"

// Sentinel errors shared across the core. Adapters convert network failures
// into value-typed results; these cover the validation and lifecycle paths
// that are rejected locally before any network call.
var (
	ErrMissingTokenID      = errors.New("missing outcome token id")
	ErrMissingSigner       = errors.New("missing signer")
	ErrZeroSize            = errors.New("zero-size order")
	ErrInsufficientBalance = errors.New("insufficient stable balance")
	ErrAgentPaused         = errors.New("agent paused")
	ErrExecutionInFlight   = errors.New("execution already in flight for market")
	ErrSessionExpired      = errors.New("trading session expired")
	ErrAgentNotFound       = errors.New("agent not found")
	ErrAgentExists         = errors.New("agent already exists")
	ErrAgentLimit          = errors.New("agent limit reached")
	ErrAgentRunning        = errors.New("agent already running")
	ErrAgentNotRunning     = errors.New("agent not running")
)

// Rejection reason codes recorded by the sizer and risk gate.
const (
	RejectBelowMinSize      = "below_min_size"
	RejectResolutionTooFar  = "resolution_too_far"
	RejectInsufficientFunds = "insufficient_balance"
	RejectDailyLossLimit    = "daily_loss_limit"
	RejectMaxTrades         = "max_trades_reached"
	RejectSessionExpired    = "session_expired"
)
