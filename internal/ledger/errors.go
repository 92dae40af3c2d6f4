package ledger

import "errors"

// Error taxonomy for the core ledgers. Handlers and services dispatch on
// these with errors.Is, so every rejected operation surfaces a
// distinguishable kind. Names mirror the on-chain custom errors the
// frontend already matches on.
var (
	// Authorization
	ErrUnauthorizedAgent   = errors.New("unauthorized agent")
	ErrUnauthorizedAccount = errors.New("access control: unauthorized account")

	// Validation
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidIntent       = errors.New("invalid intent")
	ErrInvalidSlippage     = errors.New("invalid slippage")
	ErrUnsupportedProtocol = errors.New("unsupported protocol")
	ErrUnsupportedChain    = errors.New("unsupported chain")
	ErrUnsupportedToken    = errors.New("unsupported token")

	// Lookup
	ErrIntentNotFound    = errors.New("intent not found")
	ErrOperationNotFound = errors.New("operation not found")
	ErrFeedNotFound      = errors.New("feed not found")

	// Staleness
	ErrStalePrice = errors.New("stale price")

	// Lifecycle
	ErrIntentNotActive = errors.New("intent not active")
	ErrVaultPaused     = errors.New("vault paused")
	ErrExecutorPaused  = errors.New("intent executor paused")

	// Insufficiency
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientFee     = errors.New("insufficient fee")
)
