package engine

import "errors"

// Operation errors, grouped by cause rather than by operation. Every error
// is checked before any side effect and is terminal for the operation: no
// partial effect, no retry.
var (
	// --- Authorization ---

	// ErrUnauthorized is returned when the caller is not the record's admin.
	ErrUnauthorized = errors.New("engine: caller is not the admin")

	// ErrUnauthorizedUser is returned when the caller does not own the record.
	ErrUnauthorizedUser = errors.New("engine: caller does not own this record")

	// --- State preconditions ---

	// ErrStrategyNotActive gates every position-mutating operation.
	ErrStrategyNotActive = errors.New("engine: strategy is not active")

	// ErrMarketplaceNotActive gates order placement.
	ErrMarketplaceNotActive = errors.New("engine: marketplace is not active")

	// ErrOrderNotActive is returned when cancelling an inactive order.
	ErrOrderNotActive = errors.New("engine: order is not active")

	// ErrOrderNotFillable is returned when a trade references an order that
	// is inactive or fully filled.
	ErrOrderNotFillable = errors.New("engine: order is not fillable")

	// ErrOrderMarketplaceMismatch is returned when the two orders of a trade
	// belong to different marketplaces.
	ErrOrderMarketplaceMismatch = errors.New("engine: order belongs to a different marketplace")

	// ErrOrderSideMismatch is returned when a trade's buy/sell arguments
	// have the wrong sides.
	ErrOrderSideMismatch = errors.New("engine: order has the wrong side for this trade")

	// ErrPriceMismatch is returned when sell price exceeds buy price.
	ErrPriceMismatch = errors.New("engine: buy price must be at or above sell price")

	// --- Input validation ---

	// ErrInvalidAmount covers zero, negative, or fractional amounts.
	ErrInvalidAmount = errors.New("engine: amount must be a positive whole number of base units")

	// ErrInvalidPrice covers zero, negative, or fractional fixed-point prices.
	ErrInvalidPrice = errors.New("engine: price must be a positive fixed-point value")

	// ErrInvalidOrderSide is returned for an unknown order side.
	ErrInvalidOrderSide = errors.New("engine: order side must be BUY or SELL")

	// ErrFeeTooHigh caps marketplace fees at 1000 bps (10%).
	ErrFeeTooHigh = errors.New("engine: trading fee exceeds 1000 basis points")

	// ErrNameTooLong caps strategy names at 64 characters.
	ErrNameTooLong = errors.New("engine: strategy name exceeds 64 characters")

	// --- Resource sufficiency ---

	// ErrInsufficientBalance is returned when a transfer source is short.
	ErrInsufficientBalance = errors.New("engine: insufficient balance")

	// ErrInsufficientYieldTokens is returned when the redeeming user holds
	// fewer claim tokens than requested.
	ErrInsufficientYieldTokens = errors.New("engine: insufficient yield tokens")

	// ErrNoYieldToClaim is returned when no time has elapsed or the accrued
	// amount truncates to zero.
	ErrNoYieldToClaim = errors.New("engine: no yield to claim")

	// ErrNoRefundAvailable is returned when cancelling an order with nothing
	// left in escrow.
	ErrNoRefundAvailable = errors.New("engine: no refund available")

	// ErrNoTradeableAmount is returned when the fill quantity resolves to zero.
	ErrNoTradeableAmount = errors.New("engine: no tradeable amount available")

	// ErrNoPosition is returned when an operation needs a live position.
	ErrNoPosition = errors.New("engine: no position for this user and strategy")

	// --- Lifecycle ---

	// ErrAlreadyInitialized is returned when initializing the protocol twice.
	ErrAlreadyInitialized = errors.New("engine: protocol already initialized")

	// ErrNotMature is declared for wire compatibility with older clients.
	// Withdrawals are unconditionally unlocked; no operation raises it.
	ErrNotMature = errors.New("engine: deposit is not yet mature")
)
