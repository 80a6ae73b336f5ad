// Package model defines the core domain records shared across the yield
// engine: strategies, user positions, marketplaces, trade orders, and the
// immutable trade log.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the side of a marketplace order.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// Valid reports whether the side is one of the two known values.
func (s OrderSide) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Strategy is the configuration and aggregate state of one yield-bearing
// offering. Identity, name, and asset bindings are immutable after creation;
// aggregates change only through position operations.
type Strategy struct {
	ID               uint64          `json:"strategy_id" db:"strategy_id"`
	Admin            string          `json:"admin" db:"admin"`
	UnderlyingAsset  string          `json:"underlying_asset" db:"underlying_asset"`
	YieldAsset       string          `json:"yield_asset" db:"yield_asset"`
	Name             string          `json:"name" db:"name"`
	RateBps          int64           `json:"rate_bps" db:"rate_bps"` // annual yield, 1000 = 10.00%
	TotalDeposits    decimal.Decimal `json:"total_deposits" db:"total_deposits"`
	TotalYieldMinted decimal.Decimal `json:"total_yield_minted" db:"total_yield_minted"`
	Active           bool            `json:"active" db:"active"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`

	// VaultAuthority is the capability that moves funds out of the
	// strategy vault. Engine-internal; never serialized to clients.
	VaultAuthority string `json:"-" db:"vault_authority"`
	// MintAuthority is the capability that mints and burns the strategy's
	// yield-claim asset. Engine-internal.
	MintAuthority string `json:"-" db:"mint_authority"`
}

// IsOperational reports whether position-mutating operations may proceed.
func (s *Strategy) IsOperational() bool {
	return s.Active
}

// Position is one user's stake in one strategy. There is exactly one
// position per (user, strategy) pair, keyed by the store. A fully redeemed
// position is zeroed in place and reused on the next deposit.
type Position struct {
	ID             uint64          `json:"position_id" db:"position_id"`
	User           string          `json:"user" db:"user_id"`
	StrategyID     uint64          `json:"strategy_id" db:"strategy_id"`
	Deposited      decimal.Decimal `json:"deposited" db:"deposited"`
	YieldMinted    decimal.Decimal `json:"yield_minted" db:"yield_minted"` // claim tokens attributed here
	DepositTime    time.Time       `json:"deposit_time" db:"deposit_time"`
	LastYieldClaim time.Time       `json:"last_yield_claim" db:"last_yield_claim"`
	TotalClaimed   decimal.Decimal `json:"total_claimed" db:"total_claimed"`
}

// Marketplace is the secondary market for one strategy's claim tokens.
// Prices are fixed-point with 6 implied decimals (1,000,000 = 1.0 underlying
// per claim token). BestBid/BestAsk are advisory: they ratchet upward on
// placement and are zeroed, not recomputed, when the best-priced order is
// cancelled, so they may be stale after a cancellation.
type Marketplace struct {
	ID              uint64          `json:"marketplace_id" db:"marketplace_id"`
	Admin           string          `json:"admin" db:"admin"`
	StrategyID      uint64          `json:"strategy_id" db:"strategy_id"`
	YieldAsset      string          `json:"yield_asset" db:"yield_asset"`
	UnderlyingAsset string          `json:"underlying_asset" db:"underlying_asset"`
	TotalVolume     decimal.Decimal `json:"total_volume" db:"total_volume"` // Σ payments, underlying units
	TotalTrades     uint64          `json:"total_trades" db:"total_trades"`
	BestBid         decimal.Decimal `json:"best_bid" db:"best_bid"` // 0 = unset
	BestAsk         decimal.Decimal `json:"best_ask" db:"best_ask"` // 0 = unset
	FeeBps          int64           `json:"fee_bps" db:"fee_bps"`
	Active          bool            `json:"active" db:"active"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`

	// FeeAuthority moves collected fees; engine-internal.
	FeeAuthority string `json:"-" db:"fee_authority"`
}

// TradeOrder is a resting limit order. Each order owns an escrow holding the
// side-appropriate asset (claim tokens for SELL, underlying for BUY); the
// escrow moves only under the order's own authority, through settlement or
// cancellation.
type TradeOrder struct {
	ID            uint64          `json:"order_id" db:"order_id"`
	User          string          `json:"user" db:"user_id"`
	MarketplaceID uint64          `json:"marketplace_id" db:"marketplace_id"`
	Side          OrderSide       `json:"side" db:"side"`
	Quantity      decimal.Decimal `json:"quantity" db:"quantity"` // requested claim tokens
	Price         decimal.Decimal `json:"price" db:"price"`       // fixed-point, 6 decimals
	TotalValue    decimal.Decimal `json:"total_value" db:"total_value"`
	Filled        decimal.Decimal `json:"filled" db:"filled"`
	Active        bool            `json:"active" db:"active"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`

	// EscrowAuthority moves the order's escrowed funds; engine-internal.
	EscrowAuthority string `json:"-" db:"escrow_authority"`
}

// Fillable reports whether the order can still participate in a trade.
func (o *TradeOrder) Fillable() bool {
	return o.Active && o.Filled.LessThan(o.Quantity)
}

// Remaining returns the unfilled claim-token quantity.
func (o *TradeOrder) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.Filled)
}

// Trade is an immutable record of one settlement between a buy and a sell
// order. Once created, these are never modified or deleted.
type Trade struct {
	ID            string          `json:"id" db:"id"`
	MarketplaceID uint64          `json:"marketplace_id" db:"marketplace_id"`
	BuyOrderID    uint64          `json:"buy_order_id" db:"buy_order_id"`
	SellOrderID   uint64          `json:"sell_order_id" db:"sell_order_id"`
	Buyer         string          `json:"buyer" db:"buyer"`
	Seller        string          `json:"seller" db:"seller"`
	Quantity      decimal.Decimal `json:"quantity" db:"quantity"`
	Price         decimal.Decimal `json:"price" db:"price"` // execution (sell) price
	Payment       decimal.Decimal `json:"payment" db:"payment"`
	Fee           decimal.Decimal `json:"fee" db:"fee"`
	ExecutedAt    time.Time       `json:"executed_at" db:"executed_at"`
}

// Counter names used for numeric ID tracking. Counters are monotonically
// increasing and carry no other invariant.
const (
	CounterStrategies   = "strategies"
	CounterMarketplaces = "marketplaces"
	CounterOrders       = "orders"
)
