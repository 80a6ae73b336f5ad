// Package store defines the persistence interface for the yield engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/yieldos/yield-engine/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("store: record not found")

	// ErrAlreadyExists is returned on duplicate creation of a keyed record.
	ErrAlreadyExists = errors.New("store: record already exists")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer. Every mutated record is written
// back whole; the engine serializes conflicting operations.
type Store interface {
	// --- Strategy records ---

	// CreateStrategy persists a new strategy, rejecting duplicate IDs.
	CreateStrategy(ctx context.Context, s *model.Strategy) error

	// GetStrategy retrieves a strategy by its numeric ID.
	GetStrategy(ctx context.Context, id uint64) (*model.Strategy, error)

	// ListStrategies returns all strategies.
	ListStrategies(ctx context.Context) ([]model.Strategy, error)

	// UpdateStrategy rewrites a strategy's mutable state (aggregates, active flag).
	UpdateStrategy(ctx context.Context, s *model.Strategy) error

	// --- Position records (one per user+strategy) ---

	// GetPosition retrieves the position for a user in a strategy.
	GetPosition(ctx context.Context, user string, strategyID uint64) (*model.Position, error)

	// PutPosition creates or overwrites the position for (position.User,
	// position.StrategyID).
	PutPosition(ctx context.Context, p *model.Position) error

	// --- Marketplace records ---

	// CreateMarketplace persists a new marketplace. At most one marketplace
	// exists per strategy; a second creation fails with ErrAlreadyExists.
	CreateMarketplace(ctx context.Context, m *model.Marketplace) error

	// GetMarketplace retrieves a marketplace by its numeric ID.
	GetMarketplace(ctx context.Context, id uint64) (*model.Marketplace, error)

	// GetMarketplaceByStrategy retrieves the marketplace bound to a strategy.
	GetMarketplaceByStrategy(ctx context.Context, strategyID uint64) (*model.Marketplace, error)

	// UpdateMarketplace rewrites a marketplace's mutable state.
	UpdateMarketplace(ctx context.Context, m *model.Marketplace) error

	// --- Order records ---

	// CreateOrder persists a new order, rejecting duplicate IDs.
	CreateOrder(ctx context.Context, o *model.TradeOrder) error

	// GetOrder retrieves an order by its numeric ID.
	GetOrder(ctx context.Context, id uint64) (*model.TradeOrder, error)

	// ListOrdersByMarketplace returns all orders for a marketplace,
	// newest first.
	ListOrdersByMarketplace(ctx context.Context, marketplaceID uint64) ([]model.TradeOrder, error)

	// UpdateOrder rewrites an order's mutable state (filled, active).
	UpdateOrder(ctx context.Context, o *model.TradeOrder) error

	// --- Immutable trade log ---

	// InsertTrade appends an immutable settlement record.
	InsertTrade(ctx context.Context, t *model.Trade) error

	// ListTradesByMarketplace returns all settlements for a marketplace,
	// oldest first.
	ListTradesByMarketplace(ctx context.Context, marketplaceID uint64) ([]model.Trade, error)

	// --- Counters ---

	// InitCounters creates the ID counters at zero. Fails with
	// ErrAlreadyExists if the protocol was already initialized.
	InitCounters(ctx context.Context) error

	// IncrementCounter bumps a named counter and returns the new value.
	IncrementCounter(ctx context.Context, name string) (uint64, error)

	// GetCounter reads a named counter.
	GetCounter(ctx context.Context, name string) (uint64, error)
}
