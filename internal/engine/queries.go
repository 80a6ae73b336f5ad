package engine

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/yieldos/yield-engine/internal/model"
	"github.com/yieldos/yield-engine/internal/store"
)

// Read-only accessors. These go straight to the store; the store
// implementations are safe for concurrent use.

func (e *Engine) Strategy(ctx context.Context, id uint64) (*model.Strategy, error) {
	return e.store.GetStrategy(ctx, id)
}

func (e *Engine) Strategies(ctx context.Context) ([]model.Strategy, error) {
	return e.store.ListStrategies(ctx)
}

func (e *Engine) Position(ctx context.Context, user string, strategyID uint64) (*model.Position, error) {
	p, err := e.store.GetPosition(ctx, user, strategyID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoPosition
	}
	return p, err
}

func (e *Engine) Marketplace(ctx context.Context, id uint64) (*model.Marketplace, error) {
	return e.store.GetMarketplace(ctx, id)
}

func (e *Engine) MarketplaceForStrategy(ctx context.Context, strategyID uint64) (*model.Marketplace, error) {
	return e.store.GetMarketplaceByStrategy(ctx, strategyID)
}

func (e *Engine) Order(ctx context.Context, id uint64) (*model.TradeOrder, error) {
	return e.store.GetOrder(ctx, id)
}

func (e *Engine) Orders(ctx context.Context, marketplaceID uint64) ([]model.TradeOrder, error) {
	return e.store.ListOrdersByMarketplace(ctx, marketplaceID)
}

func (e *Engine) Trades(ctx context.Context, marketplaceID uint64) ([]model.Trade, error) {
	return e.store.ListTradesByMarketplace(ctx, marketplaceID)
}

// Balances returns a user's non-zero token balances by asset.
func (e *Engine) Balances(user string) map[string]decimal.Decimal {
	return e.ledger.Balances(user)
}
