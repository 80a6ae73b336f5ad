package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/yieldos/yield-engine/internal/fixedpoint"
	"github.com/yieldos/yield-engine/internal/model"
	"github.com/yieldos/yield-engine/internal/store"
	"github.com/yieldos/yield-engine/internal/token"
)

const maxFeeBps = 1000

// CreateMarketplace opens the secondary market for a strategy's claim
// tokens. Only the strategy admin may create it, at most one per strategy,
// and only while the strategy is active. Fee collection gets its own ledger
// holder whose capability lives on the marketplace record.
func (e *Engine) CreateMarketplace(ctx context.Context, caller string, id, strategyID uint64, feeBps int64) (*model.Marketplace, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if feeBps < 0 || feeBps > maxFeeBps {
		return nil, ErrFeeTooHigh
	}
	s, err := e.store.GetStrategy(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	if s.Admin != caller {
		return nil, ErrUnauthorized
	}
	if !s.IsOperational() {
		return nil, ErrStrategyNotActive
	}
	if _, err := e.store.GetMarketplace(ctx, id); err == nil {
		return nil, store.ErrAlreadyExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check marketplace %d: %w", id, err)
	}

	feeAuth, err := e.ledger.RegisterHolder(feeHolder(id))
	if err != nil {
		return nil, fmt.Errorf("register fee account: %w", err)
	}

	m := &model.Marketplace{
		ID:              id,
		Admin:           caller,
		StrategyID:      strategyID,
		YieldAsset:      s.YieldAsset,
		UnderlyingAsset: s.UnderlyingAsset,
		TotalVolume:     decimal.Zero,
		TotalTrades:     0,
		BestBid:         decimal.Zero,
		BestAsk:         decimal.Zero,
		FeeBps:          feeBps,
		Active:          true,
		CreatedAt:       e.Clock().UTC(),
		FeeAuthority:    string(feeAuth),
	}
	if err := e.store.CreateMarketplace(ctx, m); err != nil {
		return nil, fmt.Errorf("create marketplace %d: %w", id, err)
	}
	if _, err := e.store.IncrementCounter(ctx, model.CounterMarketplaces); err != nil {
		return nil, fmt.Errorf("bump marketplace counter: %w", err)
	}
	e.log.Info("marketplace created", "marketplace_id", id, "strategy_id", strategyID, "fee_bps", feeBps)
	return m, nil
}

// PlaceOrder rests a limit order on a marketplace and escrows its full
// collateral up front: claim tokens for a sell, quantity*price underlying for
// a buy. BestBid/BestAsk only ratchet toward better prices here; they are
// never recomputed downward.
func (e *Engine) PlaceOrder(ctx context.Context, user string, orderID, marketplaceID uint64, side model.OrderSide, quantity, price decimal.Decimal) (*model.TradeOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !side.Valid() {
		return nil, ErrInvalidOrderSide
	}
	if err := requireBaseUnits(quantity); err != nil {
		return nil, err
	}
	if price.Sign() <= 0 || !price.IsInteger() {
		return nil, ErrInvalidPrice
	}
	m, err := e.store.GetMarketplace(ctx, marketplaceID)
	if err != nil {
		return nil, err
	}
	if !m.Active {
		return nil, ErrMarketplaceNotActive
	}
	if _, err := e.store.GetOrder(ctx, orderID); err == nil {
		return nil, store.ErrAlreadyExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check order %d: %w", orderID, err)
	}

	userAuth, err := e.authorityFor(user)
	if err != nil {
		return nil, err
	}
	escrowAuth, err := e.ledger.RegisterHolder(escrowHolder(orderID))
	if err != nil {
		return nil, fmt.Errorf("register escrow: %w", err)
	}

	totalValue := fixedpoint.ScaleValue(quantity, price)
	var escrowAsset string
	var escrowAmount decimal.Decimal
	if side == model.SideSell {
		escrowAsset, escrowAmount = m.YieldAsset, quantity
	} else {
		escrowAsset, escrowAmount = m.UnderlyingAsset, totalValue
	}
	if err := e.ledger.Transfer(escrowAsset, user, escrowHolder(orderID), userAuth, escrowAmount); err != nil {
		return nil, mapLedgerErr(err)
	}

	o := &model.TradeOrder{
		ID:              orderID,
		User:            user,
		MarketplaceID:   marketplaceID,
		Side:            side,
		Quantity:        quantity,
		Price:           price,
		TotalValue:      totalValue,
		Filled:          decimal.Zero,
		Active:          true,
		CreatedAt:       e.Clock().UTC(),
		EscrowAuthority: string(escrowAuth),
	}
	if err := e.store.CreateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("create order %d: %w", orderID, err)
	}

	switch side {
	case model.SideBuy:
		if price.GreaterThan(m.BestBid) {
			m.BestBid = price
		}
	case model.SideSell:
		if m.BestAsk.Sign() == 0 || price.LessThan(m.BestAsk) {
			m.BestAsk = price
		}
	}
	if err := e.store.UpdateMarketplace(ctx, m); err != nil {
		return nil, fmt.Errorf("update marketplace %d: %w", marketplaceID, err)
	}
	if _, err := e.store.IncrementCounter(ctx, model.CounterOrders); err != nil {
		return nil, fmt.Errorf("bump order counter: %w", err)
	}
	e.log.Info("order placed", "order_id", orderID, "marketplace_id", marketplaceID,
		"side", side, "quantity", quantity, "price", price)
	return o, nil
}

// CancelOrder deactivates an order and refunds the unfilled part of its
// escrow: remaining claim tokens for a sell, total_value minus the value
// already spent for a buy. Only the order's owner may cancel. If the order
// held the marketplace's best price, that side is zeroed rather than
// recomputed.
func (e *Engine) CancelOrder(ctx context.Context, user string, orderID uint64) (*model.TradeOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.User != user {
		return nil, ErrUnauthorizedUser
	}
	if !o.Active {
		return nil, ErrOrderNotActive
	}
	m, err := e.store.GetMarketplace(ctx, o.MarketplaceID)
	if err != nil {
		return nil, err
	}

	remaining := o.Remaining()
	if remaining.Sign() <= 0 {
		return nil, ErrNoRefundAvailable
	}

	var refundAsset string
	var refund decimal.Decimal
	if o.Side == model.SideSell {
		refundAsset, refund = m.YieldAsset, remaining
	} else {
		spent := fixedpoint.ScaleValue(o.Filled, o.Price)
		refund, err = fixedpoint.CheckedSub(o.TotalValue, spent)
		if err != nil {
			return nil, ErrNoRefundAvailable
		}
		refundAsset = m.UnderlyingAsset
	}
	if refund.Sign() > 0 {
		auth := token.Authority(o.EscrowAuthority)
		if err := e.ledger.Transfer(refundAsset, escrowHolder(o.ID), user, auth, refund); err != nil {
			return nil, mapLedgerErr(err)
		}
	}

	o.Active = false
	if err := e.store.UpdateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("update order %d: %w", orderID, err)
	}

	touched := false
	if o.Side == model.SideBuy && o.Price.Equal(m.BestBid) {
		m.BestBid = decimal.Zero
		touched = true
	}
	if o.Side == model.SideSell && o.Price.Equal(m.BestAsk) {
		m.BestAsk = decimal.Zero
		touched = true
	}
	if touched {
		if err := e.store.UpdateMarketplace(ctx, m); err != nil {
			return nil, fmt.Errorf("update marketplace %d: %w", m.ID, err)
		}
	}
	e.log.Info("order cancelled", "order_id", orderID, "refund", refund)
	return o, nil
}
