package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yieldos/yield-engine/internal/fixedpoint"
	"github.com/yieldos/yield-engine/internal/model"
	"github.com/yieldos/yield-engine/internal/token"
)

// ExecuteTrade settles a crossing buy/sell pair on one marketplace. Anyone
// may call it; matching is external, settlement is what the engine enforces:
//
//   - fill = min(requested, buy remaining, sell remaining)
//   - execution happens at the SELL price, even when the buyer bid higher
//   - fee = payment * fee_bps / 10000, taken from the buyer's escrow
//
// Claim tokens move sell-escrow to buyer, net payment buy-escrow to seller,
// fee buy-escrow to the marketplace fee account, all in one atomic batch.
// When the buyer bid above the sell price, the difference stays in the buy
// escrow; cancellation refunds against the buy order's own price, so that
// surplus is not returned.
func (e *Engine) ExecuteTrade(ctx context.Context, buyOrderID, sellOrderID uint64, requested decimal.Decimal) (*model.Trade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := requireBaseUnits(requested); err != nil {
		return nil, err
	}
	buy, err := e.store.GetOrder(ctx, buyOrderID)
	if err != nil {
		return nil, err
	}
	sell, err := e.store.GetOrder(ctx, sellOrderID)
	if err != nil {
		return nil, err
	}
	if buy.Side != model.SideBuy || sell.Side != model.SideSell {
		return nil, ErrOrderSideMismatch
	}
	if buy.MarketplaceID != sell.MarketplaceID {
		return nil, ErrOrderMarketplaceMismatch
	}
	if !buy.Fillable() || !sell.Fillable() {
		return nil, ErrOrderNotFillable
	}
	if sell.Price.GreaterThan(buy.Price) {
		return nil, ErrPriceMismatch
	}
	m, err := e.store.GetMarketplace(ctx, buy.MarketplaceID)
	if err != nil {
		return nil, err
	}

	fill := decimal.Min(requested, buy.Remaining(), sell.Remaining())
	if fill.Sign() <= 0 {
		return nil, ErrNoTradeableAmount
	}

	payment := fixedpoint.ScaleValue(fill, sell.Price)
	fee := fixedpoint.BpsOf(payment, m.FeeBps)
	net, err := fixedpoint.CheckedSub(payment, fee)
	if err != nil {
		return nil, ErrInsufficientBalance
	}

	ops := []token.Op{
		{Kind: token.OpTransfer, Asset: m.YieldAsset, From: escrowHolder(sell.ID), To: buy.User,
			Authority: token.Authority(sell.EscrowAuthority), Amount: fill},
		{Kind: token.OpTransfer, Asset: m.UnderlyingAsset, From: escrowHolder(buy.ID), To: sell.User,
			Authority: token.Authority(buy.EscrowAuthority), Amount: net},
	}
	if fee.Sign() > 0 {
		ops = append(ops, token.Op{Kind: token.OpTransfer, Asset: m.UnderlyingAsset,
			From: escrowHolder(buy.ID), To: feeHolder(m.ID),
			Authority: token.Authority(buy.EscrowAuthority), Amount: fee})
	}
	if err := e.ledger.Apply(ops); err != nil {
		return nil, mapLedgerErr(err)
	}

	buy.Filled = buy.Filled.Add(fill)
	if !buy.Filled.LessThan(buy.Quantity) {
		buy.Active = false
	}
	sell.Filled = sell.Filled.Add(fill)
	if !sell.Filled.LessThan(sell.Quantity) {
		sell.Active = false
	}
	if err := e.store.UpdateOrder(ctx, buy); err != nil {
		return nil, fmt.Errorf("update buy order %d: %w", buy.ID, err)
	}
	if err := e.store.UpdateOrder(ctx, sell); err != nil {
		return nil, fmt.Errorf("update sell order %d: %w", sell.ID, err)
	}

	m.TotalVolume = m.TotalVolume.Add(payment)
	m.TotalTrades++
	if err := e.store.UpdateMarketplace(ctx, m); err != nil {
		return nil, fmt.Errorf("update marketplace %d: %w", m.ID, err)
	}

	t := &model.Trade{
		ID:            uuid.NewString(),
		MarketplaceID: m.ID,
		BuyOrderID:    buy.ID,
		SellOrderID:   sell.ID,
		Buyer:         buy.User,
		Seller:        sell.User,
		Quantity:      fill,
		Price:         sell.Price,
		Payment:       payment,
		Fee:           fee,
		ExecutedAt:    e.Clock().UTC(),
	}
	if err := e.store.InsertTrade(ctx, t); err != nil {
		return nil, fmt.Errorf("insert trade: %w", err)
	}
	e.log.Info("trade executed", "trade_id", t.ID, "marketplace_id", m.ID,
		"quantity", fill, "price", sell.Price, "payment", payment, "fee", fee)
	return t, nil
}
