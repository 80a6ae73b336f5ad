package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yieldos/yield-engine/internal/fixedpoint"
	"github.com/yieldos/yield-engine/internal/model"
	"github.com/yieldos/yield-engine/internal/store"
	"github.com/yieldos/yield-engine/internal/token"
	"github.com/yieldos/yield-engine/internal/yield"
)

const maxStrategyNameLen = 64

// CreateStrategy registers a new yield strategy. The engine mints a fresh
// claim asset for it and opens a dedicated vault holder; both capabilities
// live only on the strategy record. The underlying asset must already exist
// in the ledger.
func (e *Engine) CreateStrategy(ctx context.Context, admin string, id uint64, name, underlyingAsset string, rateBps int64) (*model.Strategy, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(name) > maxStrategyNameLen {
		return nil, ErrNameTooLong
	}
	if err := yield.ValidateRate(rateBps); err != nil {
		return nil, err
	}
	if !e.ledger.HasAsset(underlyingAsset) {
		return nil, fmt.Errorf("underlying asset %q is not registered", underlyingAsset)
	}
	if _, err := e.store.GetStrategy(ctx, id); err == nil {
		return nil, store.ErrAlreadyExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check strategy %d: %w", id, err)
	}

	mintAuth, err := e.ledger.RegisterAsset(yieldAssetFor(id))
	if err != nil {
		return nil, fmt.Errorf("register claim asset: %w", err)
	}
	vaultAuth, err := e.ledger.RegisterHolder(vaultHolder(id))
	if err != nil {
		return nil, fmt.Errorf("register vault: %w", err)
	}

	s := &model.Strategy{
		ID:               id,
		Admin:            admin,
		UnderlyingAsset:  underlyingAsset,
		YieldAsset:       yieldAssetFor(id),
		Name:             name,
		RateBps:          rateBps,
		TotalDeposits:    decimal.Zero,
		TotalYieldMinted: decimal.Zero,
		Active:           true,
		CreatedAt:        e.Clock().UTC(),
		VaultAuthority:   string(vaultAuth),
		MintAuthority:    string(mintAuth),
	}
	if err := e.store.CreateStrategy(ctx, s); err != nil {
		return nil, fmt.Errorf("create strategy %d: %w", id, err)
	}
	if _, err := e.store.IncrementCounter(ctx, model.CounterStrategies); err != nil {
		return nil, fmt.Errorf("bump strategy counter: %w", err)
	}
	e.log.Info("strategy created", "strategy_id", id, "name", name, "rate_bps", rateBps)
	return s, nil
}

// SetStrategyActive pauses or resumes a strategy. Only the admin may do this.
// Pausing blocks deposits, claims, withdrawals, and redemptions; existing
// balances and positions are untouched.
func (e *Engine) SetStrategyActive(ctx context.Context, caller string, id uint64, active bool) (*model.Strategy, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.store.GetStrategy(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Admin != caller {
		return nil, ErrUnauthorized
	}
	s.Active = active
	if err := e.store.UpdateStrategy(ctx, s); err != nil {
		return nil, fmt.Errorf("update strategy %d: %w", id, err)
	}
	e.log.Info("strategy toggled", "strategy_id", id, "active", active)
	return s, nil
}

// Deposit moves underlying tokens from the user into the strategy vault and
// mints claim tokens 1:1. The claim tokens and the vault transfer commit as
// one batch. A fresh deposit overwrites any previous position for the pair,
// resetting its accrual clock.
func (e *Engine) Deposit(ctx context.Context, user string, strategyID uint64, amount decimal.Decimal) (*model.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := requireBaseUnits(amount); err != nil {
		return nil, err
	}
	s, err := e.store.GetStrategy(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	if !s.IsOperational() {
		return nil, ErrStrategyNotActive
	}
	userAuth, err := e.authorityFor(user)
	if err != nil {
		return nil, err
	}

	err = e.ledger.Apply([]token.Op{
		{Kind: token.OpTransfer, Asset: s.UnderlyingAsset, From: user, To: vaultHolder(s.ID), Authority: userAuth, Amount: amount},
		{Kind: token.OpMint, Asset: s.YieldAsset, To: user, Authority: token.Authority(s.MintAuthority), Amount: amount},
	})
	if err != nil {
		return nil, mapLedgerErr(err)
	}

	now := e.Clock().UTC()
	p := &model.Position{
		ID:             uint64(s.TotalDeposits.IntPart()), // deposit-ordinal id
		User:           user,
		StrategyID:     strategyID,
		Deposited:      amount,
		YieldMinted:    amount,
		DepositTime:    now,
		LastYieldClaim: now,
		TotalClaimed:   decimal.Zero,
	}
	if err := e.store.PutPosition(ctx, p); err != nil {
		return nil, fmt.Errorf("put position: %w", err)
	}
	s.TotalDeposits = s.TotalDeposits.Add(amount)
	s.TotalYieldMinted = s.TotalYieldMinted.Add(amount)
	if err := e.store.UpdateStrategy(ctx, s); err != nil {
		return nil, fmt.Errorf("update strategy %d: %w", strategyID, err)
	}
	e.log.Info("deposit", "user", user, "strategy_id", strategyID, "amount", amount)
	return p, nil
}

// ClaimYield mints the yield accrued since the last claim directly to the
// user's wallet and advances the accrual checkpoint. Accrual is simple
// (non-compounding) interest on the deposited principal.
func (e *Engine) ClaimYield(ctx context.Context, user string, strategyID uint64) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.store.GetStrategy(ctx, strategyID)
	if err != nil {
		return decimal.Zero, err
	}
	if !s.IsOperational() {
		return decimal.Zero, ErrStrategyNotActive
	}
	p, err := e.store.GetPosition(ctx, user, strategyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return decimal.Zero, ErrNoPosition
		}
		return decimal.Zero, err
	}

	now := e.Clock().UTC()
	elapsed := int64(now.Sub(p.LastYieldClaim) / time.Second)
	accrued := yield.Accrue(p.Deposited, s.RateBps, elapsed)
	if accrued.Sign() <= 0 {
		return decimal.Zero, ErrNoYieldToClaim
	}

	if err := e.ledger.MintTo(s.YieldAsset, user, token.Authority(s.MintAuthority), accrued); err != nil {
		return decimal.Zero, mapLedgerErr(err)
	}

	p.LastYieldClaim = now
	p.YieldMinted = p.YieldMinted.Add(accrued)
	p.TotalClaimed = p.TotalClaimed.Add(accrued)
	if err := e.store.PutPosition(ctx, p); err != nil {
		return decimal.Zero, fmt.Errorf("put position: %w", err)
	}
	s.TotalYieldMinted = s.TotalYieldMinted.Add(accrued)
	if err := e.store.UpdateStrategy(ctx, s); err != nil {
		return decimal.Zero, fmt.Errorf("update strategy %d: %w", strategyID, err)
	}
	e.log.Info("yield claimed", "user", user, "strategy_id", strategyID, "amount", accrued)
	return accrued, nil
}

// Withdraw returns deposited principal from the vault to the user. There is
// no lockup: any amount up to the recorded principal can leave at any time.
// Claim tokens already minted against the principal are not recalled.
func (e *Engine) Withdraw(ctx context.Context, user string, strategyID uint64, amount decimal.Decimal) (*model.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := requireBaseUnits(amount); err != nil {
		return nil, err
	}
	s, err := e.store.GetStrategy(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	if !s.IsOperational() {
		return nil, ErrStrategyNotActive
	}
	p, err := e.store.GetPosition(ctx, user, strategyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoPosition
		}
		return nil, err
	}
	if p.Deposited.LessThan(amount) {
		return nil, ErrInsufficientBalance
	}

	if err := e.ledger.Transfer(s.UnderlyingAsset, vaultHolder(s.ID), user, token.Authority(s.VaultAuthority), amount); err != nil {
		return nil, mapLedgerErr(err)
	}

	p.Deposited, err = fixedpoint.CheckedSub(p.Deposited, amount)
	if err != nil {
		return nil, ErrInsufficientBalance
	}
	if err := e.store.PutPosition(ctx, p); err != nil {
		return nil, fmt.Errorf("put position: %w", err)
	}
	s.TotalDeposits, err = fixedpoint.CheckedSub(s.TotalDeposits, amount)
	if err != nil {
		return nil, fmt.Errorf("strategy %d deposit aggregate underflow: %w", strategyID, err)
	}
	if err := e.store.UpdateStrategy(ctx, s); err != nil {
		return nil, fmt.Errorf("update strategy %d: %w", strategyID, err)
	}
	e.log.Info("withdrawal", "user", user, "strategy_id", strategyID, "amount", amount)
	return p, nil
}

// RedeemYieldTokens burns claim tokens and pays out the proportional share of
// the position: burning claim/minted of the attributed tokens returns the
// same fraction of the deposited principal plus that fraction of the yield
// accrued since the deposit. Both shares truncate, so a partial redemption
// can leave up to one base unit of principal behind; the final burn takes
// the full remainder and lands the position exactly at zero, ready for
// reuse.
func (e *Engine) RedeemYieldTokens(ctx context.Context, user string, strategyID uint64, claim decimal.Decimal) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := requireBaseUnits(claim); err != nil {
		return decimal.Zero, err
	}
	s, err := e.store.GetStrategy(ctx, strategyID)
	if err != nil {
		return decimal.Zero, err
	}
	if !s.IsOperational() {
		return decimal.Zero, ErrStrategyNotActive
	}
	p, err := e.store.GetPosition(ctx, user, strategyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return decimal.Zero, ErrNoPosition
		}
		return decimal.Zero, err
	}
	if p.YieldMinted.Sign() <= 0 {
		// A fully exited record has nothing attributed to it; claim tokens
		// bought on the marketplace do not revive it.
		return decimal.Zero, ErrNoPosition
	}
	if claim.GreaterThan(p.YieldMinted) {
		return decimal.Zero, ErrInsufficientYieldTokens
	}
	if e.ledger.Balance(user, s.YieldAsset).LessThan(claim) {
		return decimal.Zero, ErrInsufficientYieldTokens
	}

	now := e.Clock().UTC()
	elapsed := int64(now.Sub(p.DepositTime) / time.Second)

	principalShare := fixedpoint.MulDiv(p.Deposited, claim, p.YieldMinted)
	totalYield := yield.Accrue(p.Deposited, s.RateBps, elapsed)
	yieldShare := fixedpoint.MulDiv(totalYield, claim, p.YieldMinted)
	payout := principalShare.Add(yieldShare)

	err = e.ledger.Apply([]token.Op{
		{Kind: token.OpBurn, Asset: s.YieldAsset, From: user, Authority: token.Authority(s.MintAuthority), Amount: claim},
		{Kind: token.OpTransfer, Asset: s.UnderlyingAsset, From: vaultHolder(s.ID), To: user, Authority: token.Authority(s.VaultAuthority), Amount: payout},
	})
	if err != nil {
		return decimal.Zero, mapLedgerErr(err)
	}

	p.Deposited, err = fixedpoint.CheckedSub(p.Deposited, principalShare)
	if err != nil {
		return decimal.Zero, ErrInsufficientBalance
	}
	p.YieldMinted, err = fixedpoint.CheckedSub(p.YieldMinted, claim)
	if err != nil {
		return decimal.Zero, ErrInsufficientYieldTokens
	}
	if p.YieldMinted.Sign() == 0 {
		// Full exit: zero the record so the next deposit starts clean.
		p.Deposited = decimal.Zero
		p.TotalClaimed = decimal.Zero
		p.LastYieldClaim = now
	}
	if err := e.store.PutPosition(ctx, p); err != nil {
		return decimal.Zero, fmt.Errorf("put position: %w", err)
	}
	s.TotalDeposits, err = fixedpoint.CheckedSub(s.TotalDeposits, principalShare)
	if err != nil {
		return decimal.Zero, fmt.Errorf("strategy %d deposit aggregate underflow: %w", strategyID, err)
	}
	s.TotalYieldMinted, err = fixedpoint.CheckedSub(s.TotalYieldMinted, claim)
	if err != nil {
		return decimal.Zero, fmt.Errorf("strategy %d mint aggregate underflow: %w", strategyID, err)
	}
	if err := e.store.UpdateStrategy(ctx, s); err != nil {
		return decimal.Zero, fmt.Errorf("update strategy %d: %w", strategyID, err)
	}
	e.log.Info("redemption", "user", user, "strategy_id", strategyID,
		"burned", claim, "payout", payout)
	return payout, nil
}
