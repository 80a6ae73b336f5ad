package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/yieldos/yield-engine/internal/token"
)

// RegisterAsset introduces an underlying asset into the ledger so strategies
// can be created against it. The engine custodians the issuing capability;
// claim assets are never registered this way, they are minted per strategy.
func (e *Engine) RegisterAsset(asset string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	auth, err := e.ledger.RegisterAsset(asset)
	if err != nil {
		return fmt.Errorf("register asset %q: %w", asset, err)
	}
	e.assetAuth[asset] = auth
	e.log.Info("asset registered", "asset", asset)
	return nil
}

// IssueAsset mints underlying tokens to a holder. This stands in for the
// external token supply: funding user wallets and subsidizing strategy
// vaults with the yield they pay out. Only assets registered through
// RegisterAsset can be issued.
func (e *Engine) IssueAsset(asset, to string, amount decimal.Decimal) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := requireBaseUnits(amount); err != nil {
		return err
	}
	auth, ok := e.assetAuth[asset]
	if !ok {
		return fmt.Errorf("asset %q: %w", asset, token.ErrUnknownAsset)
	}
	if err := e.ledger.MintTo(asset, to, auth, amount); err != nil {
		return mapLedgerErr(err)
	}
	e.log.Info("asset issued", "asset", asset, "to", to, "amount", amount)
	return nil
}
