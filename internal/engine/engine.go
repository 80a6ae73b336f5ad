package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yieldos/yield-engine/internal/fixedpoint"
	"github.com/yieldos/yield-engine/internal/store"
	"github.com/yieldos/yield-engine/internal/token"
)

// Engine executes protocol operations against a Store and a token Ledger.
// A single mutex serializes all mutating operations: every operation sees a
// consistent snapshot and commits in full or not at all. Token transfers are
// applied as one atomic batch before any record is written back, so a store
// failure after the transfer leaves balances correct and records stale rather
// than the reverse.
//
// The engine is custodian for all signing authorities. Strategy vaults, order
// escrows, and fee accounts each get a dedicated ledger holder whose
// capability lives only on the owning record and is never serialized out.
type Engine struct {
	mu     sync.Mutex
	store  store.Store
	ledger *token.Ledger
	log    *slog.Logger

	// Clock is the time source for accrual and timestamps. Tests replace it.
	Clock func() time.Time

	// userAuth holds per-user ledger capabilities. Users are registered
	// lazily on first use; request authentication is the transport's job.
	userAuth map[string]token.Authority

	// assetAuth holds issuing capabilities for underlying assets
	// registered through RegisterAsset.
	assetAuth map[string]token.Authority
}

func New(st store.Store, ledger *token.Ledger, log *slog.Logger) *Engine {
	return &Engine{
		store:     st,
		ledger:    ledger,
		log:       log,
		Clock:     time.Now,
		userAuth:  make(map[string]token.Authority),
		assetAuth: make(map[string]token.Authority),
	}
}

// InitializeProtocol seeds the global counters. Idempotent it is not:
// a second call returns ErrAlreadyInitialized.
func (e *Engine) InitializeProtocol(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.InitCounters(ctx); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return ErrAlreadyInitialized
		}
		return fmt.Errorf("init counters: %w", err)
	}
	e.log.Info("protocol initialized")
	return nil
}

// authorityFor returns the ledger capability for a user, registering the
// holder on first use.
func (e *Engine) authorityFor(user string) (token.Authority, error) {
	if auth, ok := e.userAuth[user]; ok {
		return auth, nil
	}
	auth, err := e.ledger.RegisterHolder(user)
	if err != nil {
		return "", fmt.Errorf("register holder %q: %w", user, err)
	}
	e.userAuth[user] = auth
	return auth, nil
}

// Holder and asset naming. Strategy vaults, order escrows, and marketplace
// fee accounts are ordinary ledger holders under reserved names.

func vaultHolder(strategyID uint64) string     { return fmt.Sprintf("vault:strategy:%d", strategyID) }
func escrowHolder(orderID uint64) string       { return fmt.Sprintf("escrow:order:%d", orderID) }
func feeHolder(marketplaceID uint64) string    { return fmt.Sprintf("fees:marketplace:%d", marketplaceID) }
func yieldAssetFor(strategyID uint64) string   { return fmt.Sprintf("ytk-%d", strategyID) }

// requireBaseUnits rejects zero, negative, and fractional token amounts.
func requireBaseUnits(d decimal.Decimal) error {
	if d.Sign() == 0 || !fixedpoint.IsBaseUnits(d) {
		return ErrInvalidAmount
	}
	return nil
}

// mapLedgerErr translates token ledger failures into engine sentinels.
func mapLedgerErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, token.ErrInsufficientBalance):
		return ErrInsufficientBalance
	case errors.Is(err, token.ErrInvalidAmount):
		return ErrInvalidAmount
	default:
		return err
	}
}
