// Package token implements the value-transfer collaborator: a ledger of
// (holder, asset) accounts supporting transfer, supply-expanding mint, and
// supply-contracting burn. Every movement is authorized by an opaque
// capability issued when the holder or asset was registered; escrow and
// vault capabilities live only inside engine records, so escrowed funds
// cannot move except through settlement or cancellation logic.
//
// A Batch applies several movements all-or-nothing: every movement is
// validated against the pre-batch balances before any balance changes.
// All monetary values use shopspring/decimal — never float64 for money.
package token

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientBalance is returned when a transfer or burn exceeds
	// the source account's balance.
	ErrInsufficientBalance = errors.New("token: insufficient balance")

	// ErrUnauthorized is returned when a movement carries the wrong
	// capability for its source holder or asset.
	ErrUnauthorized = errors.New("token: authority does not match")

	// ErrUnknownAsset is returned for movements in an unregistered asset.
	ErrUnknownAsset = errors.New("token: unknown asset")

	// ErrUnknownHolder is returned for movements from an unregistered holder.
	ErrUnknownHolder = errors.New("token: unknown holder")

	// ErrHolderExists is returned when registering a holder twice.
	ErrHolderExists = errors.New("token: holder already registered")

	// ErrAssetExists is returned when registering an asset twice.
	ErrAssetExists = errors.New("token: asset already registered")

	// ErrInvalidAmount is returned for non-integer or negative amounts.
	ErrInvalidAmount = errors.New("token: amount must be a non-negative whole number of base units")
)

// Authority is an opaque capability authorizing movements. It is never
// derived from holder names and never exposed to callers outside the engine.
type Authority string

// Op is one movement inside a batch.
type Op struct {
	Kind      OpKind
	Asset     string
	From      string // transfer, burn
	To        string // transfer, mint
	Authority Authority
	Amount    decimal.Decimal
}

// OpKind discriminates batch movements.
type OpKind int

const (
	OpTransfer OpKind = iota
	OpMint
	OpBurn
)

type accountKey struct {
	holder string
	asset  string
}

// Ledger is an in-memory account ledger. A single mutex serializes batches;
// two batches touching disjoint accounts still serialize here, which is
// stricter than required and therefore safe.
type Ledger struct {
	mu       sync.RWMutex
	balances map[accountKey]decimal.Decimal
	holders  map[string]Authority // holder → movement capability
	assets   map[string]Authority // asset → mint/burn capability
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[accountKey]decimal.Decimal),
		holders:  make(map[string]Authority),
		assets:   make(map[string]Authority),
	}
}

// RegisterHolder creates a holder and returns its movement capability.
// The capability is returned exactly once; the ledger keeps only the value
// to compare against.
func (l *Ledger) RegisterHolder(holder string) (Authority, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.holders[holder]; ok {
		return "", ErrHolderExists
	}
	auth := newAuthority()
	l.holders[holder] = auth
	return auth, nil
}

// RegisterAsset creates an asset and returns its mint/burn capability.
func (l *Ledger) RegisterAsset(asset string) (Authority, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.assets[asset]; ok {
		return "", ErrAssetExists
	}
	auth := newAuthority()
	l.assets[asset] = auth
	return auth, nil
}

// Transfer moves amount of asset from one holder to another, authorized by
// the source holder's capability.
func (l *Ledger) Transfer(asset, from, to string, auth Authority, amount decimal.Decimal) error {
	return l.Apply([]Op{{Kind: OpTransfer, Asset: asset, From: from, To: to, Authority: auth, Amount: amount}})
}

// MintTo expands the asset supply into the target holder's account,
// authorized by the asset's mint capability.
func (l *Ledger) MintTo(asset, to string, auth Authority, amount decimal.Decimal) error {
	return l.Apply([]Op{{Kind: OpMint, Asset: asset, To: to, Authority: auth, Amount: amount}})
}

// Burn contracts the asset supply out of the source holder's account. Both
// the asset capability and a balance check apply.
func (l *Ledger) Burn(asset, from string, auth Authority, amount decimal.Decimal) error {
	return l.Apply([]Op{{Kind: OpBurn, Asset: asset, From: from, Authority: auth, Amount: amount}})
}

// Apply executes a batch of movements all-or-nothing. Validation runs
// against a working copy of the touched balances, so a batch that moves
// funds through an intermediate account still validates in order; if any
// movement fails, no balance changes.
func (l *Ledger) Apply(ops []Op) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	working := make(map[accountKey]decimal.Decimal)
	get := func(k accountKey) decimal.Decimal {
		if v, ok := working[k]; ok {
			return v
		}
		return l.balances[k]
	}

	for i, op := range ops {
		if !op.Amount.IsInteger() || op.Amount.IsNegative() {
			return fmt.Errorf("op %d: %w", i, ErrInvalidAmount)
		}
		if _, ok := l.assets[op.Asset]; !ok {
			return fmt.Errorf("op %d: %w: %s", i, ErrUnknownAsset, op.Asset)
		}

		switch op.Kind {
		case OpTransfer:
			if err := l.checkHolderAuth(op.From, op.Authority); err != nil {
				return fmt.Errorf("op %d: %w", i, err)
			}
			src := accountKey{op.From, op.Asset}
			bal := get(src)
			if bal.LessThan(op.Amount) {
				return fmt.Errorf("op %d: %w: %s has %s, needs %s",
					i, ErrInsufficientBalance, op.From, bal, op.Amount)
			}
			working[src] = bal.Sub(op.Amount)
			dst := accountKey{op.To, op.Asset}
			working[dst] = get(dst).Add(op.Amount)

		case OpMint:
			if l.assets[op.Asset] != op.Authority {
				return fmt.Errorf("op %d: %w", i, ErrUnauthorized)
			}
			dst := accountKey{op.To, op.Asset}
			working[dst] = get(dst).Add(op.Amount)

		case OpBurn:
			if l.assets[op.Asset] != op.Authority {
				return fmt.Errorf("op %d: %w", i, ErrUnauthorized)
			}
			src := accountKey{op.From, op.Asset}
			bal := get(src)
			if bal.LessThan(op.Amount) {
				return fmt.Errorf("op %d: %w: %s has %s, needs %s",
					i, ErrInsufficientBalance, op.From, bal, op.Amount)
			}
			working[src] = bal.Sub(op.Amount)

		default:
			return fmt.Errorf("op %d: unknown op kind %d", i, op.Kind)
		}
	}

	for k, v := range working {
		if v.IsZero() {
			delete(l.balances, k)
			continue
		}
		l.balances[k] = v
	}
	return nil
}

// HasAsset reports whether an asset has been registered.
func (l *Ledger) HasAsset(asset string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.assets[asset]
	return ok
}

// Balance returns the holder's balance in one asset.
func (l *Ledger) Balance(holder, asset string) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[accountKey{holder, asset}]
}

// Balances returns all non-zero balances for a holder, keyed by asset.
func (l *Ledger) Balances(holder string) map[string]decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]decimal.Decimal)
	for k, v := range l.balances {
		if k.holder == holder {
			out[k.asset] = v
		}
	}
	return out
}

func (l *Ledger) checkHolderAuth(holder string, auth Authority) error {
	stored, ok := l.holders[holder]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHolder, holder)
	}
	if stored != auth {
		return ErrUnauthorized
	}
	return nil
}

func newAuthority() Authority {
	return Authority(uuid.New().String())
}
