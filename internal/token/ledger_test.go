package token

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func newFunded(t *testing.T) (*Ledger, Authority, Authority) {
	t.Helper()
	l := NewLedger()
	assetAuth, err := l.RegisterAsset("usd")
	require.NoError(t, err)
	aliceAuth, err := l.RegisterHolder("alice")
	require.NoError(t, err)
	_, err = l.RegisterHolder("bob")
	require.NoError(t, err)
	require.NoError(t, l.MintTo("usd", "alice", assetAuth, d(1000)))
	return l, assetAuth, aliceAuth
}

func TestTransfer_MovesBalance(t *testing.T) {
	l, _, aliceAuth := newFunded(t)

	require.NoError(t, l.Transfer("usd", "alice", "bob", aliceAuth, d(400)))
	require.True(t, l.Balance("alice", "usd").Equal(d(600)))
	require.True(t, l.Balance("bob", "usd").Equal(d(400)))
}

func TestTransfer_InsufficientBalance(t *testing.T) {
	l, _, aliceAuth := newFunded(t)

	err := l.Transfer("usd", "alice", "bob", aliceAuth, d(1001))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.True(t, l.Balance("alice", "usd").Equal(d(1000)))
	require.True(t, l.Balance("bob", "usd").IsZero())
}

func TestTransfer_WrongAuthority(t *testing.T) {
	l, assetAuth, _ := newFunded(t)

	err := l.Transfer("usd", "alice", "bob", assetAuth, d(1))
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestTransfer_UnknownHolder(t *testing.T) {
	l, _, aliceAuth := newFunded(t)

	err := l.Transfer("usd", "carol", "bob", aliceAuth, d(1))
	require.ErrorIs(t, err, ErrUnknownHolder)
}

func TestTransfer_UnknownAsset(t *testing.T) {
	l, _, aliceAuth := newFunded(t)

	err := l.Transfer("eur", "alice", "bob", aliceAuth, d(1))
	require.ErrorIs(t, err, ErrUnknownAsset)
}

func TestTransfer_FractionalAmount(t *testing.T) {
	l, _, aliceAuth := newFunded(t)

	err := l.Transfer("usd", "alice", "bob", aliceAuth, decimal.RequireFromString("0.5"))
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestMintBurn_SupplyChanges(t *testing.T) {
	l, assetAuth, _ := newFunded(t)

	require.NoError(t, l.MintTo("usd", "bob", assetAuth, d(250)))
	require.True(t, l.Balance("bob", "usd").Equal(d(250)))

	require.NoError(t, l.Burn("usd", "bob", assetAuth, d(100)))
	require.True(t, l.Balance("bob", "usd").Equal(d(150)))
}

func TestBurn_RequiresAssetAuthority(t *testing.T) {
	l, _, aliceAuth := newFunded(t)

	err := l.Burn("usd", "alice", aliceAuth, d(1))
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestBurn_InsufficientBalance(t *testing.T) {
	l, assetAuth, _ := newFunded(t)

	err := l.Burn("usd", "bob", assetAuth, d(1))
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestRegisterHolder_Duplicate(t *testing.T) {
	l := NewLedger()
	_, err := l.RegisterHolder("alice")
	require.NoError(t, err)
	_, err = l.RegisterHolder("alice")
	require.ErrorIs(t, err, ErrHolderExists)
}

func TestRegisterAsset_Duplicate(t *testing.T) {
	l := NewLedger()
	_, err := l.RegisterAsset("usd")
	require.NoError(t, err)
	_, err = l.RegisterAsset("usd")
	require.ErrorIs(t, err, ErrAssetExists)
}

// --- Batch semantics ---

func TestApply_AllOrNothing(t *testing.T) {
	l, _, aliceAuth := newFunded(t)

	// Second op fails on balance; first op must not stick.
	err := l.Apply([]Op{
		{Kind: OpTransfer, Asset: "usd", From: "alice", To: "bob", Authority: aliceAuth, Amount: d(600)},
		{Kind: OpTransfer, Asset: "usd", From: "alice", To: "bob", Authority: aliceAuth, Amount: d(600)},
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.True(t, l.Balance("alice", "usd").Equal(d(1000)))
	require.True(t, l.Balance("bob", "usd").IsZero())
}

func TestApply_ValidatesInOrder(t *testing.T) {
	l, assetAuth, _ := newFunded(t)
	carolAuth, err := l.RegisterHolder("carol")
	require.NoError(t, err)

	// Mint to carol, then spend it in the same batch: the transfer must
	// see the minted balance.
	err = l.Apply([]Op{
		{Kind: OpMint, Asset: "usd", To: "carol", Authority: assetAuth, Amount: d(50)},
		{Kind: OpTransfer, Asset: "usd", From: "carol", To: "bob", Authority: carolAuth, Amount: d(50)},
	})
	require.NoError(t, err)
	require.True(t, l.Balance("carol", "usd").IsZero())
	require.True(t, l.Balance("bob", "usd").Equal(d(50)))
}

func TestBalances_ByHolder(t *testing.T) {
	l, _, _ := newFunded(t)
	eurAuth, err := l.RegisterAsset("eur")
	require.NoError(t, err)
	require.NoError(t, l.MintTo("eur", "alice", eurAuth, d(7)))

	got := l.Balances("alice")
	require.Len(t, got, 2)
	require.True(t, got["usd"].Equal(d(1000)))
	require.True(t, got["eur"].Equal(d(7)))
}
