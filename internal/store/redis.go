package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yieldos/yield-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for the hot records: strategies, marketplaces, and orders. Writes go
// to the primary store and invalidate the cache; reads check Redis first then
// fall back to the primary. Positions, trades, and counters pass through;
// every position read happens inside a mutating operation anyway.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Strategies ---

func (s *CachedStore) CreateStrategy(ctx context.Context, st *model.Strategy) error {
	if err := s.primary.CreateStrategy(ctx, st); err != nil {
		return err
	}
	s.cache(ctx, strategyKey(st.ID), st)
	return nil
}

func (s *CachedStore) GetStrategy(ctx context.Context, id uint64) (*model.Strategy, error) {
	if data, err := s.rdb.Get(ctx, strategyKey(id)).Bytes(); err == nil {
		var c cachedStrategy
		if json.Unmarshal(data, &c) == nil {
			st := c.Strategy
			st.VaultAuthority = c.VaultAuthority
			st.MintAuthority = c.MintAuthority
			return &st, nil
		}
	}

	st, err := s.primary.GetStrategy(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, strategyKey(id), st)
	return st, nil
}

func (s *CachedStore) ListStrategies(ctx context.Context) ([]model.Strategy, error) {
	return s.primary.ListStrategies(ctx)
}

func (s *CachedStore) UpdateStrategy(ctx context.Context, st *model.Strategy) error {
	if err := s.primary.UpdateStrategy(ctx, st); err != nil {
		return err
	}
	// Invalidate; next read re-populates.
	s.rdb.Del(ctx, strategyKey(st.ID))
	return nil
}

// --- Positions (passthrough) ---

func (s *CachedStore) GetPosition(ctx context.Context, user string, strategyID uint64) (*model.Position, error) {
	return s.primary.GetPosition(ctx, user, strategyID)
}

func (s *CachedStore) PutPosition(ctx context.Context, p *model.Position) error {
	return s.primary.PutPosition(ctx, p)
}

// --- Marketplaces ---

func (s *CachedStore) CreateMarketplace(ctx context.Context, m *model.Marketplace) error {
	if err := s.primary.CreateMarketplace(ctx, m); err != nil {
		return err
	}
	s.cache(ctx, marketplaceKey(m.ID), m)
	return nil
}

func (s *CachedStore) GetMarketplace(ctx context.Context, id uint64) (*model.Marketplace, error) {
	if data, err := s.rdb.Get(ctx, marketplaceKey(id)).Bytes(); err == nil {
		var c cachedMarketplace
		if json.Unmarshal(data, &c) == nil {
			m := c.Marketplace
			m.FeeAuthority = c.FeeAuthority
			return &m, nil
		}
	}

	m, err := s.primary.GetMarketplace(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, marketplaceKey(id), m)
	return m, nil
}

func (s *CachedStore) GetMarketplaceByStrategy(ctx context.Context, strategyID uint64) (*model.Marketplace, error) {
	return s.primary.GetMarketplaceByStrategy(ctx, strategyID)
}

func (s *CachedStore) UpdateMarketplace(ctx context.Context, m *model.Marketplace) error {
	if err := s.primary.UpdateMarketplace(ctx, m); err != nil {
		return err
	}
	s.rdb.Del(ctx, marketplaceKey(m.ID))
	return nil
}

// --- Orders ---

func (s *CachedStore) CreateOrder(ctx context.Context, o *model.TradeOrder) error {
	if err := s.primary.CreateOrder(ctx, o); err != nil {
		return err
	}
	s.cache(ctx, orderKey(o.ID), o)
	return nil
}

func (s *CachedStore) GetOrder(ctx context.Context, id uint64) (*model.TradeOrder, error) {
	if data, err := s.rdb.Get(ctx, orderKey(id)).Bytes(); err == nil {
		var c cachedOrder
		if json.Unmarshal(data, &c) == nil {
			o := c.TradeOrder
			o.EscrowAuthority = c.EscrowAuthority
			return &o, nil
		}
	}

	o, err := s.primary.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, orderKey(id), o)
	return o, nil
}

func (s *CachedStore) ListOrdersByMarketplace(ctx context.Context, marketplaceID uint64) ([]model.TradeOrder, error) {
	return s.primary.ListOrdersByMarketplace(ctx, marketplaceID)
}

func (s *CachedStore) UpdateOrder(ctx context.Context, o *model.TradeOrder) error {
	if err := s.primary.UpdateOrder(ctx, o); err != nil {
		return err
	}
	s.rdb.Del(ctx, orderKey(o.ID))
	return nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) InsertTrade(ctx context.Context, t *model.Trade) error {
	return s.primary.InsertTrade(ctx, t)
}

func (s *CachedStore) ListTradesByMarketplace(ctx context.Context, marketplaceID uint64) ([]model.Trade, error) {
	return s.primary.ListTradesByMarketplace(ctx, marketplaceID)
}

func (s *CachedStore) InitCounters(ctx context.Context) error {
	return s.primary.InitCounters(ctx)
}

func (s *CachedStore) IncrementCounter(ctx context.Context, name string) (uint64, error) {
	return s.primary.IncrementCounter(ctx, name)
}

func (s *CachedStore) GetCounter(ctx context.Context, name string) (uint64, error) {
	return s.primary.GetCounter(ctx, name)
}

// --- Cache helpers ---

// The escrow/vault authorities carry json:"-" so they never reach clients;
// cached copies still need them, so records round-trip through wrapper types
// that carry the authority fields under explicit keys.

type cachedStrategy struct {
	model.Strategy
	VaultAuthority string `json:"vault_authority"`
	MintAuthority  string `json:"mint_authority"`
}

type cachedMarketplace struct {
	model.Marketplace
	FeeAuthority string `json:"fee_authority"`
}

type cachedOrder struct {
	model.TradeOrder
	EscrowAuthority string `json:"escrow_authority"`
}

func (s *CachedStore) cache(ctx context.Context, key string, v any) {
	var payload any
	switch rec := v.(type) {
	case *model.Strategy:
		payload = cachedStrategy{*rec, rec.VaultAuthority, rec.MintAuthority}
	case *model.Marketplace:
		payload = cachedMarketplace{*rec, rec.FeeAuthority}
	case *model.TradeOrder:
		payload = cachedOrder{*rec, rec.EscrowAuthority}
	default:
		payload = v
	}
	if data, err := json.Marshal(payload); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func strategyKey(id uint64) string    { return fmt.Sprintf("strategy:%d", id) }
func marketplaceKey(id uint64) string { return fmt.Sprintf("marketplace:%d", id) }
func orderKey(id uint64) string       { return fmt.Sprintf("order:%d", id) }
