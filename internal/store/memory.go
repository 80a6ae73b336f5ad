package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/yieldos/yield-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu           sync.RWMutex
	strategies   map[uint64]*model.Strategy
	positions    map[positionKey]*model.Position
	marketplaces map[uint64]*model.Marketplace
	orders       map[uint64]*model.TradeOrder
	trades       []model.Trade
	counters     map[string]uint64
	initialized  bool
}

type positionKey struct {
	user       string
	strategyID uint64
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		strategies:   make(map[uint64]*model.Strategy),
		positions:    make(map[positionKey]*model.Position),
		marketplaces: make(map[uint64]*model.Marketplace),
		orders:       make(map[uint64]*model.TradeOrder),
		counters:     make(map[string]uint64),
	}
}

// --- Strategies ---

func (s *MemoryStore) CreateStrategy(_ context.Context, st *model.Strategy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.strategies[st.ID]; ok {
		return fmt.Errorf("strategy %d: %w", st.ID, ErrAlreadyExists)
	}
	// Store a copy to avoid external mutation.
	cp := *st
	s.strategies[st.ID] = &cp
	return nil
}

func (s *MemoryStore) GetStrategy(_ context.Context, id uint64) (*model.Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.strategies[id]
	if !ok {
		return nil, fmt.Errorf("strategy %d: %w", id, ErrNotFound)
	}
	cp := *st
	return &cp, nil
}

func (s *MemoryStore) ListStrategies(_ context.Context) ([]model.Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Strategy, 0, len(s.strategies))
	for _, st := range s.strategies {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpdateStrategy(_ context.Context, st *model.Strategy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.strategies[st.ID]; !ok {
		return fmt.Errorf("strategy %d: %w", st.ID, ErrNotFound)
	}
	cp := *st
	s.strategies[st.ID] = &cp
	return nil
}

// --- Positions ---

func (s *MemoryStore) GetPosition(_ context.Context, user string, strategyID uint64) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[positionKey{user, strategyID}]
	if !ok {
		return nil, fmt.Errorf("position %s/%d: %w", user, strategyID, ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) PutPosition(_ context.Context, p *model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.positions[positionKey{p.User, p.StrategyID}] = &cp
	return nil
}

// --- Marketplaces ---

func (s *MemoryStore) CreateMarketplace(_ context.Context, m *model.Marketplace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.marketplaces[m.ID]; ok {
		return fmt.Errorf("marketplace %d: %w", m.ID, ErrAlreadyExists)
	}
	for _, existing := range s.marketplaces {
		if existing.StrategyID == m.StrategyID {
			return fmt.Errorf("marketplace for strategy %d: %w", m.StrategyID, ErrAlreadyExists)
		}
	}
	cp := *m
	s.marketplaces[m.ID] = &cp
	return nil
}

func (s *MemoryStore) GetMarketplace(_ context.Context, id uint64) (*model.Marketplace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.marketplaces[id]
	if !ok {
		return nil, fmt.Errorf("marketplace %d: %w", id, ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) GetMarketplaceByStrategy(_ context.Context, strategyID uint64) (*model.Marketplace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.marketplaces {
		if m.StrategyID == strategyID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("marketplace for strategy %d: %w", strategyID, ErrNotFound)
}

func (s *MemoryStore) UpdateMarketplace(_ context.Context, m *model.Marketplace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.marketplaces[m.ID]; !ok {
		return fmt.Errorf("marketplace %d: %w", m.ID, ErrNotFound)
	}
	cp := *m
	s.marketplaces[m.ID] = &cp
	return nil
}

// --- Orders ---

func (s *MemoryStore) CreateOrder(_ context.Context, o *model.TradeOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[o.ID]; ok {
		return fmt.Errorf("order %d: %w", o.ID, ErrAlreadyExists)
	}
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, id uint64) (*model.TradeOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	cp := *o
	return &cp, nil
}

func (s *MemoryStore) ListOrdersByMarketplace(_ context.Context, marketplaceID uint64) ([]model.TradeOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.TradeOrder
	for _, o := range s.orders {
		if o.MarketplaceID == marketplaceID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateOrder(_ context.Context, o *model.TradeOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[o.ID]; !ok {
		return fmt.Errorf("order %d: %w", o.ID, ErrNotFound)
	}
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

// --- Trade log ---

func (s *MemoryStore) InsertTrade(_ context.Context, t *model.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = append(s.trades, *t)
	return nil
}

func (s *MemoryStore) ListTradesByMarketplace(_ context.Context, marketplaceID uint64) ([]model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Trade
	for _, t := range s.trades {
		if t.MarketplaceID == marketplaceID {
			out = append(out, t)
		}
	}
	return out, nil
}

// --- Counters ---

func (s *MemoryStore) InitCounters(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return fmt.Errorf("counters: %w", ErrAlreadyExists)
	}
	s.counters[model.CounterStrategies] = 0
	s.counters[model.CounterMarketplaces] = 0
	s.counters[model.CounterOrders] = 0
	s.initialized = true
	return nil
}

func (s *MemoryStore) IncrementCounter(_ context.Context, name string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.counters[name]; !ok {
		return 0, fmt.Errorf("counter %s: %w", name, ErrNotFound)
	}
	s.counters[name]++
	return s.counters[name], nil
}

func (s *MemoryStore) GetCounter(_ context.Context, name string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.counters[name]
	if !ok {
		return 0, fmt.Errorf("counter %s: %w", name, ErrNotFound)
	}
	return v, nil
}
