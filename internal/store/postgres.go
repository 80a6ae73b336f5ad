package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/yieldos/yield-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func notFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// --- Strategies ---

func (s *PostgresStore) CreateStrategy(ctx context.Context, st *model.Strategy) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO strategies (strategy_id, admin, underlying_asset, yield_asset, name, rate_bps,
		                         total_deposits, total_yield_minted, active, created_at,
		                         vault_authority, mint_authority)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $8::NUMERIC, $9, $10, $11, $12)`,
		st.ID, st.Admin, st.UnderlyingAsset, st.YieldAsset, st.Name, st.RateBps,
		st.TotalDeposits.String(), st.TotalYieldMinted.String(), st.Active, st.CreatedAt,
		st.VaultAuthority, st.MintAuthority,
	)
	return err
}

func (s *PostgresStore) GetStrategy(ctx context.Context, id uint64) (*model.Strategy, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT strategy_id, admin, underlying_asset, yield_asset, name, rate_bps,
		        total_deposits::TEXT, total_yield_minted::TEXT, active, created_at,
		        vault_authority, mint_authority
		 FROM strategies WHERE strategy_id = $1`, id)
	st, err := scanStrategy(row)
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("strategy %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get strategy %d: %w", id, err)
	}
	return st, nil
}

func (s *PostgresStore) ListStrategies(ctx context.Context) ([]model.Strategy, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT strategy_id, admin, underlying_asset, yield_asset, name, rate_bps,
		        total_deposits::TEXT, total_yield_minted::TEXT, active, created_at,
		        vault_authority, mint_authority
		 FROM strategies ORDER BY strategy_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Strategy
	for rows.Next() {
		st, err := scanStrategy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateStrategy(ctx context.Context, st *model.Strategy) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE strategies
		 SET total_deposits = $2::NUMERIC, total_yield_minted = $3::NUMERIC, active = $4
		 WHERE strategy_id = $1`,
		st.ID, st.TotalDeposits.String(), st.TotalYieldMinted.String(), st.Active,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("strategy %d: %w", st.ID, ErrNotFound)
	}
	return nil
}

type pgxRow interface {
	Scan(dest ...any) error
}

func scanStrategy(row pgxRow) (*model.Strategy, error) {
	var st model.Strategy
	var deposits, minted string
	if err := row.Scan(&st.ID, &st.Admin, &st.UnderlyingAsset, &st.YieldAsset, &st.Name, &st.RateBps,
		&deposits, &minted, &st.Active, &st.CreatedAt,
		&st.VaultAuthority, &st.MintAuthority); err != nil {
		return nil, err
	}
	st.TotalDeposits, _ = decimal.NewFromString(deposits)
	st.TotalYieldMinted, _ = decimal.NewFromString(minted)
	return &st, nil
}

// --- Positions ---

func (s *PostgresStore) GetPosition(ctx context.Context, user string, strategyID uint64) (*model.Position, error) {
	var p model.Position
	var deposited, minted, claimed string

	err := s.pool.QueryRow(ctx,
		`SELECT position_id, user_id, strategy_id,
		        deposited::TEXT, yield_minted::TEXT, deposit_time, last_yield_claim, total_claimed::TEXT
		 FROM positions WHERE user_id = $1 AND strategy_id = $2`, user, strategyID).
		Scan(&p.ID, &p.User, &p.StrategyID,
			&deposited, &minted, &p.DepositTime, &p.LastYieldClaim, &claimed)
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("position %s/%d: %w", user, strategyID, ErrNotFound)
		}
		return nil, fmt.Errorf("get position %s/%d: %w", user, strategyID, err)
	}

	p.Deposited, _ = decimal.NewFromString(deposited)
	p.YieldMinted, _ = decimal.NewFromString(minted)
	p.TotalClaimed, _ = decimal.NewFromString(claimed)
	return &p, nil
}

func (s *PostgresStore) PutPosition(ctx context.Context, p *model.Position) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO positions (position_id, user_id, strategy_id, deposited, yield_minted,
		                        deposit_time, last_yield_claim, total_claimed)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6, $7, $8::NUMERIC)
		 ON CONFLICT (user_id, strategy_id) DO UPDATE
		 SET position_id = EXCLUDED.position_id,
		     deposited = EXCLUDED.deposited,
		     yield_minted = EXCLUDED.yield_minted,
		     deposit_time = EXCLUDED.deposit_time,
		     last_yield_claim = EXCLUDED.last_yield_claim,
		     total_claimed = EXCLUDED.total_claimed`,
		p.ID, p.User, p.StrategyID, p.Deposited.String(), p.YieldMinted.String(),
		p.DepositTime, p.LastYieldClaim, p.TotalClaimed.String(),
	)
	return err
}

// --- Marketplaces ---

func (s *PostgresStore) CreateMarketplace(ctx context.Context, m *model.Marketplace) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO marketplaces (marketplace_id, admin, strategy_id, yield_asset, underlying_asset,
		                           total_volume, total_trades, best_bid, best_ask, fee_bps,
		                           active, created_at, fee_authority)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7, $8::NUMERIC, $9::NUMERIC, $10, $11, $12, $13)`,
		m.ID, m.Admin, m.StrategyID, m.YieldAsset, m.UnderlyingAsset,
		m.TotalVolume.String(), m.TotalTrades, m.BestBid.String(), m.BestAsk.String(), m.FeeBps,
		m.Active, m.CreatedAt, m.FeeAuthority,
	)
	return err
}

func (s *PostgresStore) GetMarketplace(ctx context.Context, id uint64) (*model.Marketplace, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT marketplace_id, admin, strategy_id, yield_asset, underlying_asset,
		        total_volume::TEXT, total_trades, best_bid::TEXT, best_ask::TEXT, fee_bps,
		        active, created_at, fee_authority
		 FROM marketplaces WHERE marketplace_id = $1`, id)
	m, err := scanMarketplace(row)
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("marketplace %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get marketplace %d: %w", id, err)
	}
	return m, nil
}

func (s *PostgresStore) GetMarketplaceByStrategy(ctx context.Context, strategyID uint64) (*model.Marketplace, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT marketplace_id, admin, strategy_id, yield_asset, underlying_asset,
		        total_volume::TEXT, total_trades, best_bid::TEXT, best_ask::TEXT, fee_bps,
		        active, created_at, fee_authority
		 FROM marketplaces WHERE strategy_id = $1`, strategyID)
	m, err := scanMarketplace(row)
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("marketplace for strategy %d: %w", strategyID, ErrNotFound)
		}
		return nil, fmt.Errorf("get marketplace for strategy %d: %w", strategyID, err)
	}
	return m, nil
}

func (s *PostgresStore) UpdateMarketplace(ctx context.Context, m *model.Marketplace) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE marketplaces
		 SET total_volume = $2::NUMERIC, total_trades = $3,
		     best_bid = $4::NUMERIC, best_ask = $5::NUMERIC, active = $6
		 WHERE marketplace_id = $1`,
		m.ID, m.TotalVolume.String(), m.TotalTrades,
		m.BestBid.String(), m.BestAsk.String(), m.Active,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("marketplace %d: %w", m.ID, ErrNotFound)
	}
	return nil
}

func scanMarketplace(row pgxRow) (*model.Marketplace, error) {
	var m model.Marketplace
	var volume, bid, ask string
	if err := row.Scan(&m.ID, &m.Admin, &m.StrategyID, &m.YieldAsset, &m.UnderlyingAsset,
		&volume, &m.TotalTrades, &bid, &ask, &m.FeeBps,
		&m.Active, &m.CreatedAt, &m.FeeAuthority); err != nil {
		return nil, err
	}
	m.TotalVolume, _ = decimal.NewFromString(volume)
	m.BestBid, _ = decimal.NewFromString(bid)
	m.BestAsk, _ = decimal.NewFromString(ask)
	return &m, nil
}

// --- Orders ---

func (s *PostgresStore) CreateOrder(ctx context.Context, o *model.TradeOrder) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trade_orders (order_id, user_id, marketplace_id, side, quantity, price,
		                           total_value, filled, active, created_at, escrow_authority)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9, $10, $11)`,
		o.ID, o.User, o.MarketplaceID, string(o.Side), o.Quantity.String(), o.Price.String(),
		o.TotalValue.String(), o.Filled.String(), o.Active, o.CreatedAt, o.EscrowAuthority,
	)
	return err
}

func (s *PostgresStore) GetOrder(ctx context.Context, id uint64) (*model.TradeOrder, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT order_id, user_id, marketplace_id, side, quantity::TEXT, price::TEXT,
		        total_value::TEXT, filled::TEXT, active, created_at, escrow_authority
		 FROM trade_orders WHERE order_id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	return o, nil
}

func (s *PostgresStore) ListOrdersByMarketplace(ctx context.Context, marketplaceID uint64) ([]model.TradeOrder, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT order_id, user_id, marketplace_id, side, quantity::TEXT, price::TEXT,
		        total_value::TEXT, filled::TEXT, active, created_at, escrow_authority
		 FROM trade_orders WHERE marketplace_id = $1 ORDER BY created_at DESC`, marketplaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TradeOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateOrder(ctx context.Context, o *model.TradeOrder) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE trade_orders SET filled = $2::NUMERIC, active = $3 WHERE order_id = $1`,
		o.ID, o.Filled.String(), o.Active,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %d: %w", o.ID, ErrNotFound)
	}
	return nil
}

func scanOrder(row pgxRow) (*model.TradeOrder, error) {
	var o model.TradeOrder
	var side, quantity, price, totalValue, filled string
	if err := row.Scan(&o.ID, &o.User, &o.MarketplaceID, &side, &quantity, &price,
		&totalValue, &filled, &o.Active, &o.CreatedAt, &o.EscrowAuthority); err != nil {
		return nil, err
	}
	o.Side = model.OrderSide(side)
	o.Quantity, _ = decimal.NewFromString(quantity)
	o.Price, _ = decimal.NewFromString(price)
	o.TotalValue, _ = decimal.NewFromString(totalValue)
	o.Filled, _ = decimal.NewFromString(filled)
	return &o, nil
}

// --- Trade log ---

func (s *PostgresStore) InsertTrade(ctx context.Context, t *model.Trade) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trades (id, marketplace_id, buy_order_id, sell_order_id, buyer, seller,
		                     quantity, price, payment, fee, executed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC, $10::NUMERIC, $11)`,
		t.ID, t.MarketplaceID, t.BuyOrderID, t.SellOrderID, t.Buyer, t.Seller,
		t.Quantity.String(), t.Price.String(), t.Payment.String(), t.Fee.String(), t.ExecutedAt,
	)
	return err
}

func (s *PostgresStore) ListTradesByMarketplace(ctx context.Context, marketplaceID uint64) ([]model.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, marketplace_id, buy_order_id, sell_order_id, buyer, seller,
		        quantity::TEXT, price::TEXT, payment::TEXT, fee::TEXT, executed_at
		 FROM trades WHERE marketplace_id = $1 ORDER BY executed_at`, marketplaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Trade
	for rows.Next() {
		var t model.Trade
		var quantity, price, payment, fee string
		if err := rows.Scan(&t.ID, &t.MarketplaceID, &t.BuyOrderID, &t.SellOrderID, &t.Buyer, &t.Seller,
			&quantity, &price, &payment, &fee, &t.ExecutedAt); err != nil {
			return nil, err
		}
		t.Quantity, _ = decimal.NewFromString(quantity)
		t.Price, _ = decimal.NewFromString(price)
		t.Payment, _ = decimal.NewFromString(payment)
		t.Fee, _ = decimal.NewFromString(fee)
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- Counters ---

func (s *PostgresStore) InitCounters(ctx context.Context) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO counters (name, value)
		 VALUES ($1, 0), ($2, 0), ($3, 0)
		 ON CONFLICT (name) DO NOTHING`,
		model.CounterStrategies, model.CounterMarketplaces, model.CounterOrders,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("counters: %w", ErrAlreadyExists)
	}
	return nil
}

func (s *PostgresStore) IncrementCounter(ctx context.Context, name string) (uint64, error) {
	var v uint64
	err := s.pool.QueryRow(ctx,
		`UPDATE counters SET value = value + 1 WHERE name = $1 RETURNING value`, name).Scan(&v)
	if err != nil {
		if notFound(err) {
			return 0, fmt.Errorf("counter %s: %w", name, ErrNotFound)
		}
		return 0, err
	}
	return v, nil
}

func (s *PostgresStore) GetCounter(ctx context.Context, name string) (uint64, error) {
	var v uint64
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM counters WHERE name = $1`, name).Scan(&v)
	if err != nil {
		if notFound(err) {
			return 0, fmt.Errorf("counter %s: %w", name, ErrNotFound)
		}
		return 0, err
	}
	return v, nil
}
