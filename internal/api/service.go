// Package api provides the HTTP surface of the yield engine: strategy and
// position management, marketplace order flow, and trade settlement.
//
// All monetary values use shopspring/decimal, never float64.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/yieldos/yield-engine/internal/engine"
	"github.com/yieldos/yield-engine/internal/metrics"
	"github.com/yieldos/yield-engine/internal/model"
	"github.com/yieldos/yield-engine/internal/store"
	"github.com/yieldos/yield-engine/internal/token"
	"github.com/yieldos/yield-engine/internal/yield"
)

// Service exposes engine operations over HTTP. The engine serializes
// mutations internally; handlers stay thin and only translate between JSON
// and engine calls.
type Service struct {
	engine *engine.Engine
	wsHub  *WSHub // optional, nil disables broadcasting
}

// NewService creates the HTTP service. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewService(eng *engine.Engine, hub *WSHub) *Service {
	return &Service{engine: eng, wsHub: hub}
}

// Routes mounts all handlers on a chi router.
func (s *Service) Routes(r chi.Router) {
	r.Post("/protocol/init", s.InitializeProtocol)

	r.Post("/assets", s.RegisterAsset)
	r.Post("/assets/{asset}/issue", s.IssueAsset)

	r.Post("/strategies", s.CreateStrategy)
	r.Get("/strategies", s.ListStrategies)
	r.Get("/strategies/{strategyID}", s.GetStrategy)
	r.Post("/strategies/{strategyID}/active", s.SetStrategyActive)
	r.Post("/strategies/{strategyID}/deposit", s.Deposit)
	r.Post("/strategies/{strategyID}/claim", s.ClaimYield)
	r.Post("/strategies/{strategyID}/withdraw", s.Withdraw)
	r.Post("/strategies/{strategyID}/redeem", s.Redeem)
	r.Get("/strategies/{strategyID}/positions/{user}", s.GetPosition)
	r.Get("/strategies/{strategyID}/marketplace", s.GetMarketplaceForStrategy)

	r.Post("/marketplaces", s.CreateMarketplace)
	r.Get("/marketplaces/{marketplaceID}", s.GetMarketplace)
	r.Get("/marketplaces/{marketplaceID}/orders", s.ListOrders)
	r.Get("/marketplaces/{marketplaceID}/trades", s.ListTrades)

	r.Post("/orders", s.PlaceOrder)
	r.Get("/orders/{orderID}", s.GetOrder)
	r.Post("/orders/{orderID}/cancel", s.CancelOrder)

	r.Post("/trades", s.ExecuteTrade)

	r.Get("/balances/{user}", s.GetBalances)

	if s.wsHub != nil {
		r.Get("/ws", s.wsHub.HandleWS)
	}
}

// --- Request types ---

// CreateStrategyRequest is the JSON body for POST /strategies.
type CreateStrategyRequest struct {
	Admin           string `json:"admin"`
	StrategyID      uint64 `json:"strategy_id"`
	Name            string `json:"name"`
	UnderlyingAsset string `json:"underlying_asset"`
	RateBps         int64  `json:"rate_bps"`
}

// SetActiveRequest is the JSON body for POST /strategies/{id}/active.
type SetActiveRequest struct {
	Caller string `json:"caller"`
	Active bool   `json:"active"`
}

// AmountRequest is the JSON body for deposit, withdraw, and redeem.
type AmountRequest struct {
	User   string          `json:"user"`
	Amount decimal.Decimal `json:"amount"`
}

// ClaimRequest is the JSON body for POST /strategies/{id}/claim.
type ClaimRequest struct {
	User string `json:"user"`
}

// CreateMarketplaceRequest is the JSON body for POST /marketplaces.
type CreateMarketplaceRequest struct {
	Admin         string `json:"admin"`
	MarketplaceID uint64 `json:"marketplace_id"`
	StrategyID    uint64 `json:"strategy_id"`
	FeeBps        int64  `json:"fee_bps"`
}

// PlaceOrderRequest is the JSON body for POST /orders.
type PlaceOrderRequest struct {
	User          string          `json:"user"`
	OrderID       uint64          `json:"order_id"`
	MarketplaceID uint64          `json:"marketplace_id"`
	Side          model.OrderSide `json:"side"`
	Quantity      decimal.Decimal `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
}

// CancelOrderRequest is the JSON body for POST /orders/{id}/cancel.
type CancelOrderRequest struct {
	User string `json:"user"`
}

// ExecuteTradeRequest is the JSON body for POST /trades.
type ExecuteTradeRequest struct {
	BuyOrderID  uint64          `json:"buy_order_id"`
	SellOrderID uint64          `json:"sell_order_id"`
	Amount      decimal.Decimal `json:"amount"`
}

// ClaimResponse is the JSON body returned from POST /strategies/{id}/claim.
type ClaimResponse struct {
	User       string          `json:"user"`
	StrategyID uint64          `json:"strategy_id"`
	Claimed    decimal.Decimal `json:"claimed"`
}

// RedeemResponse is the JSON body returned from POST /strategies/{id}/redeem.
type RedeemResponse struct {
	User       string          `json:"user"`
	StrategyID uint64          `json:"strategy_id"`
	Burned     decimal.Decimal `json:"burned"`
	Payout     decimal.Decimal `json:"payout"`
}

// --- Handlers ---

// InitializeProtocol handles POST /api/v1/protocol/init.
func (s *Service) InitializeProtocol(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.InitializeProtocol(r.Context()); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "initialized"})
}

// RegisterAssetRequest is the JSON body for POST /assets.
type RegisterAssetRequest struct {
	Asset string `json:"asset"`
}

// IssueAssetRequest is the JSON body for POST /assets/{asset}/issue.
type IssueAssetRequest struct {
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// RegisterAsset handles POST /api/v1/assets.
func (s *Service) RegisterAsset(w http.ResponseWriter, r *http.Request) {
	var req RegisterAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Asset == "" {
		writeError(w, "asset is required", http.StatusBadRequest)
		return
	}
	if err := s.engine.RegisterAsset(req.Asset); err != nil {
		if errors.Is(err, token.ErrAssetExists) {
			writeError(w, err.Error(), http.StatusConflict)
			return
		}
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"asset": req.Asset})
}

// IssueAsset handles POST /api/v1/assets/{asset}/issue.
func (s *Service) IssueAsset(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	var req IssueAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.To == "" {
		writeError(w, "to is required", http.StatusBadRequest)
		return
	}
	if err := s.engine.IssueAsset(asset, req.To, req.Amount); err != nil {
		if errors.Is(err, token.ErrUnknownAsset) {
			writeError(w, err.Error(), http.StatusNotFound)
			return
		}
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"asset": asset, "to": req.To, "amount": req.Amount.String()})
}

// CreateStrategy handles POST /api/v1/strategies.
func (s *Service) CreateStrategy(w http.ResponseWriter, r *http.Request) {
	var req CreateStrategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Admin == "" || req.Name == "" || req.UnderlyingAsset == "" {
		writeError(w, "admin, name, and underlying_asset are required", http.StatusBadRequest)
		return
	}
	st, err := s.engine.CreateStrategy(r.Context(), req.Admin, req.StrategyID, req.Name, req.UnderlyingAsset, req.RateBps)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// ListStrategies handles GET /api/v1/strategies.
func (s *Service) ListStrategies(w http.ResponseWriter, r *http.Request) {
	list, err := s.engine.Strategies(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if list == nil {
		list = []model.Strategy{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetStrategy handles GET /api/v1/strategies/{strategyID}.
func (s *Service) GetStrategy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "strategyID")
	if !ok {
		return
	}
	st, err := s.engine.Strategy(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// SetStrategyActive handles POST /api/v1/strategies/{strategyID}/active.
func (s *Service) SetStrategyActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "strategyID")
	if !ok {
		return
	}
	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	st, err := s.engine.SetStrategyActive(r.Context(), req.Caller, id, req.Active)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Deposit handles POST /api/v1/strategies/{strategyID}/deposit.
func (s *Service) Deposit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "strategyID")
	if !ok {
		return
	}
	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.User == "" {
		writeError(w, "user is required", http.StatusBadRequest)
		return
	}
	p, err := s.engine.Deposit(r.Context(), req.User, id, req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	metrics.DepositsTotal.WithLabelValues(strconv.FormatUint(id, 10)).Inc()
	writeJSON(w, http.StatusCreated, p)
}

// ClaimYield handles POST /api/v1/strategies/{strategyID}/claim.
func (s *Service) ClaimYield(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "strategyID")
	if !ok {
		return
	}
	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	claimed, err := s.engine.ClaimYield(r.Context(), req.User, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	f, _ := claimed.Float64()
	metrics.YieldClaimed.WithLabelValues(strconv.FormatUint(id, 10)).Add(f)
	writeJSON(w, http.StatusOK, ClaimResponse{User: req.User, StrategyID: id, Claimed: claimed})
}

// Withdraw handles POST /api/v1/strategies/{strategyID}/withdraw.
func (s *Service) Withdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "strategyID")
	if !ok {
		return
	}
	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	p, err := s.engine.Withdraw(r.Context(), req.User, id, req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Redeem handles POST /api/v1/strategies/{strategyID}/redeem.
func (s *Service) Redeem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "strategyID")
	if !ok {
		return
	}
	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	payout, err := s.engine.RedeemYieldTokens(r.Context(), req.User, id, req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RedeemResponse{User: req.User, StrategyID: id, Burned: req.Amount, Payout: payout})
}

// GetPosition handles GET /api/v1/strategies/{strategyID}/positions/{user}.
func (s *Service) GetPosition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "strategyID")
	if !ok {
		return
	}
	user := chi.URLParam(r, "user")
	p, err := s.engine.Position(r.Context(), user, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetMarketplaceForStrategy handles GET /api/v1/strategies/{strategyID}/marketplace.
func (s *Service) GetMarketplaceForStrategy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "strategyID")
	if !ok {
		return
	}
	m, err := s.engine.MarketplaceForStrategy(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// CreateMarketplace handles POST /api/v1/marketplaces.
func (s *Service) CreateMarketplace(w http.ResponseWriter, r *http.Request) {
	var req CreateMarketplaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Admin == "" {
		writeError(w, "admin is required", http.StatusBadRequest)
		return
	}
	m, err := s.engine.CreateMarketplace(r.Context(), req.Admin, req.MarketplaceID, req.StrategyID, req.FeeBps)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// GetMarketplace handles GET /api/v1/marketplaces/{marketplaceID}.
func (s *Service) GetMarketplace(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "marketplaceID")
	if !ok {
		return
	}
	m, err := s.engine.Marketplace(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ListOrders handles GET /api/v1/marketplaces/{marketplaceID}/orders.
func (s *Service) ListOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "marketplaceID")
	if !ok {
		return
	}
	orders, err := s.engine.Orders(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if orders == nil {
		orders = []model.TradeOrder{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// ListTrades handles GET /api/v1/marketplaces/{marketplaceID}/trades.
func (s *Service) ListTrades(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "marketplaceID")
	if !ok {
		return
	}
	trades, err := s.engine.Trades(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}
	writeJSON(w, http.StatusOK, trades)
}

// PlaceOrder handles POST /api/v1/orders.
func (s *Service) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.User == "" {
		writeError(w, "user is required", http.StatusBadRequest)
		return
	}
	o, err := s.engine.PlaceOrder(r.Context(), req.User, req.OrderID, req.MarketplaceID, req.Side, req.Quantity, req.Price)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	metrics.OrdersPlaced.WithLabelValues(string(o.Side)).Inc()
	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:          "order_placed",
			MarketplaceID: o.MarketplaceID,
			OrderID:       o.ID,
			Side:          string(o.Side),
			Quantity:      o.Quantity.String(),
			Price:         o.Price.String(),
		})
	}
	writeJSON(w, http.StatusCreated, o)
}

// GetOrder handles GET /api/v1/orders/{orderID}.
func (s *Service) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	o, err := s.engine.Order(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// CancelOrder handles POST /api/v1/orders/{orderID}/cancel.
func (s *Service) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	o, err := s.engine.CancelOrder(r.Context(), req.User, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:          "order_cancelled",
			MarketplaceID: o.MarketplaceID,
			OrderID:       o.ID,
			Side:          string(o.Side),
		})
	}
	writeJSON(w, http.StatusOK, o)
}

// ExecuteTrade handles POST /api/v1/trades.
func (s *Service) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req ExecuteTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	tr, err := s.engine.ExecuteTrade(r.Context(), req.BuyOrderID, req.SellOrderID, req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	label := strconv.FormatUint(tr.MarketplaceID, 10)
	metrics.TradesTotal.WithLabelValues(label).Inc()
	payment, _ := tr.Payment.Float64()
	metrics.TradeVolume.WithLabelValues(label).Add(payment)
	fee, _ := tr.Fee.Float64()
	metrics.FeesCollected.WithLabelValues(label).Add(fee)
	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:          "trade_executed",
			MarketplaceID: tr.MarketplaceID,
			TradeID:       tr.ID,
			Quantity:      tr.Quantity.String(),
			Price:         tr.Price.String(),
			Payment:       tr.Payment.String(),
			Fee:           tr.Fee.String(),
		})
	}
	writeJSON(w, http.StatusCreated, tr)
}

// GetBalances handles GET /api/v1/balances/{user}.
func (s *Service) GetBalances(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	writeJSON(w, http.StatusOK, s.engine.Balances(user))
}

// --- Helpers ---

func pathID(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeError(w, "invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeEngineError maps engine failures onto HTTP statuses: validation to
// 400, authorization to 403, missing records to 404, state and resource
// conflicts to 409.
func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, engine.ErrInvalidPrice),
		errors.Is(err, engine.ErrInvalidOrderSide),
		errors.Is(err, engine.ErrFeeTooHigh),
		errors.Is(err, engine.ErrNameTooLong),
		errors.Is(err, yield.ErrRateTooHigh):
		status = http.StatusBadRequest

	case errors.Is(err, engine.ErrUnauthorized),
		errors.Is(err, engine.ErrUnauthorizedUser):
		status = http.StatusForbidden

	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, engine.ErrNoPosition):
		status = http.StatusNotFound

	case errors.Is(err, store.ErrAlreadyExists),
		errors.Is(err, engine.ErrAlreadyInitialized),
		errors.Is(err, engine.ErrStrategyNotActive),
		errors.Is(err, engine.ErrMarketplaceNotActive),
		errors.Is(err, engine.ErrOrderNotActive),
		errors.Is(err, engine.ErrOrderNotFillable),
		errors.Is(err, engine.ErrOrderMarketplaceMismatch),
		errors.Is(err, engine.ErrOrderSideMismatch),
		errors.Is(err, engine.ErrPriceMismatch),
		errors.Is(err, engine.ErrInsufficientBalance),
		errors.Is(err, engine.ErrInsufficientYieldTokens),
		errors.Is(err, engine.ErrNoYieldToClaim),
		errors.Is(err, engine.ErrNoRefundAvailable),
		errors.Is(err, engine.ErrNoTradeableAmount):
		status = http.StatusConflict
	}
	writeError(w, err.Error(), status)
}
