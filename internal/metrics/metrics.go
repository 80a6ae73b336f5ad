// Package metrics provides Prometheus instrumentation for the yield engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts settlements, partitioned by marketplace.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yieldos_trades_total",
		Help: "Total number of trades settled",
	}, []string{"marketplace_id"})

	// TradeVolume tracks cumulative settlement payments in underlying units.
	TradeVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yieldos_trade_volume_total",
		Help: "Cumulative settlement payment volume in underlying base units",
	}, []string{"marketplace_id"})

	// FeesCollected tracks cumulative marketplace fees in underlying units.
	FeesCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yieldos_fees_collected_total",
		Help: "Cumulative trading fees collected in underlying base units",
	}, []string{"marketplace_id"})

	// DepositsTotal counts strategy deposits.
	DepositsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yieldos_deposits_total",
		Help: "Total number of strategy deposits",
	}, []string{"strategy_id"})

	// YieldClaimed tracks cumulative claim tokens minted through claims.
	YieldClaimed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yieldos_yield_claimed_total",
		Help: "Cumulative yield claimed in claim-token base units",
	}, []string{"strategy_id"})

	// OrdersPlaced counts resting orders, partitioned by side.
	OrdersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yieldos_orders_placed_total",
		Help: "Total number of orders placed",
	}, []string{"side"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "yieldos_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yieldos_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "yieldos_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
