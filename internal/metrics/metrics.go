package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Poll pipeline metrics
	PollCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whalewatch_poll_cycles_total",
			Help: "Total number of per-exchange poll-reconcile cycles",
		},
		[]string{"exchange", "status"}, // status: success|error|skipped
	)

	FetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "whalewatch_fetch_duration_seconds",
			Help:    "Exchange order book fetch duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"exchange"},
	)

	BreakerOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "whalewatch_breaker_open",
			Help: "1 when the circuit breaker for an exchange is open",
		},
		[]string{"exchange"},
	)

	// Order lifecycle metrics
	OrdersActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "whalewatch_orders_active_count",
			Help: "Current number of tracked active whale orders",
		},
		[]string{"exchange"},
	)

	OrdersCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whalewatch_orders_created_total",
			Help: "Total whale orders created",
		},
		[]string{"exchange"},
	)

	OrdersFilled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whalewatch_orders_filled_total",
			Help: "Total whale orders marked filled",
		},
		[]string{"exchange"},
	)

	OrdersDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whalewatch_orders_deleted_total",
			Help: "Total whale orders marked deleted after the grace period",
		},
		[]string{"exchange"},
	)

	// Snapshot metrics
	SnapshotTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "whalewatch_snapshot_timestamp",
			Help: "Unix timestamp of the latest liquidity snapshot",
		},
	)

	SnapshotLevels = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "whalewatch_snapshot_levels",
			Help: "Number of price buckets in the latest liquidity snapshot",
		},
	)

	// WebSocket metrics
	WebSocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "whalewatch_websocket_connections",
			Help: "Current number of connected WebSocket subscribers",
		},
	)
)

// Init registers all collectors with the default registry
func Init() {
	prometheus.MustRegister(PollCycles)
	prometheus.MustRegister(FetchDuration)
	prometheus.MustRegister(BreakerOpen)

	prometheus.MustRegister(OrdersActive)
	prometheus.MustRegister(OrdersCreated)
	prometheus.MustRegister(OrdersFilled)
	prometheus.MustRegister(OrdersDeleted)

	prometheus.MustRegister(SnapshotTimestamp)
	prometheus.MustRegister(SnapshotLevels)

	prometheus.MustRegister(WebSocketConnections)
}

// Handler returns the HTTP handler for the /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
