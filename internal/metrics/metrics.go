package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scansTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spotbot_scans_total",
			Help: "Completed market scan cycles",
		},
	)

	scanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spotbot_scan_duration_seconds",
			Help:    "Wall clock time of one scan cycle",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	symbolsScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spotbot_symbols_scanned_total",
			Help: "Symbols analyzed across all scans",
		},
	)

	opportunitiesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spotbot_opportunities_total",
			Help: "Symbols whose score reached the minimum",
		},
	)

	ordersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotbot_orders_total",
			Help: "Market orders submitted by side and outcome",
		},
		[]string{"side", "status"},
	)

	openPositions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spotbot_open_positions",
			Help: "Currently open positions",
		},
	)

	realizedPnL = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spotbot_realized_pnl_usdt",
			Help: "Cumulative realized profit in USDT",
		},
	)

	tickErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotbot_tick_errors_total",
			Help: "Failures inside the engine tick by stage",
		},
		[]string{"stage"},
	)

	engineState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spotbot_engine_state",
			Help: "Engine state (0=idle, 1=running, 2=stopping, 3=stopped)",
		},
	)
)

// ObserveScan records a finished scan cycle
func ObserveScan(d time.Duration, symbols int) {
	scansTotal.Inc()
	scanDuration.Observe(d.Seconds())
	symbolsScanned.Add(float64(symbols))
}

func IncOpportunity() {
	opportunitiesTotal.Inc()
}

// IncOrder counts an order. status is the exchange status or "error".
func IncOrder(side, status string) {
	ordersTotal.WithLabelValues(side, status).Inc()
}

func SetOpenPositions(n int) {
	openPositions.Set(float64(n))
}

func AddRealizedPnL(profit float64) {
	realizedPnL.Add(profit)
}

func IncTickError(stage string) {
	tickErrors.WithLabelValues(stage).Inc()
}

func SetEngineState(state int) {
	engineState.Set(float64(state))
}
