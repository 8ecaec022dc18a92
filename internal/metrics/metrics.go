// Package metrics holds the engine-level Prometheus series:
//
//	bot_signals_total{action,executed,schedule}  decisions per sample
//	bot_orders_total{status}                     order outcomes (ok|error)
//	bot_equity_usd / bot_drawdown_usd / bot_trades  real book snapshot
//
// Order retry and latency series live with the order guard.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chidi150c/vwaplive/internal/ledger"
)

var (
	Signals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_signals_total",
			Help: "Signals evaluated, by action, whether an order followed and schedule",
		},
		[]string{"action", "executed", "schedule"},
	)

	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_orders_total",
			Help: "Orders submitted, by final status",
		},
		[]string{"status"},
	)

	Equity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bot_equity_usd",
		Help: "Equity of the real book in USD",
	})

	Drawdown = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bot_drawdown_usd",
		Help: "Drawdown of the real book from its peak equity",
	})

	Trades = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bot_trades",
		Help: "Fills recorded by the real book",
	})
)

func init() {
	prometheus.MustRegister(Signals, Orders, Equity, Drawdown, Trades)
}

// RecordSignal counts one decision. Empty action/schedule map to FLAT/NA.
func RecordSignal(action string, executed bool, schedule string) {
	if action == "" {
		action = "FLAT"
	}
	if schedule == "" {
		schedule = "NA"
	}
	Signals.WithLabelValues(action, strconv.FormatBool(executed), schedule).Inc()
}

// IncOrder counts one order outcome.
func IncOrder(status string) {
	if status == "" {
		status = "unknown"
	}
	Orders.WithLabelValues(status).Inc()
}

// SetPerf publishes a book snapshot.
func SetPerf(s ledger.Snapshot) {
	Equity.Set(s.Equity)
	Drawdown.Set(s.Drawdown)
	Trades.Set(float64(s.Trades))
}
