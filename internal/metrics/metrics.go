// Package metrics exposes the bot's Prometheus instrumentation on a
// private registry so the status server controls what is exported.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the bot records into.
type Metrics struct {
	registry *prometheus.Registry

	CyclesTotal      prometheus.Counter
	CycleErrorsTotal prometheus.Counter
	APIErrorsTotal   prometheus.Counter
	OrdersTotal      *prometheus.CounterVec
	ArmSelections    *prometheus.CounterVec
	BreakerTripped   prometheus.Gauge
	DailyPnL         prometheus.Gauge
	OpenPosition     prometheus.Gauge
	Balance          prometheus.Gauge
}

// New builds and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swingbot_cycles_total",
			Help: "Decision cycles started.",
		}),
		CycleErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swingbot_cycle_errors_total",
			Help: "Decision cycles that ended in an error.",
		}),
		APIErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swingbot_api_errors_total",
			Help: "External API call failures.",
		}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swingbot_orders_total",
			Help: "Orders placed, by side.",
		}, []string{"side"}),
		ArmSelections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swingbot_arm_selections_total",
			Help: "Bandit arm selections, by arm index.",
		}, []string{"arm"}),
		BreakerTripped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swingbot_breaker_tripped",
			Help: "1 while the circuit breaker is tripped.",
		}),
		DailyPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swingbot_daily_pnl",
			Help: "Realized PnL for the current UTC day, in quote currency.",
		}),
		OpenPosition: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swingbot_open_position",
			Help: "1 while a position is open.",
		}),
		Balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swingbot_balance",
			Help: "Quote currency balance.",
		}),
	}
	registry.MustRegister(
		m.CyclesTotal,
		m.CycleErrorsTotal,
		m.APIErrorsTotal,
		m.OrdersTotal,
		m.ArmSelections,
		m.BreakerTripped,
		m.DailyPnL,
		m.OpenPosition,
		m.Balance,
	)
	return m
}

// RecordArmSelection bumps the selection counter for one arm.
func (m *Metrics) RecordArmSelection(arm int) {
	m.ArmSelections.WithLabelValues(strconv.Itoa(arm)).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
