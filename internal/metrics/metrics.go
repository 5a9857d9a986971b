// Package metrics exports engine activity as prometheus series.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder counts bars, events and trades per session. It owns its
// registry so several recorders can live in one process (tests, parallel
// backtests) without duplicate registration panics.
type Recorder struct {
	reg *prometheus.Registry

	bars     *prometheus.CounterVec
	events   *prometheus.CounterVec
	trades   *prometheus.CounterVec
	equity   *prometheus.GaugeVec
	duration prometheus.Histogram
}

// New creates a recorder backed by a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Recorder{
		reg: reg,
		bars: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trader_bars_total",
				Help: "Bars offered to a session, by result",
			},
			[]string{"symbol", "timeframe", "result"},
		),
		events: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trader_events_total",
				Help: "Rejected or degraded events, by kind",
			},
			[]string{"symbol", "timeframe", "kind"},
		),
		trades: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trader_trades_total",
				Help: "Closed trades, by outcome",
			},
			[]string{"symbol", "timeframe", "outcome"},
		),
		equity: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trader_equity",
				Help: "Current session equity",
			},
			[]string{"symbol", "timeframe"},
		),
		duration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "trader_bar_process_seconds",
				Help:    "Time spent processing one bar",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
		),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// Handler serves the registry in the prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveBar records one ProcessBar call.
func (r *Recorder) ObserveBar(symbol, timeframe string, accepted bool, d time.Duration) {
	result := "accepted"
	if !accepted {
		result = "rejected"
	}
	r.bars.WithLabelValues(symbol, timeframe, result).Inc()
	r.duration.Observe(d.Seconds())
}

// ObserveEvent records a rejected or degraded event.
func (r *Recorder) ObserveEvent(symbol, timeframe, kind string) {
	r.events.WithLabelValues(symbol, timeframe, kind).Inc()
}

// ObserveTrade records a closed trade.
func (r *Recorder) ObserveTrade(symbol, timeframe string, pnl float64) {
	outcome := "loss"
	if pnl > 0 {
		outcome = "win"
	}
	r.trades.WithLabelValues(symbol, timeframe, outcome).Inc()
}

// ObserveEquity sets the equity gauge.
func (r *Recorder) ObserveEquity(symbol, timeframe string, equity float64) {
	r.equity.WithLabelValues(symbol, timeframe).Set(equity)
}
