package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signalsTotal   *prometheus.CounterVec
	signalEdge     *prometheus.HistogramVec
	decisionsTotal *prometheus.CounterVec
	stakeUSD       *prometheus.HistogramVec
	bankroll       prometheus.Gauge
	exposure       prometheus.Gauge
	openPositions  prometheus.Gauge
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New creates a Prometheus recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder registered on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		signalsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyedge_signals_total",
				Help: "Signals produced by strategy and side",
			},
			[]string{"strategy", "side"},
		),
		signalEdge: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "polyedge_signal_edge",
				Help:    "Side-normalised edge of produced signals",
				Buckets: []float64{-0.2, -0.1, -0.05, 0, 0.02, 0.03, 0.05, 0.1, 0.2, 0.4},
			},
			[]string{"strategy"},
		),
		decisionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyedge_decisions_total",
				Help: "Sizing and execution outcomes",
			},
			[]string{"strategy", "outcome"},
		),
		stakeUSD: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "polyedge_stake_usd",
				Help:    "Stake of opened positions in USD",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{"strategy"},
		),
		bankroll: f.NewGauge(prometheus.GaugeOpts{
			Name: "polyedge_bankroll_usd",
			Help: "Current ledger bankroll",
		}),
		exposure: f.NewGauge(prometheus.GaugeOpts{
			Name: "polyedge_open_exposure_usd",
			Help: "Sum of open position stakes",
		}),
		openPositions: f.NewGauge(prometheus.GaugeOpts{
			Name: "polyedge_open_positions",
			Help: "Number of open positions",
		}),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyedge_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "polyedge_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordSignal records a produced signal.
func (r *Recorder) RecordSignal(strategy, side string, edge float64) {
	r.signalsTotal.WithLabelValues(strategy, side).Inc()
	r.signalEdge.WithLabelValues(strategy).Observe(edge)
}

// RecordDecision records a sizing or execution outcome.
func (r *Recorder) RecordDecision(strategy, outcome string) {
	r.decisionsTotal.WithLabelValues(strategy, outcome).Inc()
}

// RecordStake records the stake of an opened position.
func (r *Recorder) RecordStake(strategy string, stake float64) {
	r.stakeUSD.WithLabelValues(strategy).Observe(stake)
}

// RecordPortfolio sets the ledger gauges.
func (r *Recorder) RecordPortfolio(bankroll, exposure float64, open int) {
	r.bankroll.Set(bankroll)
	r.exposure.Set(exposure)
	r.openPositions.Set(float64(open))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordSignal(string, string, float64) {}
func (Nop) RecordDecision(string, string) {}
func (Nop) RecordStake(string, float64) {}
func (Nop) RecordPortfolio(float64, float64, int) {}
func (Nop) RecordError(string) {}
func (Nop) RecordLatency(string, float64) {}
