package features

import (
	"math"

	"PolyEdge/internal/domain/models"
	"PolyEdge/pkg/config"

	"gonum.org/v1/gonum/stat"
)

const (
	neutralRSI = 50.0
	maxRSI     = 100.0
	// volatilityFloor is returned when fewer than two returns are usable.
	volatilityFloor = 0.001
)

// Engine turns bars and trade prints into a FeatureVector.
type Engine struct {
	cfg config.IndicatorConfig
}

// NewEngine creates an indicator engine with the given lookbacks.
func NewEngine(cfg config.IndicatorConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Extract computes the full feature vector. currentPrice is the spot price the
// VWAP deviation is measured from.
func (e *Engine) Extract(bars []models.Bar, trades []models.TradePrint, currentPrice float64) models.FeatureVector {
	closes := models.Closes(bars)
	return models.FeatureVector{
		RSI:           RSI(closes, e.cfg.RSIPeriod),
		VWAPDeviation: VWAPDeviation(bars, e.cfg.VWAPLookback, currentPrice),
		Volatility:    Volatility(closes, e.cfg.VolatilityLookback),
		Momentum:      Momentum(closes, e.cfg.MomentumLookback),
		OrderFlow:     OrderFlow(trades),
	}
}

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(closes)-1, or nil if insufficient data.
func ComputeLogReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		cur := closes[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RSI is the momentum oscillator over the last period deltas, using simple means.
func RSI(closes []float64, period int) float64 {
	if period < 1 || len(closes) < period+1 {
		return neutralRSI
	}
	var gain, loss float64
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if loss == 0 {
		return maxRSI
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	rs := avgGain / avgLoss
	return maxRSI - maxRSI/(1+rs)
}

// VWAPDeviation is (current - vwap) / vwap over the last lookback bars.
func VWAPDeviation(bars []models.Bar, lookback int, currentPrice float64) float64 {
	n := lookback
	if n > len(bars) {
		n = len(bars)
	}
	if n <= 0 {
		return 0
	}
	var pv, vol float64
	for _, b := range bars[len(bars)-n:] {
		pv += b.TypicalPrice() * b.Volume
		vol += b.Volume
	}
	if vol == 0 {
		return 0
	}
	vwap := pv / vol
	if vwap <= 0 {
		return 0
	}
	return (currentPrice - vwap) / vwap
}

// Volatility is the population standard deviation of log returns over lookback.
func Volatility(closes []float64, lookback int) float64 {
	if len(closes) < lookback+1 {
		lookback = len(closes) - 1
	}
	if lookback < 2 {
		return volatilityFloor
	}
	returns := ComputeLogReturns(closes[len(closes)-lookback-1:])
	return stat.PopStdDev(returns, nil)
}

// Momentum is the rate of change against the close lookback bars ago.
func Momentum(closes []float64, lookback int) float64 {
	if lookback < 1 || len(closes) < lookback+1 {
		return 0
	}
	base := closes[len(closes)-lookback-1]
	if base == 0 {
		return 0
	}
	return (closes[len(closes)-1] - base) / base
}

// OrderFlow is (buy - sell) / total volume, in [-1, 1].
func OrderFlow(trades []models.TradePrint) float64 {
	var buy, sell float64
	for _, t := range trades {
		if t.BuyerIsMaker {
			sell += t.Quantity
		} else {
			buy += t.Quantity
		}
	}
	total := buy + sell
	if total == 0 {
		return 0
	}
	return (buy - sell) / total
}
