package probability

import (
	"fmt"
	"math"

	"PolyEdge/internal/domain/models"
	"PolyEdge/pkg/config"

	"gonum.org/v1/gonum/stat/distuv"
)

// PriceInput is the state the price-crossing model reads.
type PriceInput struct {
	Current   float64
	Target    float64
	Direction models.Direction
	Features  models.FeatureVector
}

// PriceBreakdown exposes the base probability and each adjustment.
type PriceBreakdown struct {
	ExpectedMove float64
	Z            float64
	Base         float64
	RSIAdj       float64
	VWAPAdj      float64
	MomentumAdj  float64
	FlowAdj      float64
	Probability  float64
}

// PriceModel estimates the probability a price finishes beyond a target over the horizon.
// Volatility is per bar of cfg.CandleInterval, so it is scaled by the horizon in bars.
type PriceModel struct {
	cfg         config.PriceModelConfig
	horizonBars float64
}

// NewPriceModel creates a price-crossing model.
func NewPriceModel(cfg config.PriceModelConfig) *PriceModel {
	return &PriceModel{cfg: cfg, horizonBars: cfg.HorizonBars()}
}

// Estimate returns the clamped probability for in.
func (m *PriceModel) Estimate(in PriceInput) float64 {
	return m.Breakdown(in).Probability
}

// Breakdown computes the estimate and keeps every contributing term.
func (m *PriceModel) Breakdown(in PriceInput) PriceBreakdown {
	var b PriceBreakdown
	sign := 1.0
	if in.Direction == models.DirectionBelow {
		sign = -1.0
	}

	b.ExpectedMove = in.Features.Volatility * math.Sqrt(m.horizonBars)
	if !(b.ExpectedMove >= m.cfg.MinExpectedMove) {
		b.ExpectedMove = m.cfg.MinExpectedMove
	}

	distance := 0.0
	if in.Current != 0 {
		distance = (in.Target - in.Current) / in.Current
	}
	b.Z = sign * distance / b.ExpectedMove
	b.Base = distuv.UnitNormal.Survival(b.Z)

	rsi := in.Features.RSI
	switch {
	case rsi < m.cfg.RSIOversold:
		// oversold favours a move up
		b.RSIAdj = sign * m.cfg.RSIWeight * (m.cfg.RSIOversold - rsi) / m.cfg.RSIOversold
	case rsi > m.cfg.RSIOverbought:
		b.RSIAdj = -sign * m.cfg.RSIWeight * (rsi - m.cfg.RSIOverbought) / (100 - m.cfg.RSIOverbought)
	}

	if math.Abs(in.Features.VWAPDeviation) > m.cfg.VWAPDeadband {
		b.VWAPAdj = -sign * in.Features.VWAPDeviation * m.cfg.VWAPWeight
	}
	b.MomentumAdj = sign * in.Features.Momentum * m.cfg.MomentumWeight
	b.FlowAdj = sign * in.Features.OrderFlow * m.cfg.OrderFlowWeight

	raw := b.Base + b.RSIAdj + b.VWAPAdj + b.MomentumAdj + b.FlowAdj
	b.Probability = Clamp(raw, m.cfg.ProbFloor, m.cfg.ProbCap)
	return b
}

// Rationale summarises the inputs and the estimate in one line.
func (b PriceBreakdown) Rationale(in PriceInput) string {
	return fmt.Sprintf("price %.2f vs target %.2f (%s): RSI=%.1f VWAPdev=%+.4f vol=%.4f mom=%+.4f flow=%+.3f base=%.3f prob=%.3f",
		in.Current, in.Target, in.Direction, in.Features.RSI, in.Features.VWAPDeviation,
		in.Features.Volatility, in.Features.Momentum, in.Features.OrderFlow, b.Base, b.Probability)
}
