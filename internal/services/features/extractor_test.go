package features

import (
	"math"
	"testing"
	"time"

	"PolyEdge/internal/domain/models"
	"PolyEdge/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func barsFromCloses(closes ...float64) []models.Bar {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Bar, len(closes))
	for i, c := range closes {
		out[i] = models.Bar{OpenTime: start.Add(time.Duration(i) * time.Minute), Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	return out
}

func TestRSIAllGainsIsMax(t *testing.T) {
	closes := []float64{100, 101, 101, 102, 103, 103, 104, 105, 106, 107, 108, 109, 110, 111, 112}
	assert.Equal(t, 100.0, RSI(closes, 14))
}

func TestRSIInsufficientHistoryIsNeutral(t *testing.T) {
	closes := []float64{100, 99, 98, 97, 96, 95, 94, 93, 92, 91, 90, 89, 88, 87}
	require.Len(t, closes, 14)
	assert.Equal(t, 50.0, RSI(closes, 14))
}

func TestRSIMixed(t *testing.T) {
	// two gains of 2 and two losses of 1 over period 4 -> rs = 2 -> 66.67
	closes := []float64{10, 12, 11, 13, 12}
	assert.InDelta(t, 100-100/3.0, RSI(closes, 4), 1e-9)
}

func TestRSIUsesOnlyLastPeriod(t *testing.T) {
	closes := []float64{100, 50, 51, 52}
	assert.Equal(t, 100.0, RSI(closes, 2))
}

func TestVWAPDeviation(t *testing.T) {
	bars := []models.Bar{
		{High: 11, Low: 9, Close: 10, Volume: 1},
		{High: 21, Low: 19, Close: 20, Volume: 3},
	}
	// vwap = (10*1 + 20*3) / 4 = 17.5
	assert.InDelta(t, (21-17.5)/17.5, VWAPDeviation(bars, 60, 21), 1e-12)
	// lookback 1 uses only the last bar
	assert.InDelta(t, 0.05, VWAPDeviation(bars, 1, 21), 1e-12)
}

func TestVWAPDeviationZeroVolume(t *testing.T) {
	bars := []models.Bar{{High: 11, Low: 9, Close: 10}}
	assert.Equal(t, 0.0, VWAPDeviation(bars, 60, 12))
	assert.Equal(t, 0.0, VWAPDeviation(nil, 60, 12))
}

func TestVolatilityFloorAndShrink(t *testing.T) {
	assert.Equal(t, 0.001, Volatility([]float64{100, 101}, 20))
	assert.Equal(t, 0.001, Volatility(nil, 20))

	// three closes -> lookback shrinks to 2 returns
	closes := []float64{100, 110, 99}
	r1, r2 := math.Log(1.1), math.Log(99.0/110.0)
	mean := (r1 + r2) / 2
	want := math.Sqrt(((r1-mean)*(r1-mean) + (r2-mean)*(r2-mean)) / 2)
	assert.InDelta(t, want, Volatility(closes, 20), 1e-12)
}

func TestVolatilityConstantSeriesIsZero(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	assert.Equal(t, 0.0, Volatility(closes, 20))
}

func TestMomentum(t *testing.T) {
	closes := []float64{100, 1, 1, 1, 1, 1, 1, 1, 1, 1, 110}
	assert.InDelta(t, 0.10, Momentum(closes, 10), 1e-12)
	assert.Equal(t, 0.0, Momentum(closes[:10], 10))
}

func TestOrderFlow(t *testing.T) {
	trades := []models.TradePrint{
		{Quantity: 3, BuyerIsMaker: false},
		{Quantity: 1, BuyerIsMaker: true},
	}
	assert.InDelta(t, 0.5, OrderFlow(trades), 1e-12)
	assert.Equal(t, 0.0, OrderFlow(nil))
	assert.Equal(t, -1.0, OrderFlow([]models.TradePrint{{Quantity: 2, BuyerIsMaker: true}}))
}

func TestEngineExtract(t *testing.T) {
	cfg := config.Default().Indicators
	e := NewEngine(cfg)
	closes := make([]float64, 0, 40)
	for i := 0; i < 40; i++ {
		closes = append(closes, 100+float64(i))
	}
	fv := e.Extract(barsFromCloses(closes...), []models.TradePrint{{Quantity: 1}}, 139)

	assert.Equal(t, 100.0, fv.RSI)
	assert.Greater(t, fv.Volatility, 0.0)
	assert.InDelta(t, (139.0-129.0)/129.0, fv.Momentum, 1e-12)
	assert.Equal(t, 1.0, fv.OrderFlow)
	assert.Less(t, fv.VWAPDeviation, 0.5)
}

func TestComputeLogReturns(t *testing.T) {
	assert.Nil(t, ComputeLogReturns([]float64{1}))
	got := ComputeLogReturns([]float64{1, math.E, 0})
	require.Len(t, got, 2)
	assert.InDelta(t, 1.0, got[0], 1e-12)
	assert.Equal(t, 0.0, got[1])
}
