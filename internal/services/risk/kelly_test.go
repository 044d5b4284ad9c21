package risk

import (
	"testing"

	"PolyEdge/internal/domain/models"
	"PolyEdge/pkg/config"

	"github.com/stretchr/testify/assert"
)

func TestKellySize_HalfKelly(t *testing.T) {
	assert.Equal(t, 0.1, KellySize(0.6, 0.5, 0.5))
	assert.Equal(t, 0.15, KellySize(0.65, 0.5, 0.5))
}

func TestKellySize_ZeroCases(t *testing.T) {
	tests := []struct {
		name   string
		our    float64
		market float64
	}{
		{"our zero", 0, 0.5},
		{"our one", 1, 0.5},
		{"our negative", -0.2, 0.5},
		{"market zero", 0.6, 0},
		{"market one", 0.6, 1},
		{"market above one", 0.6, 1.2},
		{"no edge", 0.5, 0.5},
		{"negative edge", 0.4, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, 0.0, KellySize(tt.our, tt.market, 0.5))
		})
	}
}

func defaultSizer() *Sizer {
	return NewSizer(config.Default().Risk)
}

func TestCalculateBetSize_EndToEndScenario(t *testing.T) {
	d := defaultSizer().CalculateBetSize(0.65, 0.50, models.Portfolio{Bankroll: 1000})
	assert.True(t, d.Approved())
	assert.Equal(t, 50.0, d.Stake)
	assert.Equal(t, 0.15, d.KellyFraction)
	assert.Empty(t, d.Reason)
}

func TestCalculateBetSize_Rejections(t *testing.T) {
	s := defaultSizer()

	tests := []struct {
		name   string
		our    float64
		market float64
		pf     models.Portfolio
		reason string
	}{
		{"edge below threshold", 0.52, 0.50, models.Portfolio{Bankroll: 1000}, "edge 0.020 below threshold 0.030"},
		{"below minimum", 0.65, 0.50, models.Portfolio{Bankroll: 10}, "stake $0.50 below minimum $1.00"},
		{"too many positions", 0.65, 0.50, models.Portfolio{Bankroll: 1000, OpenCount: 10}, "max open positions (10) reached"},
		{"exposure exhausted", 0.65, 0.50, models.Portfolio{Bankroll: 1000, OpenCount: 3, OpenExposure: 499.5}, "total exposure would exceed 50% of bankroll"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := s.CalculateBetSize(tt.our, tt.market, tt.pf)
			assert.False(t, d.Approved())
			assert.Zero(t, d.Stake)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}

func TestCalculateBetSize_TrimsToExposureHeadroom(t *testing.T) {
	d := defaultSizer().CalculateBetSize(0.65, 0.50, models.Portfolio{Bankroll: 1000, OpenCount: 4, OpenExposure: 480})
	assert.True(t, d.Approved())
	assert.Equal(t, 20.0, d.Stake)
}

func TestCalculateBetSize_SmallKellyBelowCap(t *testing.T) {
	// half Kelly of 0.54 vs 0.50 is 0.04, under the 5% cap
	d := defaultSizer().CalculateBetSize(0.54, 0.50, models.Portfolio{Bankroll: 1000})
	assert.True(t, d.Approved())
	assert.Equal(t, 40.0, d.Stake)
}

func TestCalculateBetSize_NeverExceedsCaps(t *testing.T) {
	s := defaultSizer()
	cfg := config.Default().Risk

	for _, bankroll := range []float64{3, 57.31, 999.99, 1000, 12345.67} {
		for our := 0.05; our < 0.99; our += 0.03 {
			for market := 0.05; market < 0.95; market += 0.05 {
				for _, exposure := range []float64{0, bankroll * 0.1, bankroll * 0.45, bankroll * 0.499} {
					d := s.CalculateBetSize(our, market, models.Portfolio{Bankroll: bankroll, OpenExposure: exposure})
					if !d.Approved() {
						assert.Zero(t, d.Stake)
						continue
					}
					assert.LessOrEqual(t, d.Stake, bankroll*cfg.MaxSingleBetPct+1e-9)
					assert.LessOrEqual(t, exposure+d.Stake, bankroll*cfg.MaxExposurePct+1e-9)
					assert.GreaterOrEqual(t, d.Stake, cfg.MinBetUSD)
				}
			}
		}
	}
}
