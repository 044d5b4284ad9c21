package probability

import (
	"math/rand"
	"testing"
	"time"

	"PolyEdge/internal/domain/models"
	"PolyEdge/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWeatherModel() *WeatherModel {
	return NewWeatherModel(config.Default().WeatherModel)
}

func TestWeatherModel_TemperatureBands(t *testing.T) {
	m := newWeatherModel()
	// 80°F is 26.666..°C
	tests := []struct {
		name string
		dir  models.Direction
		s    TemperatureSummary
		want float64
	}{
		{"far above", models.DirectionAbove, TemperatureSummary{MaxC: 30}, 0.90},
		{"slightly above", models.DirectionAbove, TemperatureSummary{MaxC: 80.0/1.8 - 32.0/1.8 + 1}, 0.60},
		{"slightly short", models.DirectionHit, TemperatureSummary{MaxC: 80.0/1.8 - 32.0/1.8 - 1}, 0.40},
		{"far short", models.DirectionAbove, TemperatureSummary{MaxC: 10}, 0.10},
		{"below far", models.DirectionBelow, TemperatureSummary{MinC: 20}, 0.90},
		{"below not reached", models.DirectionBelow, TemperatureSummary{MinC: 35}, 0.10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := models.WeatherQuestion{Kind: models.KindTemperature, Direction: tt.dir, Threshold: 80, HasThreshold: true}
			assert.InDelta(t, tt.want, m.Temperature(q, tt.s), 1e-9)
		})
	}
}

func TestWeatherModel_PrecipitationBands(t *testing.T) {
	m := newWeatherModel()
	q := models.WeatherQuestion{Kind: models.KindPrecipitation, Direction: models.DirectionAbove, Threshold: 10, HasThreshold: true}

	assert.Equal(t, 0.85, m.Precipitation(q, PrecipitationSummary{TotalMM: 16}))
	assert.Equal(t, 0.65, m.Precipitation(q, PrecipitationSummary{TotalMM: 12}))
	assert.Equal(t, 0.35, m.Precipitation(q, PrecipitationSummary{TotalMM: 6}))
	assert.Equal(t, 0.15, m.Precipitation(q, PrecipitationSummary{TotalMM: 1}))

	q.Direction = models.DirectionBelow
	assert.InDelta(t, 0.15, m.Precipitation(q, PrecipitationSummary{TotalMM: 16}), 1e-12)
}

func TestWeatherModel_PrecipitationWithoutThreshold(t *testing.T) {
	m := newWeatherModel()
	q := models.WeatherQuestion{Kind: models.KindPrecipitation, Direction: models.DirectionHit}

	assert.InDelta(t, 0.71, m.Precipitation(q, PrecipitationSummary{MaxProb: 0.8, AvgProb: 0.5}), 1e-12)
	assert.Equal(t, 0.05, m.Precipitation(q, PrecipitationSummary{}))

	q.HasThreshold, q.Threshold = true, 0
	assert.Equal(t, 0.95, m.Precipitation(q, PrecipitationSummary{MaxProb: 1, AvgProb: 1}))
}

func TestWeatherModel_SnowBands(t *testing.T) {
	m := newWeatherModel()
	// 2 inches is 5.08 cm
	q := models.WeatherQuestion{Kind: models.KindSnow, Direction: models.DirectionAbove, Threshold: 2, HasThreshold: true}

	assert.Equal(t, 0.85, m.Snow(q, SnowSummary{TotalCM: 8}))
	assert.Equal(t, 0.60, m.Snow(q, SnowSummary{TotalCM: 6}))
	assert.Equal(t, 0.30, m.Snow(q, SnowSummary{TotalCM: 2}))
	assert.Equal(t, 0.10, m.Snow(q, SnowSummary{TotalCM: 1}))
}

func TestWeatherModel_SnowWithoutThreshold(t *testing.T) {
	m := newWeatherModel()
	q := models.WeatherQuestion{Kind: models.KindSnow, Direction: models.DirectionHit}

	assert.InDelta(t, 0.6, m.Snow(q, SnowSummary{TotalCM: 3}), 1e-12)
	assert.Equal(t, 0.10, m.Snow(q, SnowSummary{TotalCM: 0.4}))
	assert.Equal(t, 0.9, m.Snow(q, SnowSummary{TotalCM: 100}))
}

func TestWeatherModel_CustomBands(t *testing.T) {
	cfg := config.Default().WeatherModel
	cfg.Precipitation.Bands = []config.RatioBand{{Ratio: 0.5, Prob: 0.4}, {Ratio: 2, Prob: 0.9}}
	m := NewWeatherModel(cfg)
	q := models.WeatherQuestion{Kind: models.KindPrecipitation, Direction: models.DirectionAbove, Threshold: 10, HasThreshold: true}

	assert.Equal(t, 0.9, m.Precipitation(q, PrecipitationSummary{TotalMM: 25}))
	assert.Equal(t, 0.4, m.Precipitation(q, PrecipitationSummary{TotalMM: 10}))
}

func TestWeatherModel_AlwaysWithinBounds(t *testing.T) {
	m := newWeatherModel()
	r := rand.New(rand.NewSource(11))
	dirs := []models.Direction{models.DirectionAbove, models.DirectionBelow, models.DirectionHit}

	for i := 0; i < 3000; i++ {
		q := models.WeatherQuestion{
			Direction:    dirs[i%3],
			Threshold:    r.NormFloat64() * 100,
			HasThreshold: i%2 == 0,
		}
		ps := []float64{
			m.Temperature(q, TemperatureSummary{MaxC: r.NormFloat64() * 50, MinC: r.NormFloat64() * 50}),
			m.Precipitation(q, PrecipitationSummary{MaxProb: r.Float64() * 3, AvgProb: r.Float64(), TotalMM: r.Float64() * 100}),
			m.Snow(q, SnowSummary{TotalCM: r.Float64() * 100}),
		}
		for _, p := range ps {
			assert.GreaterOrEqual(t, p, 0.05)
			assert.LessOrEqual(t, p, 0.95)
		}
	}
}

func TestWindow(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]models.SnowfallPoint, 72)
	for i := range points {
		points[i] = models.SnowfallPoint{Time: start.Add(time.Duration(i) * time.Hour), CM: 1}
	}
	at := func(p models.SnowfallPoint) time.Time { return p.Time }

	assert.Len(t, Window(points, at, nil, 48), 48)
	assert.Len(t, Window(points[:10], at, nil, 48), 10)

	day := time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)
	got := Window(points, at, &day, 48)
	require.Len(t, got, 24)
	assert.Equal(t, start.Add(24*time.Hour), got[0].Time)

	missing := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	assert.Empty(t, Window(points, at, &missing, 48))
}

func TestSummaries(t *testing.T) {
	_, ok := SummarizeTemperature(nil)
	assert.False(t, ok)

	ts, ok := SummarizeTemperature([]models.TemperaturePoint{{Celsius: 10}, {Celsius: 20}, {Celsius: 15}})
	require.True(t, ok)
	assert.Equal(t, 20.0, ts.MaxC)
	assert.Equal(t, 10.0, ts.MinC)
	assert.InDelta(t, 15.0, ts.AvgC, 1e-12)

	ps, ok := SummarizePrecipitation([]models.PrecipitationPoint{{ProbabilityPct: 40, AmountMM: 1}, {ProbabilityPct: 80, AmountMM: 2.5}})
	require.True(t, ok)
	assert.InDelta(t, 0.8, ps.MaxProb, 1e-12)
	assert.InDelta(t, 0.6, ps.AvgProb, 1e-12)
	assert.InDelta(t, 3.5, ps.TotalMM, 1e-12)

	ss, ok := SummarizeSnowfall([]models.SnowfallPoint{{CM: 0.5}, {CM: 2}})
	require.True(t, ok)
	assert.InDelta(t, 2.5, ss.TotalCM, 1e-12)
	assert.Equal(t, 2.0, ss.MaxHourlyCM)
}
