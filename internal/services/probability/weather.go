package probability

import (
	"math"
	"sort"
	"time"

	"PolyEdge/internal/domain/models"
	"PolyEdge/pkg/config"

	"gonum.org/v1/gonum/stat"
)

// TemperatureSummary holds the extremes of a forecast window in °C.
type TemperatureSummary struct {
	MaxC float64
	MinC float64
	AvgC float64
}

// PrecipitationSummary aggregates a precipitation window.
type PrecipitationSummary struct {
	MaxProb float64 // 0..1
	AvgProb float64 // 0..1
	TotalMM float64
}

// SnowSummary aggregates a snowfall window.
type SnowSummary struct {
	TotalCM     float64
	MaxHourlyCM float64
}

// Window selects the forecast points relevant to a question: those on the
// target UTC date when one is given, otherwise the first hours points.
func Window[T any](points []T, at func(T) time.Time, target *time.Time, hours int) []T {
	if target == nil {
		if hours < len(points) {
			return points[:hours]
		}
		return points
	}
	day := target.UTC().Format(time.DateOnly)
	out := make([]T, 0, 24)
	for _, p := range points {
		if at(p).UTC().Format(time.DateOnly) == day {
			out = append(out, p)
		}
	}
	return out
}

// SummarizeTemperature reduces points to extremes. ok is false for an empty window.
func SummarizeTemperature(points []models.TemperaturePoint) (s TemperatureSummary, ok bool) {
	if len(points) == 0 {
		return s, false
	}
	vals := make([]float64, len(points))
	s.MaxC, s.MinC = math.Inf(-1), math.Inf(1)
	for i, p := range points {
		vals[i] = p.Celsius
		s.MaxC = math.Max(s.MaxC, p.Celsius)
		s.MinC = math.Min(s.MinC, p.Celsius)
	}
	s.AvgC = stat.Mean(vals, nil)
	return s, true
}

// SummarizePrecipitation reduces points to max/avg probability and total amount.
func SummarizePrecipitation(points []models.PrecipitationPoint) (s PrecipitationSummary, ok bool) {
	if len(points) == 0 {
		return s, false
	}
	probs := make([]float64, len(points))
	for i, p := range points {
		probs[i] = p.ProbabilityPct / 100
		s.MaxProb = math.Max(s.MaxProb, probs[i])
		s.TotalMM += p.AmountMM
	}
	s.AvgProb = stat.Mean(probs, nil)
	return s, true
}

// SummarizeSnowfall reduces points to total and peak hourly snowfall.
func SummarizeSnowfall(points []models.SnowfallPoint) (s SnowSummary, ok bool) {
	if len(points) == 0 {
		return s, false
	}
	for _, p := range points {
		s.TotalCM += p.CM
		s.MaxHourlyCM = math.Max(s.MaxHourlyCM, p.CM)
	}
	return s, true
}

// WeatherModel maps forecast summaries onto threshold probabilities.
type WeatherModel struct {
	cfg        config.WeatherModelConfig
	precipBand []config.RatioBand
	snowBand   []config.RatioBand
}

// NewWeatherModel creates a weather model. Bands are evaluated from the widest ratio down.
func NewWeatherModel(cfg config.WeatherModelConfig) *WeatherModel {
	return &WeatherModel{
		cfg:        cfg,
		precipBand: sortedBands(cfg.Precipitation.Bands),
		snowBand:   sortedBands(cfg.Snow.Bands),
	}
}

func sortedBands(in []config.RatioBand) []config.RatioBand {
	out := append([]config.RatioBand(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Ratio > out[j].Ratio })
	return out
}

// Temperature estimates P(temperature crosses q.Threshold °F) over the window.
// above and hit read the window maximum, below reads the minimum.
func (m *WeatherModel) Temperature(q models.WeatherQuestion, s TemperatureSummary) float64 {
	target := FahrenheitToCelsius(q.Threshold)
	beyond := s.MaxC - target
	if q.Direction == models.DirectionBelow {
		beyond = target - s.MinC
	}
	return m.clamp(m.temperatureBand(beyond))
}

func (m *WeatherModel) temperatureBand(beyond float64) float64 {
	b := m.cfg.Temperature
	switch {
	case beyond > b.WideMarginC:
		return b.FarBeyond
	case beyond > 0:
		return 0.5 + math.Min(beyond/b.MarginScale*b.Slope, b.MaxShift)
	case beyond > -b.WideMarginC:
		return 0.5 - math.Min(-beyond/b.MarginScale*b.Slope, b.MaxShift)
	default:
		return b.FarShort
	}
}

// Precipitation estimates P(total precipitation exceeds q.Threshold mm), or
// P(any rain) from the forecast probabilities when no threshold was given.
func (m *WeatherModel) Precipitation(q models.WeatherQuestion, s PrecipitationSummary) float64 {
	c := m.cfg.Precipitation
	if !q.HasThreshold || q.Threshold <= 0 {
		return m.clamp(s.MaxProb*c.MaxProbWt + s.AvgProb*c.AvgProbWt)
	}
	p := ratioBand(s.TotalMM, q.Threshold, m.precipBand, c.Floor)
	return m.clamp(orient(q.Direction, p))
}

// Snow estimates P(total snowfall exceeds q.Threshold inches), or P(meaningful
// snow) scaled from the forecast total when no threshold was given.
func (m *WeatherModel) Snow(q models.WeatherQuestion, s SnowSummary) float64 {
	c := m.cfg.Snow
	if !q.HasThreshold || q.Threshold <= 0 {
		if s.TotalCM > c.MinTotalCM {
			return m.clamp(math.Min(c.NoThresholdCap, s.TotalCM/c.CMPerProbUnit))
		}
		return m.clamp(c.Floor)
	}
	p := ratioBand(s.TotalCM, InchesToCentimeters(q.Threshold), m.snowBand, c.Floor)
	return m.clamp(orient(q.Direction, p))
}

func ratioBand(total, threshold float64, bands []config.RatioBand, floor float64) float64 {
	for _, b := range bands {
		if total > threshold*b.Ratio {
			return b.Prob
		}
	}
	return floor
}

// orient turns an exceedance probability into the probability of the asked direction.
func orient(dir models.Direction, p float64) float64 {
	if dir == models.DirectionBelow {
		return 1 - p
	}
	return p
}

func (m *WeatherModel) clamp(p float64) float64 {
	return Clamp(p, m.cfg.ProbFloor, m.cfg.ProbCap)
}
