package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PolyEdge/internal/domain/models"
	domrepo "PolyEdge/internal/domain/repository"
	domsvc "PolyEdge/internal/domain/service"
	"PolyEdge/internal/services/edge"
	"PolyEdge/internal/services/features"
	"PolyEdge/internal/services/parser"
	"PolyEdge/internal/services/probability"
	"PolyEdge/pkg/config"
	applogger "PolyEdge/pkg/logger"
)

// Evaluator turns candidate markets of one strategy into signals.
// Evaluate returns an error wrapping parser.ErrUnparseable or models.ErrDataUnavailable
// when a market is skipped for lack of a question or data.
type Evaluator interface {
	Strategy() string
	Markets(ctx context.Context) ([]models.Market, error)
	Evaluate(ctx context.Context, m models.Market) (models.Signal, error)
}

// PriceEvaluator scores short-horizon bitcoin markets.
type PriceEvaluator struct {
	catalog  domrepo.MarketCatalog
	feed     domrepo.MarketDataFeed
	parser   domsvc.QuestionParser
	engine   *features.Engine
	model    *probability.PriceModel
	selector *edge.Selector
	cfg      config.PriceModelConfig
	l        *applogger.Logger
}

var _ Evaluator = (*PriceEvaluator)(nil)

func NewPriceEvaluator(
	catalog domrepo.MarketCatalog,
	feed domrepo.MarketDataFeed,
	qp domsvc.QuestionParser,
	engine *features.Engine,
	model *probability.PriceModel,
	selector *edge.Selector,
	cfg config.PriceModelConfig,
) *PriceEvaluator {
	return &PriceEvaluator{
		catalog:  catalog,
		feed:     feed,
		parser:   qp,
		engine:   engine,
		model:    model,
		selector: selector,
		cfg:      cfg,
		l:        applogger.NewNop(),
	}
}

// SetLogger injects a structured logger.
func (e *PriceEvaluator) SetLogger(l *applogger.Logger) { e.l = l }

func (e *PriceEvaluator) Strategy() string { return models.StrategyPrice }

func (e *PriceEvaluator) Markets(ctx context.Context) ([]models.Market, error) {
	return e.catalog.FindPriceMarkets(ctx)
}

func (e *PriceEvaluator) Evaluate(ctx context.Context, m models.Market) (models.Signal, error) {
	q, err := e.parser.ParsePrice(m.Question)
	if err != nil {
		return models.Signal{}, err
	}

	current, err := e.feed.GetCurrentPrice(ctx)
	if err != nil {
		return models.Signal{}, dataErr("current price", err)
	}
	if current <= 0 {
		return models.Signal{}, fmt.Errorf("%w: non-positive price %.2f", models.ErrDataUnavailable, current)
	}

	bars, err := e.feed.GetCandles(ctx, domrepo.NormalizeInterval(e.cfg.CandleInterval), e.cfg.CandleLimit)
	if err != nil {
		return models.Signal{}, dataErr("candles", err)
	}
	if len(bars) < e.cfg.MinBars {
		return models.Signal{}, fmt.Errorf("%w: %d bars, need %d", models.ErrDataUnavailable, len(bars), e.cfg.MinBars)
	}

	var trades []models.TradePrint
	if e.cfg.TradesLimit > 0 {
		trades, err = e.feed.GetRecentTrades(ctx, e.cfg.TradesLimit)
		if err != nil {
			// order flow degrades to neutral
			e.l.Debug("recent trades unavailable", applogger.Error(err))
			trades = nil
		}
	}

	in := probability.PriceInput{
		Current:   current,
		Target:    q.Target,
		Direction: q.Direction,
		Features:  e.engine.Extract(bars, trades, current),
	}
	b := e.model.Breakdown(in)
	return e.selector.Signal(m, e.Strategy(), b.Probability, b.Rationale(in)), nil
}

// WeatherEvaluator scores temperature, precipitation and snow threshold markets.
type WeatherEvaluator struct {
	catalog  domrepo.MarketCatalog
	feed     domrepo.ForecastFeed
	parser   domsvc.QuestionParser
	model    *probability.WeatherModel
	selector *edge.Selector
	cfg      config.WeatherModelConfig
	l        *applogger.Logger
}

var _ Evaluator = (*WeatherEvaluator)(nil)

func NewWeatherEvaluator(
	catalog domrepo.MarketCatalog,
	feed domrepo.ForecastFeed,
	qp domsvc.QuestionParser,
	model *probability.WeatherModel,
	selector *edge.Selector,
	cfg config.WeatherModelConfig,
) *WeatherEvaluator {
	return &WeatherEvaluator{
		catalog:  catalog,
		feed:     feed,
		parser:   qp,
		model:    model,
		selector: selector,
		cfg:      cfg,
		l:        applogger.NewNop(),
	}
}

// SetLogger injects a structured logger.
func (e *WeatherEvaluator) SetLogger(l *applogger.Logger) { e.l = l }

func (e *WeatherEvaluator) Strategy() string { return models.StrategyWeather }

func (e *WeatherEvaluator) Markets(ctx context.Context) ([]models.Market, error) {
	return e.catalog.FindWeatherMarkets(ctx)
}

func (e *WeatherEvaluator) Evaluate(ctx context.Context, m models.Market) (models.Signal, error) {
	q, err := e.parser.ParseWeather(m.Question, m.Description)
	if err != nil {
		return models.Signal{}, err
	}

	var (
		prob      float64
		rationale string
	)
	switch q.Kind {
	case models.KindTemperature:
		prob, rationale, err = e.temperature(ctx, q)
	case models.KindPrecipitation:
		prob, rationale, err = e.precipitation(ctx, q)
	case models.KindSnow:
		prob, rationale, err = e.snow(ctx, q)
	default:
		err = fmt.Errorf("%w: unsupported weather kind %q", parser.ErrUnparseable, q.Kind)
	}
	if err != nil {
		return models.Signal{}, err
	}
	return e.selector.Signal(m, e.Strategy(), prob, rationale), nil
}

func (e *WeatherEvaluator) temperature(ctx context.Context, q models.WeatherQuestion) (float64, string, error) {
	series, err := e.feed.GetTemperatureSeries(ctx, q.Location.Lat, q.Location.Lon, e.cfg.ForecastHours)
	if err != nil {
		return 0, "", dataErr("temperature forecast", err)
	}
	window := probability.Window(series, func(p models.TemperaturePoint) time.Time { return p.Time }, q.TargetDate, e.cfg.DefaultWindowHours)
	s, ok := probability.SummarizeTemperature(window)
	if !ok {
		return 0, "", fmt.Errorf("%w: no temperature forecast in window", models.ErrDataUnavailable)
	}
	p := e.model.Temperature(q, s)
	target := probability.FahrenheitToCelsius(q.Threshold)
	return p, fmt.Sprintf("temperature %s %s %.0f°F (%.1f°C): forecast max=%.1f°C (%.0f°F) min=%.1f°C (%.0f°F) prob=%.3f",
		q.Location.Name, q.Direction, q.Threshold, target,
		s.MaxC, probability.CelsiusToFahrenheit(s.MaxC), s.MinC, probability.CelsiusToFahrenheit(s.MinC), p), nil
}

func (e *WeatherEvaluator) precipitation(ctx context.Context, q models.WeatherQuestion) (float64, string, error) {
	series, err := e.feed.GetPrecipitationSeries(ctx, q.Location.Lat, q.Location.Lon, e.cfg.ForecastHours)
	if err != nil {
		return 0, "", dataErr("precipitation forecast", err)
	}
	window := probability.Window(series, func(p models.PrecipitationPoint) time.Time { return p.Time }, q.TargetDate, e.cfg.DefaultWindowHours)
	s, ok := probability.SummarizePrecipitation(window)
	if !ok {
		return 0, "", fmt.Errorf("%w: no precipitation forecast in window", models.ErrDataUnavailable)
	}
	p := e.model.Precipitation(q, s)
	threshold := "any"
	if q.HasThreshold {
		threshold = fmt.Sprintf("%.1fmm", q.Threshold)
	}
	return p, fmt.Sprintf("precipitation %s %s %s: max prob=%.0f%% avg prob=%.0f%% total=%.1fmm prob=%.3f",
		q.Location.Name, q.Direction, threshold, s.MaxProb*100, s.AvgProb*100, s.TotalMM, p), nil
}

func (e *WeatherEvaluator) snow(ctx context.Context, q models.WeatherQuestion) (float64, string, error) {
	series, err := e.feed.GetSnowfallSeries(ctx, q.Location.Lat, q.Location.Lon, e.cfg.ForecastHours)
	if err != nil {
		return 0, "", dataErr("snowfall forecast", err)
	}
	window := probability.Window(series, func(p models.SnowfallPoint) time.Time { return p.Time }, q.TargetDate, e.cfg.DefaultWindowHours)
	s, ok := probability.SummarizeSnowfall(window)
	if !ok {
		return 0, "", fmt.Errorf("%w: no snowfall forecast in window", models.ErrDataUnavailable)
	}
	p := e.model.Snow(q, s)
	threshold := "any"
	if q.HasThreshold {
		threshold = fmt.Sprintf("%.1fin (%.1fcm)", q.Threshold, probability.InchesToCentimeters(q.Threshold))
	}
	return p, fmt.Sprintf("snow %s %s %s: total=%.1fcm peak=%.1fcm/h prob=%.3f",
		q.Location.Name, q.Direction, threshold, s.TotalCM, s.MaxHourlyCM, p), nil
}

// dataErr marks a feed failure as data-unavailable while keeping the cause.
func dataErr(what string, err error) error {
	if errors.Is(err, models.ErrDataUnavailable) {
		return fmt.Errorf("%s: %w", what, err)
	}
	return fmt.Errorf("%w: %s: %w", models.ErrDataUnavailable, what, err)
}
