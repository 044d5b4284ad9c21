package repository

import (
	"context"
	"errors"

	"PolyEdge/internal/domain/models"
)

// ErrStateNotFound is returned by StateStore.Load when no snapshot exists yet.
var ErrStateNotFound = errors.New("ledger state not found")

// MarketDataFeed supplies bars, trade prints and spot price for one instrument.
type MarketDataFeed interface {
	GetCandles(ctx context.Context, interval Interval, limit int) ([]models.Bar, error)
	GetRecentTrades(ctx context.Context, limit int) ([]models.TradePrint, error)
	GetCurrentPrice(ctx context.Context) (float64, error)
}

// ForecastFeed supplies hourly weather series for a coordinate.
type ForecastFeed interface {
	GetTemperatureSeries(ctx context.Context, lat, lon float64, hours int) ([]models.TemperaturePoint, error)
	GetPrecipitationSeries(ctx context.Context, lat, lon float64, hours int) ([]models.PrecipitationPoint, error)
	GetSnowfallSeries(ctx context.Context, lat, lon float64, hours int) ([]models.SnowfallPoint, error)
}

// MarketCatalog discovers candidate markets with their implied probability.
type MarketCatalog interface {
	FindPriceMarkets(ctx context.Context) ([]models.Market, error)
	FindWeatherMarkets(ctx context.Context) ([]models.Market, error)
}

// Executor submits orders to a venue. Paper and live implementations exist.
type Executor interface {
	PlaceOrder(ctx context.Context, order models.Order) (models.Fill, error)
	Mode() string
}

// StateStore persists the ledger snapshot and its append-only journal.
type StateStore interface {
	Load() (*models.LedgerState, error)
	Save(state *models.LedgerState) error
	AppendJournal(rec models.JournalRecord) error
}

// JournalSink receives every ledger mutation for downstream consumers.
type JournalSink interface {
	Publish(ctx context.Context, rec models.JournalRecord) error
	Name() string
}

// SignalArchive records evaluated signals.
type SignalArchive interface {
	StoreSignal(ctx context.Context, s models.Signal) error
}

// Metrics records engine telemetry.
type Metrics interface {
	RecordSignal(strategy, side string, edge float64)
	RecordDecision(strategy, outcome string)
	RecordStake(strategy string, stake float64)
	RecordPortfolio(bankroll, exposure float64, open int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
