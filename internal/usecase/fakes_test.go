package usecase

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"PolyEdge/internal/domain/models"
	domrepo "PolyEdge/internal/domain/repository"
	"PolyEdge/internal/repository"
	"PolyEdge/internal/services/ledger"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 1, 4, 12, 0, 0, 0, time.UTC)

type fakeCatalog struct {
	price   []models.Market
	weather []models.Market
	err     error
}

func (f *fakeCatalog) FindPriceMarkets(context.Context) ([]models.Market, error) {
	return f.price, f.err
}

func (f *fakeCatalog) FindWeatherMarkets(context.Context) ([]models.Market, error) {
	return f.weather, f.err
}

type fakeFeed struct {
	price     float64
	bars      []models.Bar
	trades    []models.TradePrint
	priceErr  error
	tradesErr error
}

func (f *fakeFeed) GetCandles(_ context.Context, _ domrepo.Interval, limit int) ([]models.Bar, error) {
	if limit < len(f.bars) {
		return f.bars[len(f.bars)-limit:], nil
	}
	return f.bars, nil
}

func (f *fakeFeed) GetRecentTrades(context.Context, int) ([]models.TradePrint, error) {
	return f.trades, f.tradesErr
}

func (f *fakeFeed) GetCurrentPrice(context.Context) (float64, error) {
	return f.price, f.priceErr
}

func flatBars(n int, price float64) []models.Bar {
	bars := make([]models.Bar, n)
	for i := range bars {
		bars[i] = models.Bar{
			OpenTime: testNow.Add(time.Duration(i-n) * time.Minute),
			Open:     price, High: price, Low: price, Close: price, Volume: 1,
		}
	}
	return bars
}

type fakeForecast struct {
	temps  []models.TemperaturePoint
	precip []models.PrecipitationPoint
	snow   []models.SnowfallPoint
	err    error
}

func (f *fakeForecast) GetTemperatureSeries(context.Context, float64, float64, int) ([]models.TemperaturePoint, error) {
	return f.temps, f.err
}

func (f *fakeForecast) GetPrecipitationSeries(context.Context, float64, float64, int) ([]models.PrecipitationPoint, error) {
	return f.precip, f.err
}

func (f *fakeForecast) GetSnowfallSeries(context.Context, float64, float64, int) ([]models.SnowfallPoint, error) {
	return f.snow, f.err
}

type fakeExecutor struct {
	orders []models.Order
	err    error
}

func (f *fakeExecutor) PlaceOrder(_ context.Context, o models.Order) (models.Fill, error) {
	f.orders = append(f.orders, o)
	if f.err != nil {
		return models.Fill{}, f.err
	}
	return models.Fill{OrderID: "ord-1", Price: o.LimitPrice, Notional: o.Notional, FilledAt: testNow}, nil
}

func (f *fakeExecutor) Mode() string { return "fake" }

type fakeArchive struct {
	signals []models.Signal
}

func (f *fakeArchive) StoreSignal(_ context.Context, s models.Signal) error {
	f.signals = append(f.signals, s)
	return nil
}

func newLedger(t *testing.T, bankroll float64) *ledger.Ledger {
	t.Helper()
	dir := t.TempDir()
	store, err := repository.NewFileStateStore(filepath.Join(dir, "state.json"), filepath.Join(dir, "trades.jsonl"))
	require.NoError(t, err)
	l, err := ledger.New(store, bankroll, ledger.WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return l
}
