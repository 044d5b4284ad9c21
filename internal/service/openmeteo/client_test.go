package openmeteo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"PolyEdge/internal/domain/models"
	"PolyEdge/pkg/cache"
	"PolyEdge/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const forecastBody = `{
	"latitude": 40.71, "longitude": -74.01,
	"hourly": {
		"time": ["2026-01-10T00:00","2026-01-10T01:00","2026-01-10T02:00"],
		"temperature_2m": [1.5, null, -2.0],
		"precipitation_probability": [10, 40, null],
		"precipitation": [0.0, 1.2, null],
		"snowfall": [0.0, 0.7, 1.4]
	}
}`

func newServer(t *testing.T, body string, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/forecast", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "40.71", q.Get("latitude"))
		assert.Equal(t, "-74.01", q.Get("longitude"))
		assert.Equal(t, "UTC", q.Get("timezone"))
		assert.Equal(t, hourlyVariables, q.Get("hourly"))
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(url string) config.OpenMeteoConfig {
	cfg := config.Default().Feeds.OpenMeteo
	cfg.BaseURL = url
	cfg.Timeout = 2 * time.Second
	return cfg
}

func TestClient_Series(t *testing.T) {
	var calls int32
	srv := newServer(t, forecastBody, &calls)
	c := NewClient(testConfig(srv.URL), cache.NewMemoryCache())
	ctx := context.Background()

	temps, err := c.GetTemperatureSeries(ctx, 40.71, -74.01, 72)
	require.NoError(t, err)
	require.Len(t, temps, 2)
	assert.Equal(t, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), temps[0].Time)
	assert.Equal(t, 1.5, temps[0].Celsius)
	assert.Equal(t, -2.0, temps[1].Celsius)

	precip, err := c.GetPrecipitationSeries(ctx, 40.71, -74.01, 72)
	require.NoError(t, err)
	require.Len(t, precip, 2)
	assert.Equal(t, 40.0, precip[1].ProbabilityPct)
	assert.Equal(t, 1.2, precip[1].AmountMM)

	snow, err := c.GetSnowfallSeries(ctx, 40.71, -74.01, 72)
	require.NoError(t, err)
	require.Len(t, snow, 3)
	assert.Equal(t, 1.4, snow[2].CM)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "one fetch serves every variable")
}

func TestClient_HoursLimit(t *testing.T) {
	var calls int32
	srv := newServer(t, forecastBody, &calls)
	c := NewClient(testConfig(srv.URL), nil)

	snow, err := c.GetSnowfallSeries(context.Background(), 40.71, -74.01, 2)
	require.NoError(t, err)
	assert.Len(t, snow, 2)
}

func TestClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	c := NewClient(testConfig(srv.URL), nil)

	_, err := c.GetTemperatureSeries(context.Background(), 40.71, -74.01, 24)
	assert.ErrorIs(t, err, models.ErrDataUnavailable)

	var calls int32
	empty := newServer(t, `{"hourly":{"time":[],"temperature_2m":[]}}`, &calls)
	c = NewClient(testConfig(empty.URL), nil)
	_, err = c.GetTemperatureSeries(context.Background(), 40.71, -74.01, 24)
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
}

func TestForecastDays(t *testing.T) {
	assert.Equal(t, 3, forecastDays(0))
	assert.Equal(t, 1, forecastDays(1))
	assert.Equal(t, 1, forecastDays(24))
	assert.Equal(t, 2, forecastDays(25))
	assert.Equal(t, 3, forecastDays(72))
	assert.Equal(t, 16, forecastDays(1000))
}
