package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"PolyEdge/internal/domain/models"
	domrepo "PolyEdge/internal/domain/repository"
	"PolyEdge/internal/service/ratelimit"
	"PolyEdge/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) config.BinanceConfig {
	cfg := config.Default().Feeds.Binance
	cfg.BaseURL = baseURL
	cfg.Timeout = 2 * time.Second
	return cfg
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ticker/price", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"97123.45000000"}`))
	})
	mux.HandleFunc("/klines", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1m", r.URL.Query().Get("interval"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[
			[1700000000000,"100.0","110.0","95.0","105.0","12.5",1700000059999,"0",10,"0","0","0"],
			[1700000060000,"105.0","106.0","101.0","102.0","3.0",1700000119999,"0",4,"0","0","0"]
		]`))
	})
	mux.HandleFunc("/trades", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id":1,"price":"97000","qty":"0.5","isBuyerMaker":false},
			{"id":2,"price":"97001","qty":"0.25","isBuyerMaker":true}
		]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_GetCurrentPrice(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(testConfig(srv.URL), nil)

	p, err := c.GetCurrentPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 97123.45, p)
}

func TestClient_GetCandles(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(testConfig(srv.URL), nil)

	bars, err := c.GetCandles(context.Background(), domrepo.Interval1m, 2)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, models.Bar{
		OpenTime: time.UnixMilli(1700000000000).UTC(),
		Open:     100, High: 110, Low: 95, Close: 105, Volume: 12.5,
	}, bars[0])
	assert.Equal(t, 102.0, bars[1].Close)

	_, err = c.GetCandles(context.Background(), domrepo.Interval("7m"), 2)
	assert.Error(t, err)
}

func TestClient_GetRecentTrades(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(testConfig(srv.URL), nil)

	trades, err := c.GetRecentTrades(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []models.TradePrint{
		{Quantity: 0.5, BuyerIsMaker: false},
		{Quantity: 0.25, BuyerIsMaker: true},
	}, trades)
}

func TestClient_MalformedKline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[[1700000000000,"abc","1","1","1","1"]]`))
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL), nil).GetCandles(context.Background(), domrepo.Interval1m, 1)
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
}

func TestClient_RateLimited(t *testing.T) {
	srv := newTestServer(t)
	cfg := testConfig(srv.URL)
	cfg.RateCapacity, cfg.RateRefill = 1, 0.0001
	now := time.Unix(0, 0)
	c := NewClient(cfg, ratelimit.New(ratelimit.WithClock(func() time.Time { return now })))

	_, err := c.GetCurrentPrice(context.Background())
	require.NoError(t, err)
	_, err = c.GetCurrentPrice(context.Background())
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestClient_UpstreamThrottle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL), nil).GetRecentTrades(context.Background(), 10)
	assert.True(t, errors.Is(err, ErrRateLimited))
}

func TestClient_PrefersFreshStreamPrice(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(testConfig(srv.URL), nil)

	now := time.Unix(1000, 0)
	s := NewPriceStream(testConfig(srv.URL))
	s.now = func() time.Time { return now }
	c.AttachStream(s)

	s.set(98000)
	p, err := c.GetCurrentPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 98000.0, p)

	now = now.Add(time.Minute)
	p, err = c.GetCurrentPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 97123.45, p, "stale stream falls back to REST")
}
