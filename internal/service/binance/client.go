package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"PolyEdge/internal/domain/models"
	domrepo "PolyEdge/internal/domain/repository"
	"PolyEdge/internal/service/ratelimit"
	"PolyEdge/pkg/config"
	xhttp "PolyEdge/pkg/http"
	applogger "PolyEdge/pkg/logger"
)

// ErrRateLimited is returned when the local token bucket or the exchange throttles a call.
var ErrRateLimited = errors.New("binance: rate limited")

const limiterKey = "binance"

// Client implements MarketDataFeed against the Binance spot REST API.
// When a PriceStream is attached and fresh, GetCurrentPrice reads from it instead of REST.
type Client struct {
	cfg     config.BinanceConfig
	http    *xhttp.Client
	limiter *ratelimit.Limiter
	stream  *PriceStream
	l       *applogger.Logger
}

var _ domrepo.MarketDataFeed = (*Client)(nil)

// NewClient creates a REST client. limiter may be shared with other clients.
func NewClient(cfg config.BinanceConfig, limiter *ratelimit.Limiter) *Client {
	if limiter == nil {
		limiter = ratelimit.New()
	}
	return &Client{
		cfg:     cfg,
		http:    xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout), xhttp.WithHeader("User-Agent", "polyedge")),
		limiter: limiter,
		l:       applogger.NewNop(),
	}
}

// SetLogger injects a structured logger.
func (c *Client) SetLogger(l *applogger.Logger) { c.l = l }

// AttachStream lets GetCurrentPrice use a live trade stream.
func (c *Client) AttachStream(s *PriceStream) { c.stream = s }

func (c *Client) get(ctx context.Context, path string, query map[string][]string, dest any) error {
	if !c.limiter.Allow(limiterKey, c.cfg.RateCapacity, c.cfg.RateRefill) {
		return ErrRateLimited
	}
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         strings.TrimRight(c.cfg.BaseURL, "/") + path,
		QueryParams: query,
	}, dest)
	var se *xhttp.StatusError
	if errors.As(err, &se) && se.TooManyRequests() {
		return fmt.Errorf("%w: %s", ErrRateLimited, se.Body)
	}
	return err
}

type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// GetCurrentPrice returns the latest traded price.
func (c *Client) GetCurrentPrice(ctx context.Context) (float64, error) {
	if c.stream != nil {
		if p, ok := c.stream.Latest(c.cfg.StreamMaxAge); ok {
			return p, nil
		}
	}
	var t tickerResponse
	if err := c.get(ctx, "/ticker/price", map[string][]string{"symbol": {c.cfg.Symbol}}, &t); err != nil {
		return 0, fmt.Errorf("get ticker: %w", err)
	}
	p, err := strconv.ParseFloat(t.Price, 64)
	if err != nil || p <= 0 {
		return 0, fmt.Errorf("%w: bad ticker price %q", models.ErrDataUnavailable, t.Price)
	}
	return p, nil
}

// GetCandles returns up to limit klines, oldest first.
func (c *Client) GetCandles(ctx context.Context, interval domrepo.Interval, limit int) ([]models.Bar, error) {
	if !domrepo.IsValidInterval(interval) {
		return nil, fmt.Errorf("unsupported interval %q", interval)
	}
	var rows [][]json.RawMessage
	err := c.get(ctx, "/klines", map[string][]string{
		"symbol":   {c.cfg.Symbol},
		"interval": {string(interval)},
		"limit":    {strconv.Itoa(limit)},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("get klines: %w", err)
	}

	bars := make([]models.Bar, 0, len(rows))
	for i, row := range rows {
		b, err := parseKline(row)
		if err != nil {
			return nil, fmt.Errorf("%w: kline %d: %v", models.ErrDataUnavailable, i, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// parseKline decodes [openTime, "open", "high", "low", "close", "volume", ...].
func parseKline(row []json.RawMessage) (models.Bar, error) {
	if len(row) < 6 {
		return models.Bar{}, fmt.Errorf("short row (%d fields)", len(row))
	}
	var openMs int64
	if err := json.Unmarshal(row[0], &openMs); err != nil {
		return models.Bar{}, fmt.Errorf("open time: %w", err)
	}
	vals := make([]float64, 5)
	for i := range vals {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return models.Bar{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.Bar{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = v
	}
	return models.Bar{
		OpenTime: time.UnixMilli(openMs).UTC(),
		Open:     vals[0],
		High:     vals[1],
		Low:      vals[2],
		Close:    vals[3],
		Volume:   vals[4],
	}, nil
}

type tradeResponse struct {
	Price        string `json:"price"`
	Qty          string `json:"qty"`
	IsBuyerMaker bool   `json:"isBuyerMaker"`
}

// GetRecentTrades returns the most recent trade prints.
func (c *Client) GetRecentTrades(ctx context.Context, limit int) ([]models.TradePrint, error) {
	var raw []tradeResponse
	if err := c.get(ctx, "/trades", map[string][]string{
		"symbol": {c.cfg.Symbol},
		"limit":  {strconv.Itoa(limit)},
	}, &raw); err != nil {
		return nil, fmt.Errorf("get trades: %w", err)
	}
	out := make([]models.TradePrint, 0, len(raw))
	for _, t := range raw {
		q, err := strconv.ParseFloat(t.Qty, 64)
		if err != nil {
			c.l.Debug("skipping trade with bad quantity", applogger.String("qty", t.Qty))
			continue
		}
		out = append(out, models.TradePrint{Quantity: q, BuyerIsMaker: t.IsBuyerMaker})
	}
	return out, nil
}
