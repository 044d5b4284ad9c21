package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"PolyEdge/internal/domain/models"
	domrepo "PolyEdge/internal/domain/repository"
	"PolyEdge/pkg/cache"
	"PolyEdge/pkg/config"
	xhttp "PolyEdge/pkg/http"
	applogger "PolyEdge/pkg/logger"
)

var (
	priceQueries   = []string{"btc", "bitcoin"}
	weatherQueries = []string{"weather", "temperature", "hurricane", "rain", "snow", "storm", "heat", "cold", "tornado", "flood", "climate"}
	reShortWindow  = regexp.MustCompile(`15\s*-?\s*min|minute`)
)

// Catalog implements MarketCatalog over the Gamma markets API with a CLOB midpoint fallback.
type Catalog struct {
	gamma config.GammaConfig
	clob  config.CLOBConfig
	limit int
	http  *xhttp.Client
	cache cache.Service
	l     *applogger.Logger
}

var _ domrepo.MarketCatalog = (*Catalog)(nil)

// NewCatalog creates a catalog returning at most limit markets per query. c may be nil.
func NewCatalog(gamma config.GammaConfig, clob config.CLOBConfig, limit int, c cache.Service) *Catalog {
	return &Catalog{
		gamma: gamma,
		clob:  clob,
		limit: limit,
		http:  xhttp.NewClient(xhttp.WithTimeout(gamma.Timeout)),
		cache: c,
		l:     applogger.NewNop(),
	}
}

// SetLogger injects a structured logger.
func (c *Catalog) SetLogger(l *applogger.Logger) { c.l = l }

// gammaMarket is the subset of the Gamma market object the engine reads.
// outcomePrices and clobTokenIds arrive as JSON-encoded strings.
type gammaMarket struct {
	ID            flexString `json:"id"`
	Question      string     `json:"question"`
	Description   string     `json:"description"`
	Active        bool       `json:"active"`
	Closed        bool       `json:"closed"`
	OutcomePrices string     `json:"outcomePrices"`
	ClobTokenIDs  string     `json:"clobTokenIds"`
}

// flexString accepts both JSON strings and numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

func (m gammaMarket) open() bool { return m.Active && !m.Closed }

func (m gammaMarket) text() string {
	return strings.ToLower(m.Question + " " + m.Description)
}

// FindPriceMarkets returns open bitcoin markets on short windows.
func (c *Catalog) FindPriceMarkets(ctx context.Context) ([]models.Market, error) {
	return c.find(ctx, priceQueries, func(m gammaMarket) bool {
		return reShortWindow.MatchString(m.text())
	})
}

// FindWeatherMarkets returns open markets matching weather keywords.
func (c *Catalog) FindWeatherMarkets(ctx context.Context) ([]models.Market, error) {
	return c.find(ctx, weatherQueries, func(gammaMarket) bool { return true })
}

func (c *Catalog) find(ctx context.Context, queries []string, keep func(gammaMarket) bool) ([]models.Market, error) {
	seen := make(map[string]struct{})
	var out []models.Market
	var failed int

	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		raw, err := c.listMarkets(ctx, q)
		if err != nil {
			failed++
			c.l.Warn("gamma query failed", applogger.String("query", q), applogger.Error(err))
			continue
		}
		for _, gm := range raw {
			id := string(gm.ID)
			if id == "" || !gm.open() || !keep(gm) {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			m, ok := c.toMarket(ctx, gm)
			if !ok {
				c.l.Debug("market has no usable probability", applogger.String("market_id", id))
				continue
			}
			out = append(out, m)
		}
	}
	if failed == len(queries) {
		return nil, fmt.Errorf("%w: every gamma query failed", models.ErrDataUnavailable)
	}
	return out, nil
}

func (c *Catalog) listMarkets(ctx context.Context, query string) ([]gammaMarket, error) {
	key := cache.Key("gamma", "markets", query, c.limit)
	return cache.Remember(ctx, c.cache, key, c.gamma.CacheTTL, func(ctx context.Context) ([]gammaMarket, error) {
		var res []gammaMarket
		err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodGet,
			URL:    strings.TrimRight(c.gamma.BaseURL, "/") + "/markets",
			QueryParams: map[string][]string{
				"limit":         {strconv.Itoa(c.limit)},
				"offset":        {"0"},
				"active":        {"true"},
				"closed":        {"false"},
				"slug_contains": {query},
			},
		}, &res)
		if err != nil {
			return nil, fmt.Errorf("gamma markets %q: %w", query, err)
		}
		return res, nil
	})
}

func (c *Catalog) toMarket(ctx context.Context, gm gammaMarket) (models.Market, bool) {
	m := models.Market{
		ID:          string(gm.ID),
		Question:    gm.Question,
		Description: gm.Description,
	}
	if ids := decodeStrings(gm.ClobTokenIDs); len(ids) > 0 {
		m.YesTokenID = ids[0]
		if len(ids) > 1 {
			m.NoTokenID = ids[1]
		}
	}

	p, ok := outcomeProbability(gm.OutcomePrices)
	if !ok && m.YesTokenID != "" {
		mid, err := c.Midpoint(ctx, m.YesTokenID)
		if err != nil {
			c.l.Debug("midpoint lookup failed", applogger.String("token_id", m.YesTokenID), applogger.Error(err))
		} else {
			p, ok = mid, true
		}
	}
	if !ok || !isProbability(p) {
		return models.Market{}, false
	}
	m.MarketProb = p
	return m, true
}

// outcomePrices is e.g. "[\"0.535\", \"0.465\"]"; the first entry is the YES price.
func outcomeProbability(raw string) (float64, bool) {
	prices := decodeStrings(raw)
	if len(prices) == 0 {
		return 0, false
	}
	p, err := strconv.ParseFloat(prices[0], 64)
	if err != nil || math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, false
	}
	return p, true
}

// isProbability rejects NaN, infinities and the resolved endpoints 0 and 1.
func isProbability(p float64) bool {
	return !math.IsNaN(p) && p > 0 && p < 1
}

func decodeStrings(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		return out
	}
	var nums []float64
	if err := json.Unmarshal([]byte(raw), &nums); err == nil {
		out = make([]string, len(nums))
		for i, n := range nums {
			out[i] = strconv.FormatFloat(n, 'f', -1, 64)
		}
		return out
	}
	return nil
}

type midpointResponse struct {
	Mid string `json:"mid"`
}

// Midpoint returns the CLOB order book midpoint for a token.
func (c *Catalog) Midpoint(ctx context.Context, tokenID string) (float64, error) {
	key := cache.Key("clob", "mid", tokenID)
	return cache.Remember(ctx, c.cache, key, c.gamma.CacheTTL, func(ctx context.Context) (float64, error) {
		var res midpointResponse
		err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:      xhttp.MethodGet,
			URL:         strings.TrimRight(c.clob.BaseURL, "/") + "/midpoint",
			QueryParams: map[string][]string{"token_id": {tokenID}},
		}, &res)
		if err != nil {
			return 0, fmt.Errorf("clob midpoint: %w", err)
		}
		p, err := strconv.ParseFloat(res.Mid, 64)
		if err != nil {
			return 0, fmt.Errorf("clob midpoint %q: %w", res.Mid, err)
		}
		if !isProbability(p) {
			return 0, fmt.Errorf("clob midpoint %q: %w", res.Mid, models.ErrDataUnavailable)
		}
		return p, nil
	})
}
