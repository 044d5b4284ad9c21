package openmeteo

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"PolyEdge/internal/domain/models"
	domrepo "PolyEdge/internal/domain/repository"
	"PolyEdge/pkg/cache"
	"PolyEdge/pkg/config"
	xhttp "PolyEdge/pkg/http"
	applogger "PolyEdge/pkg/logger"
	"PolyEdge/pkg/util"
)

const (
	hourlyVariables = "temperature_2m,precipitation_probability,precipitation,snowfall"
	maxForecastDays = 16
)

// Client implements ForecastFeed against the Open-Meteo forecast API.
// One request fetches every hourly variable; responses are cached per coordinate and horizon.
type Client struct {
	cfg   config.OpenMeteoConfig
	http  *xhttp.Client
	cache cache.Service
	l     *applogger.Logger
}

var _ domrepo.ForecastFeed = (*Client)(nil)

// NewClient creates a forecast client. c may be nil to disable caching.
func NewClient(cfg config.OpenMeteoConfig, c cache.Service) *Client {
	return &Client{
		cfg:   cfg,
		http:  xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)),
		cache: c,
		l:     applogger.NewNop(),
	}
}

// SetLogger injects a structured logger.
func (c *Client) SetLogger(l *applogger.Logger) { c.l = l }

type forecastResponse struct {
	Hourly struct {
		Time                     []string   `json:"time"`
		Temperature2m            []*float64 `json:"temperature_2m"`
		PrecipitationProbability []*float64 `json:"precipitation_probability"`
		Precipitation            []*float64 `json:"precipitation"`
		Snowfall                 []*float64 `json:"snowfall"`
	} `json:"hourly"`
}

// hourly is the cached, decoded form of one forecast response.
type hourly struct {
	Times    []time.Time `json:"times"`
	TempC    []*float64  `json:"temp_c"`
	PrecipPc []*float64  `json:"precip_pct"`
	PrecipMM []*float64  `json:"precip_mm"`
	SnowCM   []*float64  `json:"snow_cm"`
}

func forecastDays(hours int) int {
	if hours <= 0 {
		return 3
	}
	return min(maxForecastDays, max(1, (hours+23)/24))
}

func (c *Client) fetch(ctx context.Context, lat, lon float64, hours int) (hourly, error) {
	days := forecastDays(hours)
	key := cache.Key("openmeteo", strconv.FormatFloat(lat, 'f', 4, 64), strconv.FormatFloat(lon, 'f', 4, 64), days)

	return cache.Remember(ctx, c.cache, key, c.cfg.CacheTTL, func(ctx context.Context) (hourly, error) {
		var resp forecastResponse
		err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodGet,
			URL:    strings.TrimRight(c.cfg.BaseURL, "/") + "/forecast",
			QueryParams: map[string][]string{
				"latitude":      {strconv.FormatFloat(lat, 'f', -1, 64)},
				"longitude":     {strconv.FormatFloat(lon, 'f', -1, 64)},
				"hourly":        {hourlyVariables},
				"forecast_days": {strconv.Itoa(days)},
				"timezone":      {"UTC"},
			},
		}, &resp)
		if err != nil {
			return hourly{}, fmt.Errorf("%w: open-meteo forecast: %w", models.ErrDataUnavailable, err)
		}
		return decode(resp)
	})
}

func decode(resp forecastResponse) (hourly, error) {
	h := hourly{
		Times:    make([]time.Time, 0, len(resp.Hourly.Time)),
		TempC:    resp.Hourly.Temperature2m,
		PrecipPc: resp.Hourly.PrecipitationProbability,
		PrecipMM: resp.Hourly.Precipitation,
		SnowCM:   resp.Hourly.Snowfall,
	}
	for _, s := range resp.Hourly.Time {
		t, ok := util.ParseTime(s)
		if !ok {
			return hourly{}, fmt.Errorf("%w: open-meteo time %q", models.ErrDataUnavailable, s)
		}
		h.Times = append(h.Times, t.UTC())
	}
	if len(h.Times) == 0 {
		return hourly{}, fmt.Errorf("%w: open-meteo returned no hourly data", models.ErrDataUnavailable)
	}
	return h, nil
}

// at returns the i-th value; missing or null entries are reported as absent.
func at(vals []*float64, i int) (float64, bool) {
	if i >= len(vals) || vals[i] == nil {
		return 0, false
	}
	return *vals[i], true
}

func limit(n, hours int) int {
	if hours > 0 && hours < n {
		return hours
	}
	return n
}

// GetTemperatureSeries returns hourly 2m temperature in °C.
func (c *Client) GetTemperatureSeries(ctx context.Context, lat, lon float64, hours int) ([]models.TemperaturePoint, error) {
	h, err := c.fetch(ctx, lat, lon, hours)
	if err != nil {
		return nil, err
	}
	n := limit(len(h.Times), hours)
	out := make([]models.TemperaturePoint, 0, n)
	for i := 0; i < n; i++ {
		if v, ok := at(h.TempC, i); ok {
			out = append(out, models.TemperaturePoint{Time: h.Times[i], Celsius: v})
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no temperature values", models.ErrDataUnavailable)
	}
	return out, nil
}

// GetPrecipitationSeries returns hourly precipitation probability (%) and amount (mm).
func (c *Client) GetPrecipitationSeries(ctx context.Context, lat, lon float64, hours int) ([]models.PrecipitationPoint, error) {
	h, err := c.fetch(ctx, lat, lon, hours)
	if err != nil {
		return nil, err
	}
	n := limit(len(h.Times), hours)
	out := make([]models.PrecipitationPoint, 0, n)
	for i := 0; i < n; i++ {
		pct, okP := at(h.PrecipPc, i)
		mm, okA := at(h.PrecipMM, i)
		if !okP && !okA {
			continue
		}
		out = append(out, models.PrecipitationPoint{Time: h.Times[i], ProbabilityPct: pct, AmountMM: mm})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no precipitation values", models.ErrDataUnavailable)
	}
	return out, nil
}

// GetSnowfallSeries returns hourly snowfall in cm.
func (c *Client) GetSnowfallSeries(ctx context.Context, lat, lon float64, hours int) ([]models.SnowfallPoint, error) {
	h, err := c.fetch(ctx, lat, lon, hours)
	if err != nil {
		return nil, err
	}
	n := limit(len(h.Times), hours)
	out := make([]models.SnowfallPoint, 0, n)
	for i := 0; i < n; i++ {
		if v, ok := at(h.SnowCM, i); ok {
			out = append(out, models.SnowfallPoint{Time: h.Times[i], CM: v})
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no snowfall values", models.ErrDataUnavailable)
	}
	return out, nil
}
