package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
		Dir    string `yaml:"dir" default:"logs" validate:"required"`
	} `yaml:"log"`
	Trading struct {
		Paper           bool    `yaml:"paper" default:"true"`
		InitialBankroll float64 `yaml:"initial_bankroll" default:"1000" validate:"gt=0"`
		PriceEnabled    bool    `yaml:"price_enabled" default:"true"`
		WeatherEnabled  bool    `yaml:"weather_enabled" default:"true"`
	} `yaml:"trading"`
	Risk         RiskConfig         `yaml:"risk"`
	Indicators   IndicatorConfig    `yaml:"indicators"`
	PriceModel   PriceModelConfig   `yaml:"price_model"`
	WeatherModel WeatherModelConfig `yaml:"weather_model"`
	Ledger       struct {
		StateFile   string `yaml:"state_file" default:"state.json" validate:"required"`
		JournalFile string `yaml:"journal_file" default:"trades.jsonl" validate:"required"`
	} `yaml:"ledger"`
	Scan struct {
		PriceInterval   time.Duration `yaml:"price_interval" default:"30s" validate:"gt=0"`
		WeatherInterval time.Duration `yaml:"weather_interval" default:"5m" validate:"gt=0"`
		MarketLimit     int           `yaml:"market_limit" default:"50" validate:"gte=1,lte=500"`
	} `yaml:"scan"`
	Feeds struct {
		Binance   BinanceConfig   `yaml:"binance"`
		OpenMeteo OpenMeteoConfig `yaml:"open_meteo"`
		Gamma     GammaConfig     `yaml:"gamma"`
		CLOB      CLOBConfig      `yaml:"clob"`
	} `yaml:"feeds"`
	Execution ExecutionConfig `yaml:"execution"`
	Server struct {
		Enabled         bool          `yaml:"enabled" default:"true"`
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Redis struct {
		Enabled      bool          `yaml:"enabled" default:"false"`
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"6379"`
		Password     string        `yaml:"password"`
		DB           int           `yaml:"db" default:"0"`
		Prefix       string        `yaml:"prefix" default:"polyedge"`
		PoolSize     int           `yaml:"pool_size" default:"10" validate:"gte=1"`
		MinIdleConns int           `yaml:"min_idle_conns" default:"2" validate:"gte=0"`
		PoolTimeout  time.Duration `yaml:"pool_timeout" default:"30s"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled" default:"false"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"polyedge.ledger"`
		ClientID     string   `yaml:"client_id" default:"polyedge"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"100ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled" default:"false"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"polyedge"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert" default:"true"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
}

// BinanceConfig configures the spot market data feed.
type BinanceConfig struct {
	BaseURL        string        `yaml:"base_url" default:"https://api.binance.com/api/v3" validate:"required,url"`
	Symbol         string        `yaml:"symbol" default:"BTCUSDT" validate:"required"`
	Timeout        time.Duration `yaml:"timeout" default:"10s"`
	RateCapacity   float64       `yaml:"rate_capacity" default:"20" validate:"gt=0"`
	RateRefill     float64       `yaml:"rate_refill" default:"10" validate:"gt=0"`
	StreamEnabled  bool          `yaml:"stream_enabled" default:"false"`
	WebSocketURL   string        `yaml:"websocket_url" default:"wss://stream.binance.com:9443/ws"`
	StreamMaxAge   time.Duration `yaml:"stream_max_age" default:"10s"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
	PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
}

// OpenMeteoConfig configures the forecast feed.
type OpenMeteoConfig struct {
	BaseURL  string        `yaml:"base_url" default:"https://api.open-meteo.com/v1" validate:"required,url"`
	Timeout  time.Duration `yaml:"timeout" default:"15s"`
	CacheTTL time.Duration `yaml:"cache_ttl" default:"5m"`
}

// GammaConfig configures market discovery.
type GammaConfig struct {
	BaseURL  string        `yaml:"base_url" default:"https://gamma-api.polymarket.com" validate:"required,url"`
	Timeout  time.Duration `yaml:"timeout" default:"15s"`
	CacheTTL time.Duration `yaml:"cache_ttl" default:"30s"`
}

// CLOBConfig configures the order book midpoint lookup.
type CLOBConfig struct {
	BaseURL string        `yaml:"base_url" default:"https://clob.polymarket.com" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" default:"10s"`
}

// ExecutionConfig points the live executor at an order-signing gateway.
type ExecutionConfig struct {
	URL     string        `yaml:"url" validate:"omitempty,url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout" default:"15s"`
}

// RiskConfig holds the sizing limits. MinEdge is shared by the side selector and the sizer.
type RiskConfig struct {
	KellyFraction    float64 `yaml:"kelly_fraction" default:"0.5" validate:"gt=0,lte=1"`
	MaxSingleBetPct  float64 `yaml:"max_single_bet_pct" default:"0.05" validate:"gt=0,lte=1"`
	MaxExposurePct   float64 `yaml:"max_exposure_pct" default:"0.5" validate:"gt=0,lte=1"`
	MinEdge          float64 `yaml:"min_edge" default:"0.03" validate:"gte=0,lt=1"`
	MaxOpenPositions int     `yaml:"max_open_positions" default:"10" validate:"gte=1"`
	MinBetUSD        float64 `yaml:"min_bet_usd" default:"1" validate:"gte=0"`
}

// IndicatorConfig holds lookbacks for the indicator engine.
type IndicatorConfig struct {
	RSIPeriod          int `yaml:"rsi_period" default:"14" validate:"gte=1"`
	VWAPLookback       int `yaml:"vwap_lookback" default:"60" validate:"gte=1"`
	VolatilityLookback int `yaml:"volatility_lookback" default:"20" validate:"gte=2"`
	MomentumLookback   int `yaml:"momentum_lookback" default:"10" validate:"gte=1"`
}

// PriceModelConfig holds the price-crossing model parameters.
type PriceModelConfig struct {
	HorizonMinutes  float64 `yaml:"horizon_minutes" default:"15" validate:"gt=0"`
	MinExpectedMove float64 `yaml:"min_expected_move" default:"0.0001" validate:"gt=0"`
	RSIOversold     float64 `yaml:"rsi_oversold" default:"30" validate:"gt=0,ltfield=RSIOverbought"`
	RSIOverbought   float64 `yaml:"rsi_overbought" default:"70" validate:"lt=100"`
	RSIWeight       float64 `yaml:"rsi_weight" default:"0.05" validate:"gte=0"`
	VWAPWeight      float64 `yaml:"vwap_weight" default:"0.5" validate:"gte=0"`
	VWAPDeadband    float64 `yaml:"vwap_deadband" default:"0.001" validate:"gte=0"`
	MomentumWeight  float64 `yaml:"momentum_weight" default:"10" validate:"gte=0"`
	OrderFlowWeight float64 `yaml:"order_flow_weight" default:"0.03" validate:"gte=0"`
	ProbFloor       float64 `yaml:"prob_floor" default:"0.02" validate:"gt=0,ltfield=ProbCap"`
	ProbCap         float64 `yaml:"prob_cap" default:"0.98" validate:"lt=1"`
	CandleInterval  string  `yaml:"candle_interval" default:"1m" validate:"oneof=1m 3m 5m 15m"`
	CandleLimit     int     `yaml:"candle_limit" default:"100" validate:"gte=2,lte=1000"`
	MinBars         int     `yaml:"min_bars" default:"20" validate:"gte=2"`
	TradesLimit     int     `yaml:"trades_limit" default:"200" validate:"gte=0,lte=1000"`
}

// CandleMinutes is the bar period of CandleInterval in minutes, 1 when unparseable.
func (c PriceModelConfig) CandleMinutes() float64 {
	d, err := time.ParseDuration(c.CandleInterval)
	if err != nil || d <= 0 {
		return 1
	}
	return d.Minutes()
}

// HorizonBars is the horizon measured in bars, the factor per-bar volatility is scaled by.
func (c PriceModelConfig) HorizonBars() float64 {
	return c.HorizonMinutes / c.CandleMinutes()
}

// RatioBand maps total/threshold above Ratio to Prob.
type RatioBand struct {
	Ratio float64 `yaml:"ratio" validate:"gte=0"`
	Prob  float64 `yaml:"prob" validate:"gt=0,lt=1"`
}

// TemperatureBands shapes the temperature margin-to-probability curve.
type TemperatureBands struct {
	WideMarginC float64 `yaml:"wide_margin_c" default:"2" validate:"gt=0"`
	MarginScale float64 `yaml:"margin_scale" default:"2" validate:"gt=0"`
	Slope       float64 `yaml:"slope" default:"0.2" validate:"gte=0"`
	MaxShift    float64 `yaml:"max_shift" default:"0.4" validate:"gte=0,lt=0.5"`
	FarBeyond   float64 `yaml:"far_beyond" default:"0.90" validate:"gt=0,lt=1"`
	FarShort    float64 `yaml:"far_short" default:"0.10" validate:"gt=0,lt=1"`
}

// PrecipitationBands shapes precipitation probabilities.
type PrecipitationBands struct {
	Bands     []RatioBand `yaml:"bands" validate:"dive"`
	Floor     float64     `yaml:"floor" default:"0.15" validate:"gt=0,lt=1"`
	MaxProbWt float64     `yaml:"max_prob_weight" default:"0.7" validate:"gte=0"`
	AvgProbWt float64     `yaml:"avg_prob_weight" default:"0.3" validate:"gte=0"`
}

// SnowBands shapes snowfall probabilities.
type SnowBands struct {
	Bands          []RatioBand `yaml:"bands" validate:"dive"`
	Floor          float64     `yaml:"floor" default:"0.10" validate:"gt=0,lt=1"`
	MinTotalCM     float64     `yaml:"min_total_cm" default:"0.5" validate:"gte=0"`
	CMPerProbUnit  float64     `yaml:"cm_per_prob_unit" default:"5" validate:"gt=0"`
	NoThresholdCap float64     `yaml:"no_threshold_cap" default:"0.9" validate:"gt=0,lt=1"`
}

// WeatherModelConfig holds every tunable of the weather threshold model.
type WeatherModelConfig struct {
	ForecastHours      int                `yaml:"forecast_hours" default:"72" validate:"gte=1,lte=384"`
	DefaultWindowHours int                `yaml:"default_window_hours" default:"48" validate:"gte=1"`
	ProbFloor          float64            `yaml:"prob_floor" default:"0.05" validate:"gt=0,ltfield=ProbCap"`
	ProbCap            float64            `yaml:"prob_cap" default:"0.95" validate:"lt=1"`
	Temperature        TemperatureBands   `yaml:"temperature"`
	Precipitation      PrecipitationBands `yaml:"precipitation"`
	Snow               SnowBands          `yaml:"snow"`
}

// DefaultPrecipitationBands are applied when none are configured.
func DefaultPrecipitationBands() []RatioBand {
	return []RatioBand{{Ratio: 1.5, Prob: 0.85}, {Ratio: 1.0, Prob: 0.65}, {Ratio: 0.5, Prob: 0.35}}
}

// DefaultSnowBands are applied when none are configured.
func DefaultSnowBands() []RatioBand {
	return []RatioBand{{Ratio: 1.5, Prob: 0.85}, {Ratio: 1.0, Prob: 0.60}, {Ratio: 0.3, Prob: 0.30}}
}

var validate = validator.New()

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	c.fillBands()
	return &c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Defaults go in first so that explicit zero values in the file win.
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.fillBands()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A missing file falls back to defaults so the engine can run with env only.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		c, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PAPER_TRADING"); v != "" {
		c.Trading.Paper = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("INITIAL_BANKROLL"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("INITIAL_BANKROLL: %w", err)
		}
		c.Trading.InitialBankroll = f
	}
	if v := os.Getenv("LOG_DIR"); v != "" {
		c.Log.Dir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("EXECUTION_URL"); v != "" {
		c.Execution.URL = v
	}
	if v := os.Getenv("EXECUTION_API_KEY"); v != "" {
		c.Execution.APIKey = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if !c.Trading.Paper && c.Execution.URL == "" {
		return fmt.Errorf("execution.url is required when trading.paper is false")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if !c.Trading.PriceEnabled && !c.Trading.WeatherEnabled {
		return fmt.Errorf("at least one of trading.price_enabled, trading.weather_enabled must be set")
	}
	if c.Risk.MaxSingleBetPct > c.Risk.MaxExposurePct {
		return fmt.Errorf("risk.max_single_bet_pct cannot exceed risk.max_exposure_pct")
	}
	if err := c.WeatherModel.Temperature.validate(); err != nil {
		return fmt.Errorf("weather_model.temperature: %w", err)
	}
	return nil
}

// validate keeps the margin curve monotone: far short <= 0.5 - max_shift and 0.5 + max_shift <= far beyond.
func (b TemperatureBands) validate() error {
	const eps = 1e-9
	if 0.5+b.MaxShift > b.FarBeyond+eps {
		return fmt.Errorf("0.5 + max_shift (%.3f) exceeds far_beyond (%.3f)", 0.5+b.MaxShift, b.FarBeyond)
	}
	if 0.5-b.MaxShift < b.FarShort-eps {
		return fmt.Errorf("0.5 - max_shift (%.3f) is below far_short (%.3f)", 0.5-b.MaxShift, b.FarShort)
	}
	return nil
}

// StatePath returns the ledger snapshot location.
func (c *Config) StatePath() string {
	return filepath.Join(c.Log.Dir, c.Ledger.StateFile)
}

// JournalPath returns the JSONL journal location.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Log.Dir, c.Ledger.JournalFile)
}

// ScanInterval is the shortest interval among enabled strategies.
func (c *Config) ScanInterval() time.Duration {
	var d time.Duration
	if c.Trading.PriceEnabled {
		d = c.Scan.PriceInterval
	}
	if c.Trading.WeatherEnabled && (d == 0 || c.Scan.WeatherInterval < d) {
		d = c.Scan.WeatherInterval
	}
	return d
}

func (c *Config) fillBands() {
	if len(c.WeatherModel.Precipitation.Bands) == 0 {
		c.WeatherModel.Precipitation.Bands = DefaultPrecipitationBands()
	}
	if len(c.WeatherModel.Snow.Bands) == 0 {
		c.WeatherModel.Snow.Bands = DefaultSnowBands()
	}
}
