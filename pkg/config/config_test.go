package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	assert.True(t, c.Trading.Paper)
	assert.Equal(t, 1000.0, c.Trading.InitialBankroll)
	assert.Equal(t, 0.5, c.Risk.KellyFraction)
	assert.Equal(t, 0.05, c.Risk.MaxSingleBetPct)
	assert.Equal(t, 0.5, c.Risk.MaxExposurePct)
	assert.Equal(t, 0.03, c.Risk.MinEdge)
	assert.Equal(t, 10, c.Risk.MaxOpenPositions)
	assert.Equal(t, 1.0, c.Risk.MinBetUSD)
	assert.Equal(t, 30*time.Second, c.Scan.PriceInterval)
	assert.Equal(t, 5*time.Minute, c.Scan.WeatherInterval)
	assert.Equal(t, DefaultPrecipitationBands(), c.WeatherModel.Precipitation.Bands)
	assert.Equal(t, DefaultSnowBands(), c.WeatherModel.Snow.Bands)
	assert.Equal(t, filepath.Join("logs", "state.json"), c.StatePath())
	assert.Equal(t, filepath.Join("logs", "trades.jsonl"), c.JournalPath())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	p := writeConfig(t, `
trading:
  paper: true
  initial_bankroll: 250
  weather_enabled: false
risk:
  min_edge: 0
scan:
  price_interval: 45s
`)
	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 250.0, c.Trading.InitialBankroll)
	assert.False(t, c.Trading.WeatherEnabled)
	assert.True(t, c.Trading.PriceEnabled)
	// explicit zero wins over the default
	assert.Zero(t, c.Risk.MinEdge)
	assert.Equal(t, 45*time.Second, c.Scan.PriceInterval)
	assert.Equal(t, 45*time.Second, c.ScanInterval())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, "risk: [unclosed"))
	assert.ErrorContains(t, err, "parse config")

	_, err = Load(writeConfig(t, "risk:\n  kelly_fraction: 1.5\n"))
	assert.ErrorContains(t, err, "validate config")
}

func TestValidate_CrossFieldRules(t *testing.T) {
	c := Default()
	c.Trading.Paper = false
	assert.ErrorContains(t, c.Validate(), "execution.url")
	c.Execution.URL = "https://gateway.example.com"
	assert.NoError(t, c.Validate())

	c = Default()
	c.Kafka.Enabled = true
	assert.ErrorContains(t, c.Validate(), "kafka.brokers")

	c = Default()
	c.Trading.PriceEnabled, c.Trading.WeatherEnabled = false, false
	assert.Error(t, c.Validate())

	c = Default()
	c.Risk.MaxSingleBetPct = 0.6
	assert.ErrorContains(t, c.Validate(), "max_single_bet_pct")

	c = Default()
	c.WeatherModel.Temperature.FarBeyond = 0.8
	assert.ErrorContains(t, c.Validate(), "far_beyond")

	c = Default()
	c.WeatherModel.Temperature.FarShort = 0.2
	assert.ErrorContains(t, c.Validate(), "far_short")

	c = Default()
	c.WeatherModel.Temperature.MaxShift = 0.3
	assert.NoError(t, c.Validate())
}

func TestPriceModelConfig_HorizonBars(t *testing.T) {
	c := Default().PriceModel
	assert.Equal(t, 15.0, c.HorizonBars())
	c.CandleInterval = "5m"
	assert.Equal(t, 5.0, c.CandleMinutes())
	assert.Equal(t, 3.0, c.HorizonBars())
	c.CandleInterval = "15m"
	assert.Equal(t, 1.0, c.HorizonBars())
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("INITIAL_BANKROLL", "500")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	c, err := LoadWithEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 500.0, c.Trading.InitialBankroll)
	assert.Equal(t, "debug", c.Log.Level)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)

	t.Setenv("INITIAL_BANKROLL", "lots")
	_, err = LoadWithEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "INITIAL_BANKROLL")
}

func TestScanInterval(t *testing.T) {
	c := Default()
	assert.Equal(t, 30*time.Second, c.ScanInterval())

	c.Trading.PriceEnabled = false
	assert.Equal(t, 5*time.Minute, c.ScanInterval())
}
