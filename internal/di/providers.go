package di

import (
	"context"
	"fmt"
	"time"

	domrepo "PolyEdge/internal/domain/repository"
	"PolyEdge/internal/handler/api"
	mid "PolyEdge/internal/middleware"
	internalrepo "PolyEdge/internal/repository"
	"PolyEdge/internal/service/binance"
	"PolyEdge/internal/service/openmeteo"
	"PolyEdge/internal/service/polymarket"
	"PolyEdge/internal/service/ratelimit"
	"PolyEdge/internal/services/edge"
	"PolyEdge/internal/services/features"
	"PolyEdge/internal/services/ledger"
	"PolyEdge/internal/services/parser"
	"PolyEdge/internal/services/probability"
	"PolyEdge/internal/services/risk"
	"PolyEdge/internal/usecase"
	"PolyEdge/pkg/cache"
	pkgch "PolyEdge/pkg/clickhouse"
	"PolyEdge/pkg/config"
	xhttp "PolyEdge/pkg/http"
	pkgkafka "PolyEdge/pkg/kafka"
	applogger "PolyEdge/pkg/logger"
	"PolyEdge/pkg/metrics"
	"PolyEdge/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideCache uses Redis when enabled and an in-process cache otherwise.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.PoolTimeout),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	l.Info("redis cache connected", applogger.String("host", cfg.Redis.Host), applogger.Int("db", cfg.Redis.DB))
	return c, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithClientID(cfg.Kafka.ClientID),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideClickHouseClient creates a ClickHouse client with the archive schema,
// or nil when clickhouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.ClickHouseSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideInfra groups the clients the app closes on shutdown.
func ProvideInfra(c cache.Service, producer *pkgkafka.Producer, ch *pkgch.Client, journal []*mid.JournalBuffer) *server.Infra {
	return &server.Infra{Cache: c, Producer: producer, ClickHouse: ch, Journal: journal}
}

// ProvideJournalBuffers wraps each enabled downstream journal consumer in a retry buffer.
func ProvideJournalBuffers(
	cfg *config.Config,
	producer *pkgkafka.Producer,
	ch *pkgch.Client,
	m domrepo.Metrics,
	l *applogger.Logger,
) []*mid.JournalBuffer {
	var sinks []domrepo.JournalSink
	if producer != nil {
		sinks = append(sinks, internalrepo.NewKafkaJournalPublisher(producer, cfg.Kafka.Topic))
	}
	if ch != nil {
		sinks = append(sinks, internalrepo.NewClickHouseJournalArchive(ch, cfg.ClickHouse.Database))
	}
	out := make([]*mid.JournalBuffer, len(sinks))
	for i, s := range sinks {
		out[i] = mid.NewJournalBuffer(s, m, mid.WithBufferLogger(l.Component("journal")))
	}
	return out
}

// ProvideJournalSinks exposes the buffers as ledger sinks.
func ProvideJournalSinks(buffers []*mid.JournalBuffer) []domrepo.JournalSink {
	sinks := make([]domrepo.JournalSink, len(buffers))
	for i, b := range buffers {
		sinks[i] = b
	}
	return sinks
}

// ProvideStateStore creates the file-backed snapshot and journal store.
func ProvideStateStore(cfg *config.Config) (domrepo.StateStore, error) {
	return internalrepo.NewFileStateStore(cfg.StatePath(), cfg.JournalPath())
}

// ProvideLedger loads or initialises the ledger.
func ProvideLedger(
	cfg *config.Config,
	store domrepo.StateStore,
	sinks []domrepo.JournalSink,
	m domrepo.Metrics,
	l *applogger.Logger,
) (*ledger.Ledger, error) {
	return ledger.New(store, cfg.Trading.InitialBankroll,
		ledger.WithSinks(sinks...),
		ledger.WithMetrics(m),
		ledger.WithLogger(l.Component("ledger")),
	)
}

// ProvideSizer creates the risk-bounded sizer.
func ProvideSizer(cfg *config.Config) *risk.Sizer {
	return risk.NewSizer(cfg.Risk)
}

// ProvideExecutor picks paper or live execution.
func ProvideExecutor(cfg *config.Config, l *applogger.Logger) domrepo.Executor {
	return polymarket.NewExecutor(cfg, l.Component("executor"))
}

// ProvidePriceStream creates the websocket price stream, or nil when it is disabled.
func ProvidePriceStream(cfg *config.Config, l *applogger.Logger) *binance.PriceStream {
	if !cfg.Trading.PriceEnabled || !cfg.Feeds.Binance.StreamEnabled {
		return nil
	}
	s := binance.NewPriceStream(cfg.Feeds.Binance)
	s.SetLogger(l.Component("binance_stream"))
	return s
}

// ProvideMarketDataFeed creates the rate-limited Binance REST feed.
func ProvideMarketDataFeed(cfg *config.Config, stream *binance.PriceStream, l *applogger.Logger) domrepo.MarketDataFeed {
	c := binance.NewClient(cfg.Feeds.Binance, ratelimit.New())
	c.SetLogger(l.Component("binance"))
	if stream != nil {
		c.AttachStream(stream)
	}
	return c
}

// ProvideForecastFeed creates the cached Open-Meteo client.
func ProvideForecastFeed(cfg *config.Config, c cache.Service, l *applogger.Logger) domrepo.ForecastFeed {
	f := openmeteo.NewClient(cfg.Feeds.OpenMeteo, c)
	f.SetLogger(l.Component("openmeteo"))
	return f
}

// ProvideMarketCatalog creates the Gamma/CLOB market catalog.
func ProvideMarketCatalog(cfg *config.Config, c cache.Service, l *applogger.Logger) domrepo.MarketCatalog {
	cat := polymarket.NewCatalog(cfg.Feeds.Gamma, cfg.Feeds.CLOB, cfg.Scan.MarketLimit, c)
	cat.SetLogger(l.Component("catalog"))
	return cat
}

// ProvideTrader creates the sizing and execution use case.
func ProvideTrader(
	sizer *risk.Sizer,
	exec domrepo.Executor,
	led *ledger.Ledger,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.Trader {
	t := usecase.NewTrader(sizer, exec, led, m)
	t.SetLogger(l.Component("trader"))
	return t
}

// ProvideStrategies builds the enabled evaluators with their scan intervals.
func ProvideStrategies(
	cfg *config.Config,
	catalog domrepo.MarketCatalog,
	feed domrepo.MarketDataFeed,
	forecast domrepo.ForecastFeed,
	l *applogger.Logger,
) []usecase.Strategy {
	qp := parser.New()
	selector := edge.NewSelector(cfg.Risk.MinEdge)

	var out []usecase.Strategy
	if cfg.Trading.PriceEnabled {
		ev := usecase.NewPriceEvaluator(catalog, feed, qp,
			features.NewEngine(cfg.Indicators),
			probability.NewPriceModel(cfg.PriceModel),
			selector, cfg.PriceModel)
		ev.SetLogger(l.Component("price"))
		out = append(out, usecase.Strategy{Evaluator: ev, Interval: cfg.Scan.PriceInterval})
	}
	if cfg.Trading.WeatherEnabled {
		ev := usecase.NewWeatherEvaluator(catalog, forecast, qp,
			probability.NewWeatherModel(cfg.WeatherModel),
			selector, cfg.WeatherModel)
		ev.SetLogger(l.Component("weather"))
		out = append(out, usecase.Strategy{Evaluator: ev, Interval: cfg.Scan.WeatherInterval})
	}
	return out
}

// ProvideScanner creates the scan loop, archiving signals to ClickHouse when enabled.
func ProvideScanner(
	cfg *config.Config,
	strategies []usecase.Strategy,
	trader *usecase.Trader,
	ch *pkgch.Client,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.Scanner {
	var opts []usecase.ScannerOption
	if ch != nil {
		opts = append(opts, usecase.WithSignalArchive(internalrepo.NewClickHouseSignalArchive(ch, cfg.ClickHouse.Database)))
	}
	s := usecase.NewScanner(strategies, trader, m, opts...)
	s.SetLogger(l.Component("scanner"))
	return s
}

// ProvideHTTPServer creates the portfolio API server, or nil when it is disabled.
func ProvideHTTPServer(
	cfg *config.Config,
	led *ledger.Ledger,
	sizer *risk.Sizer,
	exec domrepo.Executor,
	l *applogger.Logger,
) *xhttp.Server {
	if !cfg.Server.Enabled {
		return nil
	}
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	h := api.NewPortfolioEchoHandler(l.Component("api"), led, sizer, exec.Mode())
	return xhttp.NewServer(h,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(l),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	infra *server.Infra,
	led *ledger.Ledger,
	scanner *usecase.Scanner,
	stream *binance.PriceStream,
	httpServer *xhttp.Server,
) *server.App {
	return server.New(cfg, l, infra, led, scanner, stream, httpServer)
}
