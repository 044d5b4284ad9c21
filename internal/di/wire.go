//go:build wireinject
// +build wireinject

package di

import (
	"PolyEdge/pkg/config"
	"PolyEdge/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideCache,
		ProvideKafkaProducer,
		ProvideClickHouseClient,
		ProvideInfra,

		// Ledger
		ProvideJournalBuffers,
		ProvideJournalSinks,
		ProvideStateStore,
		ProvideLedger,

		// Feeds and execution
		ProvidePriceStream,
		ProvideMarketDataFeed,
		ProvideForecastFeed,
		ProvideMarketCatalog,
		ProvideExecutor,

		// Use cases
		ProvideSizer,
		ProvideTrader,
		ProvideStrategies,
		ProvideScanner,

		// Application server
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}
