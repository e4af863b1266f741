//go:build wireinject
// +build wireinject

package di

import (
	"MarketPulse/pkg/config"
	"MarketPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisCache,
		ProvideCache,
		ProvideKafkaProducer,
		ProvideQueue,
		ProvideQueueService,

		// Providers and fallback chain
		ProvideLimiter,
		ProvideSources,
		ProvideSynthetic,
		ProvideMarketStream,
		ProvideFeedPublisher,
		ProvideClock,

		// Use cases
		ProvideCollector,
		ProvideAnalyzer,
		ProvideStreamWarmer,
		ProvideMonitor,
		ProvideHealth,

		// HTTP surface and application server
		ProvideHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
