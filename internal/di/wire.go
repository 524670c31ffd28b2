//go:build wireinject
// +build wireinject

package di

import (
	"github.com/buckstrdr/candlestream/pkg/config"
	"github.com/buckstrdr/candlestream/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Engine
		ProvideTimeframes,
		ProvideEngine,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideCandleCache,
		ProvideMarketStream,

		// Repositories
		ProvideCandlePublisher,

		// Use cases
		ProvideTickProcessor,
		ProvideTickCollector,
		ProvideKafkaTicksHandler,
		ProvideBroadcaster,
		ProvideCandlesUseCase,

		// HTTP
		ProvideCandlesHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
