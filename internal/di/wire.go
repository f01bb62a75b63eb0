//go:build wireinject
// +build wireinject

package di

import (
	"ValueFlow/pkg/config"
	"ValueFlow/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideCache,

		// Repositories
		ProvideValuationSink,
		ProvideResultPublisher,
		ProvideBatchFeed,

		// Engine
		ProvideRegistry,
		ProvideEngineSettings,
		ProvideWindowProcessor,

		// Use cases
		ProvideKafkaBatchHandler,
		ProvideBatchCollector,
		ProvideWindowRunner,
		ProvideJobQueue,

		// HTTP
		ProvideEngineHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
