//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"
	"profmon/internal"
	"profmon/internal/controllers"
	"profmon/internal/fetch"
	"profmon/internal/notify"
	"profmon/internal/providers"
	"profmon/internal/runner"
	"profmon/internal/schedule"
	"profmon/internal/store"
	"profmon/internal/structures"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, func(), error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,
		providers.NewHTTPClientProvider,

		store.NewZstdCompressor,
		store.NewStateStore,
		fetch.NewFetcher,
		notify.NewHub,
		notify.NewNotifier,
		schedule.NewFromConfig,
		livenessObservers,
		runner.NewCoordinator,
		wire.Bind(new(runner.Dispatcher), new(*notify.Dispatcher)),
		wire.Bind(new(controllers.TargetRegistry), new(*runner.Coordinator)),
		wire.Bind(new(controllers.DeliveryStats), new(*notify.Dispatcher)),

		controllers.NewApiController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil, nil
}
