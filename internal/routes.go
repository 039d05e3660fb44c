package internal

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"profmon/internal/controllers"
	"profmon/internal/notify"
	"profmon/internal/providers"
	"profmon/internal/runner"
	"profmon/internal/structures"
)

func InitRoutes(apiController *controllers.ApiController, healthController *controllers.HealthController, hub *notify.Hub, conf *structures.Config) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Get("/health", http.HandlerFunc(healthController.Health))
	if conf.Metrics.Enabled {
		routers.Get("/metrics", promhttp.Handler())
	}
	routers.Get("/targets", http.HandlerFunc(apiController.GetTargets))
	routers.Get("/targets/{username}", http.HandlerFunc(apiController.GetTarget))
	routers.Post("/targets/{username}/recheck", apiController.Control(runner.CmdRecheck))
	routers.Post("/targets/{username}/interval/increase", apiController.Control(runner.CmdIncreaseInterval))
	routers.Post("/targets/{username}/interval/decrease", apiController.Control(runner.CmdDecreaseInterval))
	routers.Post("/targets/{username}/stop", apiController.Control(runner.CmdStop))
	if conf.Notify.Dashboard.Enabled && hub != nil {
		routers.Get("/ws", hub)
	}
	return routers
}
