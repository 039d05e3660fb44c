package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"profmon/internal/providers"
	"profmon/internal/runner"
	"profmon/internal/structures"
)

const shutdownGrace = 5 * time.Second

type App struct {
	WebServer   *http.Server
	coordinator *runner.Coordinator
	conf        *structures.Config
	logger      providers.Logger
}

func NewApp(conf *structures.Config, logger providers.Logger, router providers.RouterProviderInterface, metrics providers.MetricsProviderInterface, coordinator *runner.Coordinator) *App {
	app := &App{
		coordinator: coordinator,
		conf:        conf,
		logger:      logger,
	}
	if conf.WebServer.Enabled {
		app.WebServer = &http.Server{
			Addr: net.JoinHostPort(conf.WebServer.Host, strconv.Itoa(conf.WebServer.Port)),
			Handler: router.Handler(func(next http.Handler) http.Handler {
				return providers.MetricsMiddleware(metrics, next)
			}),
			ReadTimeout: 5 * time.Second,
			IdleTimeout: 60 * time.Second,
		}
	}
	return app
}

// Run blocks until a stop signal arrives or every target is terminal.
// SIGUSR1 rechecks all targets, SIGTRAP and SIGABRT raise and lower
// their intervals.
func (a *App) Run() error {
	a.logger.Infof(providers.TypeApp, "Starting %s with %d target(s)", a.conf.AppName, len(a.conf.Targets))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.coordinator.Start(ctx)

	serverErr := make(chan error, 1)
	if a.WebServer != nil {
		go func() {
			a.logger.Infof(providers.TypeApp, "Listening HTTP clients on %s", a.WebServer.Addr)
			if err := a.WebServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGTRAP, syscall.SIGABRT)
	defer signal.Stop(signals)

	var runErr error
loop:
	for {
		select {
		case sig := <-signals:
			switch sig {
			case syscall.SIGUSR1:
				a.coordinator.Broadcast(runner.CmdRecheck)
			case syscall.SIGTRAP:
				a.coordinator.Broadcast(runner.CmdIncreaseInterval)
			case syscall.SIGABRT:
				a.coordinator.Broadcast(runner.CmdDecreaseInterval)
			default:
				a.logger.Infof(providers.TypeApp, "Shutdown signal received")
				break loop
			}
		case <-a.coordinator.Done():
			a.logger.Infof(providers.TypeApp, "All targets are terminal")
			break loop
		case err := <-serverErr:
			runErr = fmt.Errorf("server error: %w", err)
			break loop
		}
	}

	cancel()
	// In-flight fetches finish within their own timeout.
	select {
	case <-a.coordinator.Done():
	case <-time.After(a.conf.Fetch.Timeout + shutdownGrace):
		a.logger.Warnf(providers.TypeApp, "Runners did not stop in time")
	}

	if a.WebServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer shutdownCancel()
		if err := a.WebServer.Shutdown(shutdownCtx); err != nil && runErr == nil {
			runErr = err
		}
	}
	a.logger.Infof(providers.TypeApp, "gracefully stopped")
	return runErr
}
