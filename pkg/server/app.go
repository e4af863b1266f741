package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	drepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/usecase"
	"MarketPulse/pkg/config"
	xhttp "MarketPulse/pkg/http"
	applogger "MarketPulse/pkg/logger"
	pkgqueue "MarketPulse/pkg/queue"
)

// App owns the process lifecycle: it starts the ops server and the optional
// background services, blocks until a shutdown signal, and stops everything
// in reverse start order.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	handler    xhttp.Handler
	httpServer *xhttp.Server

	warmer  *usecase.StreamWarmer
	monitor *usecase.Monitor
	queue   *pkgqueue.RedisQueue
	pub     drepo.Publisher
}

// New creates the app. warmer, monitor, queue, and pub may be nil when the
// matching feature is disabled.
func New(cfg *config.Config, log *applogger.Logger, handler xhttp.Handler, warmer *usecase.StreamWarmer, monitor *usecase.Monitor, queue *pkgqueue.RedisQueue, pub drepo.Publisher) *App {
	return &App{
		cfg:     cfg,
		log:     log,
		handler: handler,
		warmer:  warmer,
		monitor: monitor,
		queue:   queue,
		pub:     pub,
	}
}

// Run starts the service and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverOpts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	}
	if a.cfg.Metrics.Enabled {
		serverOpts = append(serverOpts, xhttp.WithRequestMetrics(a.log, time.Second))
	}
	a.httpServer = xhttp.NewServer(a.handler, serverOpts...)

	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			return fmt.Errorf("queue start: %w", err)
		}
	}

	// The warmer is an optimization; a dead stream leaves the fallback
	// chain fully functional, so startup continues.
	if a.warmer != nil {
		if err := a.warmer.Start(ctx); err != nil {
			a.log.Error("stream warmer start failed", applogger.Error(err))
		}
	}

	if a.monitor != nil {
		a.monitor.Start(ctx)
	}

	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("http start: %w", err)
	}
	a.log.Info("service started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Strings("symbols", a.cfg.Collector.Symbols))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown stops services in reverse start order, bounded by the configured
// shutdown timeout. The publisher closes last so final pipeline flushes can
// still reach the feed.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.monitor != nil {
		a.monitor.Stop()
	}
	if a.warmer != nil {
		if err := a.warmer.Shutdown(ctx); err != nil {
			a.log.Warn("stream warmer stop error", applogger.Error(err))
		}
	}
	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.log.Warn("queue stop error", applogger.Error(err))
		}
	}
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	if a.pub != nil {
		if err := a.pub.Close(); err != nil {
			a.log.Warn("publisher close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
