package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ValueFlow/internal/usecase"
	pkgch "ValueFlow/pkg/clickhouse"
	"ValueFlow/pkg/config"
	xhttp "ValueFlow/pkg/http"
	pkgkafka "ValueFlow/pkg/kafka"
	applogger "ValueFlow/pkg/logger"
	"ValueFlow/pkg/queue"
)

// App encapsulates the entire application lifecycle: the HTTP API, the
// periodic window loop, and the optional feed, Kafka, and job queue workers.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	handler    xhttp.Handler
	proc       *usecase.WindowProcessor
	collector  *usecase.BatchCollector
	runner     *usecase.WindowRunner
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	jobs       *queue.RedisQueue
	chClient   *pkgch.Client
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	proc *usecase.WindowProcessor,
	collector *usecase.BatchCollector,
	runner *usecase.WindowRunner,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	jobs *queue.RedisQueue,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:       cfg,
		l:         l,
		handler:   handler,
		proc:      proc,
		collector: collector,
		runner:    runner,
		consumer:  consumer,
		kh:        kh,
		jobs:      jobs,
		chClient:  chClient,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	}
	if a.cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithRequestMetrics(500*time.Millisecond))
		if a.cfg.Metrics.Path != "" {
			opts = append(opts, xhttp.WithMetricsPath(a.cfg.Metrics.Path))
		}
	}
	a.httpServer = xhttp.NewServer(a.handler, a.l, opts...)

	// Start job queue workers
	if a.jobs != nil {
		if err := a.jobs.Start(); err != nil {
			a.l.Error("job queue start error", applogger.Error(err))
		} else {
			a.l.Info("job queue started")
		}
	}

	// Start feed collector if configured
	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				a.l.Error("collector error", applogger.Error(err))
			}
		}()
		a.l.Info("feed collector started", applogger.Strings("sources", a.cfg.Feed.Sources))
	}

	// Start consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start the window loop
	a.runner.Start(ctx)
	a.l.Info("window runner started",
		applogger.String("base", a.cfg.Engine.BaseSymbol),
		applogger.Duration("span", a.cfg.Engine.WindowSpan))

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop the window loop first so no new window starts mid-shutdown
	if err := a.runner.Stop(shutdownCtx); err != nil {
		a.l.Warn("window runner stop error", applogger.Error(err))
	}

	// Stop feed collector (pipeline + stream)
	if a.collector != nil {
		if err := a.collector.Stop(); err != nil {
			a.l.Warn("collector stop error", applogger.Error(err))
		}
	}

	// Stop consumer
	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Stop job queue workers
	if a.jobs != nil {
		if err := a.jobs.Stop(shutdownCtx); err != nil {
			a.l.Warn("job queue stop error", applogger.Error(err))
		}
	}

	// Shutdown HTTP server
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	// Close processor resources (sink + publisher)
	if a.proc != nil {
		a.proc.Close()
	}

	// Close infrastructure clients
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
