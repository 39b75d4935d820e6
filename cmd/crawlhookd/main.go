// Package main is the entry point for crawlhookd: a local-first web-crawl
// job server. It wires the job store, event bus, webhook emitter, plugin
// registry, page driver, robots checker and the Crawler/Playground engines
// behind a single shared FIFO queue, then serves §6's HTTP surface.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmylchreest/crawlhook/internal/config"
	"github.com/jmylchreest/crawlhook/internal/engine"
	"github.com/jmylchreest/crawlhook/internal/eventbus"
	"github.com/jmylchreest/crawlhook/internal/httpapi"
	"github.com/jmylchreest/crawlhook/internal/logging"
	"github.com/jmylchreest/crawlhook/internal/pagedriver"
	"github.com/jmylchreest/crawlhook/internal/plugins"
	"github.com/jmylchreest/crawlhook/internal/queue"
	"github.com/jmylchreest/crawlhook/internal/robots"
	"github.com/jmylchreest/crawlhook/internal/store"
	"github.com/jmylchreest/crawlhook/internal/version"
	"github.com/jmylchreest/crawlhook/internal/webhook"
)

func main() {
	logger := logging.SetDefault()

	v := version.Get()
	logger.Info("starting crawlhookd",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	jobStore := store.New()
	bus := eventbus.New(logger)
	registry := plugins.NewRegistry()
	driver := pagedriver.NewCollyPageDriver()
	robotsChecker := robots.New("crawlhookbot/1.0")

	// Crawler and Playground are constructed with their Queue left nil:
	// the queue itself requires a Dispatcher, which requires these two
	// engines, so the reference is back-filled with SetQueue once the
	// queue exists.
	crawler := engine.NewCrawler(engine.CrawlerDeps{
		Store:   jobStore,
		Bus:     bus,
		Plugins: registry,
		Driver:  driver,
		Robots:  robotsChecker,
		Logger:  logger,
		Defaults: engine.CrawlDefaults{
			MaxDepth:             cfg.DefaultMaxDepth,
			MaxPages:             cfg.DefaultMaxPages,
			MaxRequestsPerMinute: cfg.DefaultMaxRequestsPerMinute,
			MaxConcurrency:       cfg.DefaultMaxConcurrency,
			PageTimeout:          cfg.DefaultPageTimeout,
			RequestTimeout:       cfg.DefaultRequestTimeout,
		},
	})
	playground := engine.NewPlayground(engine.PlaygroundDeps{
		Store:   jobStore,
		Bus:     bus,
		Plugins: registry,
		Logger:  logger,
	})

	dispatcher := engine.NewDispatcher(jobStore, crawler, playground)
	jobQueue := queue.New(dispatcher, cfg.QueueMaxDepth, logger)
	crawler.SetQueue(jobQueue)
	playground.SetQueue(jobQueue)

	emitter := webhook.New(logger, cfg.WebhookClientTimeout)
	emitter.Attach(bus, webhook.PayloadFor)

	router := httpapi.NewRouter(httpapi.Deps{
		Store:       jobStore,
		Queue:       jobQueue,
		Crawler:     crawler,
		Playground:  playground,
		Logger:      logger,
		CORSOrigins: cfg.CORSOrigins,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		<-sigChan

		logger.Info("shutting down server")
		jobQueue.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.WorkerShutdownGracePeriod)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
