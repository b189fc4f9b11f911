package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/compintel/backend/config"
	"github.com/compintel/backend/internal/app"
	httpDelivery "github.com/compintel/backend/internal/delivery/http"
	"github.com/compintel/backend/internal/infrastructure/cache"
	"github.com/compintel/backend/internal/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.SetDefault(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	logger.Info("starting compintel backend",
		"version", "1.0.0",
		"environment", cfg.Server.Environment,
		"port", cfg.Server.Port,
		"model", cfg.Anthropic.Model,
		"fetch_format", cfg.Fetch.Format,
		"request_delay", cfg.Scrape.RequestDelay,
		"max_urls", cfg.Scrape.MaxURLs,
		"run_ttl", cfg.Cache.TTL,
	)

	pipeline := app.New(cfg, logger, func(url string, index, total int) {
		logger.Info("scraping", "url", url, "index", index, "total", total)
	})

	runs := cache.NewRunStore()
	defer runs.Close()
	pipeline.Metrics.TrackRunStore(runs.Size)

	handler := httpDelivery.NewHandler(pipeline.Coordinator, pipeline.Reporter, runs,
		logger.With("component", "http"),
		httpDelivery.HandlerConfig{
			RunTTL:         cfg.Cache.TTL,
			BaselineDomain: cfg.Report.BaselineDomain,
		})

	router := httpDelivery.SetupRouter(cfg, handler, pipeline.Metrics.Handler(), logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}
