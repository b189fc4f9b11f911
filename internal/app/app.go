// Package app wires configuration into the scrape, extraction and report
// pipeline shared by the HTTP server and the command-line tool.
package app

import (
	"log/slog"

	"github.com/compintel/backend/config"
	"github.com/compintel/backend/internal/infrastructure/anthropic"
	"github.com/compintel/backend/internal/infrastructure/fetch"
	"github.com/compintel/backend/internal/infrastructure/metrics"
	"github.com/compintel/backend/internal/infrastructure/throttle"
	"github.com/compintel/backend/internal/usecase"
)

// App holds the wired pipeline components
type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	Metrics     *metrics.Collector
	Pacer       *throttle.Pacer
	Fetcher     *fetch.Client
	Model       *anthropic.Client
	Extractor   *usecase.ExtractionService
	Coordinator *usecase.ScrapeCoordinator
	Reporter    *usecase.ReportService
}

// New builds every component from cfg. The pacer is shared by the batch loop
// and rate-limit backoff so both draw on the same admission budget.
func New(cfg *config.Config, logger *slog.Logger, onProgress usecase.ProgressFunc) *App {
	if logger == nil {
		logger = slog.Default()
	}

	collector := metrics.NewCollector()
	pacer := throttle.NewPacer(cfg.Scrape.RequestDelay)

	fetcher := fetch.NewClient(fetch.Config{
		Timeout:   cfg.Fetch.Timeout,
		UserAgent: cfg.Fetch.UserAgent,
		Format:    cfg.Fetch.Format,
	}, logger.With("component", "fetch"))

	model := anthropic.NewClient(anthropic.Config{
		APIKey:  cfg.Anthropic.APIKey,
		BaseURL: cfg.Anthropic.BaseURL,
		Model:   cfg.Anthropic.Model,
		Timeout: cfg.Anthropic.Timeout,
	}, logger.With("component", "anthropic"))

	extractor := usecase.NewExtractionService(model, pacer, collector, logger.With("component", "extraction"),
		usecase.ExtractionConfig{
			MaxChars:        cfg.Extraction.MaxChars,
			RetryMaxChars:   cfg.Extraction.RetryMaxChars,
			MaxOutputTokens: cfg.Extraction.MaxOutputTokens,
			MaxAttempts:     cfg.Extraction.MaxAttempts,
			BackoffSchedule: cfg.Extraction.BackoffSchedule,
		})

	coordinator := usecase.NewScrapeCoordinator(fetcher, extractor, pacer, collector, logger.With("component", "coordinator"),
		usecase.CoordinatorConfig{
			MaxURLs:    cfg.Scrape.MaxURLs,
			OnProgress: onProgress,
		})

	reporter := usecase.NewReportService(model, logger.With("component", "report"), usecase.ReportConfig{
		BaselineDomain:   cfg.Report.BaselineDomain,
		MaxTokens:        cfg.Report.MaxTokens,
		SummaryMaxTokens: cfg.Report.SummaryMaxTokens,
	})

	return &App{
		Config:      cfg,
		Logger:      logger,
		Metrics:     collector,
		Pacer:       pacer,
		Fetcher:     fetcher,
		Model:       model,
		Extractor:   extractor,
		Coordinator: coordinator,
		Reporter:    reporter,
	}
}
