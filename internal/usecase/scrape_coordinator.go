package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/compintel/backend/internal/domain"
)

// ProgressFunc is called before each URL of a batch is processed
type ProgressFunc func(url string, index, total int)

// CoordinatorConfig holds configuration for the scrape coordinator
type CoordinatorConfig struct {
	MaxURLs    int
	OnProgress ProgressFunc
}

// ScrapeCoordinator runs fetch, extraction and provenance tagging over a batch
// of URLs, one URL at a time
type ScrapeCoordinator struct {
	fetcher   domain.PageFetcher
	extractor domain.ProductExtractor
	pacer     domain.Pacer
	metrics   domain.MetricsRecorder
	logger    *slog.Logger
	config    CoordinatorConfig
	now       func() time.Time
}

// NewScrapeCoordinator creates a new coordinator with dependencies
func NewScrapeCoordinator(
	fetcher domain.PageFetcher,
	extractor domain.ProductExtractor,
	pacer domain.Pacer,
	metrics domain.MetricsRecorder,
	logger *slog.Logger,
	config CoordinatorConfig,
) *ScrapeCoordinator {
	if metrics == nil {
		metrics = domain.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &ScrapeCoordinator{
		fetcher:   fetcher,
		extractor: extractor,
		pacer:     pacer,
		metrics:   metrics,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// Run processes every target in order and returns the accumulated results.
// Per-URL failures are recorded in the result and never abort the batch; an
// error is only returned when the batch itself is invalid.
func (c *ScrapeCoordinator) Run(ctx context.Context, targets []domain.BatchTarget) (*domain.BatchResult, error) {
	targets = uniqueTargets(targets)
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: no URLs to scrape", domain.ErrInvalidRequest)
	}
	if c.config.MaxURLs > 0 && len(targets) > c.config.MaxURLs {
		return nil, fmt.Errorf("%w: %d URLs exceeds limit of %d", domain.ErrTooManyURLs, len(targets), c.config.MaxURLs)
	}

	urls := make([]string, len(targets))
	for i, t := range targets {
		urls[i] = t.URL
	}

	result := domain.NewBatchResult(uuid.NewString(), urls)
	result.StartedAt = c.now()
	logger := c.logger.With("run_id", result.RunID)
	logger.Info("starting scrape run", "urls", len(targets))

	for i, target := range targets {
		if err := c.pacer.Wait(ctx); err != nil {
			for _, skipped := range targets[i:] {
				result.AddError(skipped.URL, err)
			}
			logger.Warn("scrape run cancelled", "remaining", len(targets)-i, "error", err)
			break
		}

		if c.config.OnProgress != nil {
			c.config.OnProgress(target.URL, i, len(targets))
		}

		records, err := c.scrapeOne(ctx, target)
		if err != nil {
			logger.Error("failed to scrape URL", "url", target.URL, "error", err)
			result.AddError(target.URL, err)
			continue
		}
		result.AddProducts(target.URL, records)
	}

	result.FinishedAt = c.now()
	logger.Info("scrape run finished",
		"urls_with_data", len(result.Results),
		"errors", len(result.Errors),
		"duration", result.FinishedAt.Sub(result.StartedAt),
	)
	return result, nil
}

// scrapeOne fetches and extracts a single target and tags its records
func (c *ScrapeCoordinator) scrapeOne(ctx context.Context, target domain.BatchTarget) ([]domain.ProductRecord, error) {
	pageText, err := c.fetcher.Fetch(ctx, target.URL)
	if err != nil {
		c.metrics.FetchCompleted("error")
		return nil, err
	}
	c.metrics.FetchCompleted("success")

	records, err := c.extractor.Extract(ctx, pageText, target.URL)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, domain.ErrNoProducts
	}

	tagged := make([]domain.ProductRecord, len(records))
	for i, record := range records {
		tagged[i] = record.WithProvenance(target.URL, strings.TrimSpace(target.Competitor))
	}
	return tagged, nil
}

// uniqueTargets trims URLs, drops blanks and keeps the first target of each URL
func uniqueTargets(targets []domain.BatchTarget) []domain.BatchTarget {
	seen := make(map[string]bool, len(targets))
	unique := make([]domain.BatchTarget, 0, len(targets))
	for _, t := range targets {
		t.URL = strings.TrimSpace(t.URL)
		if t.URL == "" || seen[t.URL] {
			continue
		}
		seen[t.URL] = true
		unique = append(unique, t)
	}
	return unique
}
