package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/compintel/backend/internal/domain"
)

// rawSampleLen bounds the response excerpt logged when parsing fails
const rawSampleLen = 800

// rateLimitPattern recognises rate-limit signals carried only in error text
var rateLimitPattern = regexp.MustCompile(`(?i)rate[\s_-]?limit|too many requests|\b(status|status code|http)[\s:=]*429\b`)

// ExtractionConfig holds configuration for the extraction service
type ExtractionConfig struct {
	MaxChars        int
	RetryMaxChars   int
	MaxOutputTokens int
	MaxAttempts     int
	BackoffSchedule []time.Duration
}

// ExtractionService turns page text into product records with one model call,
// retrying on rate limits and, once, on empty output
type ExtractionService struct {
	model   domain.ModelClient
	pacer   domain.Pacer
	metrics domain.MetricsRecorder
	logger  *slog.Logger
	config  ExtractionConfig
}

// NewExtractionService creates a new extraction service with dependencies
func NewExtractionService(
	model domain.ModelClient,
	pacer domain.Pacer,
	metrics domain.MetricsRecorder,
	logger *slog.Logger,
	config ExtractionConfig,
) *ExtractionService {
	if config.MaxChars <= 0 {
		config.MaxChars = 60000
	}
	if config.RetryMaxChars <= 0 || config.RetryMaxChars >= config.MaxChars {
		config.RetryMaxChars = config.MaxChars / 2
	}
	if config.MaxOutputTokens <= 0 {
		config.MaxOutputTokens = 2000
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if len(config.BackoffSchedule) == 0 {
		config.BackoffSchedule = []time.Duration{10 * time.Second, 20 * time.Second, 40 * time.Second}
	}
	if metrics == nil {
		metrics = domain.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &ExtractionService{
		model:   model,
		pacer:   pacer,
		metrics: metrics,
		logger:  logger,
		config:  config,
	}
}

// Extract returns the normalized product records found in pageText.
// A failed model call is reported as an error with no records; a response
// that cannot be parsed yields no records and no error.
func (s *ExtractionService) Extract(ctx context.Context, pageText, pageURL string) ([]domain.ProductRecord, error) {
	records, response, err := s.extractOnce(ctx, pageText, pageURL, s.config.MaxChars)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 && strings.TrimSpace(response) != "" && HasProductIndicators(pageText) {
		s.logger.Warn("no products parsed, retrying with smaller window",
			"url", pageURL,
			"max_chars", s.config.RetryMaxChars,
		)
		records, _, err = s.extractOnce(ctx, pageText, pageURL, s.config.RetryMaxChars)
		if err != nil {
			return nil, err
		}
	}

	s.logger.Info("extracted products", "url", pageURL, "count", len(records))
	return records, nil
}

// extractOnce windows the page, calls the model and parses its reply
func (s *ExtractionService) extractOnce(ctx context.Context, pageText, pageURL string, budget int) ([]domain.ProductRecord, string, error) {
	window := BuildWindow(pageText, budget)
	prompt := BuildExtractionPrompt(pageURL, window)

	response, err := s.completeWithBackoff(ctx, prompt, pageURL)
	if err != nil {
		return nil, "", err
	}

	items, strategy, ok := ParseProductResponse(response)
	if !ok {
		s.logger.Error("unable to parse model response as JSON array",
			"url", pageURL,
			"response_sample", sample(response, rawSampleLen),
		)
		s.metrics.ParseCompleted(StrategyNone, 0)
		return nil, response, nil
	}

	records := NormalizeRecords(items)
	s.metrics.ParseCompleted(strategy, len(records))
	s.logger.Debug("parsed model response",
		"url", pageURL,
		"strategy", strategy,
		"items", len(items),
		"records", len(records),
	)
	return records, response, nil
}

// completeWithBackoff calls the model, sleeping through the backoff schedule
// while the API reports rate limiting
func (s *ExtractionService) completeWithBackoff(ctx context.Context, prompt, pageURL string) (string, error) {
	for attempt := 1; ; attempt++ {
		response, err := s.model.Complete(ctx, prompt, s.config.MaxOutputTokens)
		if err == nil {
			s.metrics.ModelCallCompleted("success")
			return response, nil
		}

		if !IsRateLimitError(err) {
			s.metrics.ModelCallCompleted("error")
			s.logger.Error("model API error", "url", pageURL, "attempt", attempt, "error", err)
			return "", fmt.Errorf("%w: %w", domain.ErrExtractionFailed, err)
		}

		s.metrics.ModelCallCompleted("rate_limited")
		if attempt >= s.config.MaxAttempts {
			s.logger.Error("rate limit retries exhausted", "url", pageURL, "attempts", attempt, "error", err)
			return "", fmt.Errorf("%w: rate limited after %d attempts: %w", domain.ErrExtractionFailed, attempt, err)
		}

		wait := s.backoff(attempt)
		s.logger.Warn("rate limited, backing off",
			"url", pageURL,
			"attempt", attempt,
			"wait", wait,
		)
		s.metrics.RateLimitBackoff(wait)
		if err := s.pacer.Backoff(ctx, wait); err != nil {
			return "", fmt.Errorf("%w: %w", domain.ErrExtractionFailed, err)
		}
	}
}

// backoff returns the wait after the given failed attempt; the last entry of
// the schedule repeats
func (s *ExtractionService) backoff(attempt int) time.Duration {
	idx := min(attempt-1, len(s.config.BackoffSchedule)-1)
	return s.config.BackoffSchedule[idx]
}

// IsRateLimitError reports whether err signals API rate limiting, either
// through domain.ErrRateLimited or through its message
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, domain.ErrRateLimited) || rateLimitPattern.MatchString(err.Error())
}

// BuildExtractionPrompt asks the model for a bare JSON array of products
func BuildExtractionPrompt(pageURL, content string) string {
	return fmt.Sprintf(`You are a data extraction expert. Analyze the following HTML content from %s and extract ALL product/service offerings.

IMPORTANT: Return ONLY a valid JSON array, nothing else. No explanation, no markdown, just the JSON.

For each product/service, extract these fields:
- product_name: (string) Name of the product/service
- price_monthly: (string or null) Monthly price with currency symbol (e.g., "£15.50")
- price_annual: (string or null) Annual price with currency symbol (e.g., "£186")
- excess: (string or null) Excess/deductible amount
- features: (array of strings) List of features/coverage areas
- special_offers: (string or null) Promotional offers or discounts
- terms_conditions: (string or null) Important terms or restrictions
- category: (string) Product category/type

Return ONLY this format:
[
  {"product_name": "...", "price_monthly": "...", "price_annual": null, "excess": null, "features": ["..."], "special_offers": null, "terms_conditions": null, "category": "..."}
]

If no products found, return empty array: []

HTML Content:
%s
`, pageURL, content)
}

func sample(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return truncateRunes(s, n) + "..."
}
