package domain

import (
	"context"
	"time"
)

// PageFetcher retrieves the text of a competitor page
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// ModelClient sends a single prompt to the language model and returns its free-text reply
type ModelClient interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// ProductExtractor turns the text of one page into normalized product records
type ProductExtractor interface {
	Extract(ctx context.Context, pageText, pageURL string) ([]ProductRecord, error)
}

// Pacer is the shared admission control for outbound model traffic.
// Wait gates each URL of a batch, Backoff sleeps after a rate-limit signal.
type Pacer interface {
	Wait(ctx context.Context) error
	Backoff(ctx context.Context, d time.Duration) error
}

// RunRepository stores completed scrape runs for the lifetime of a session
type RunRepository interface {
	Get(ctx context.Context, key string) (*BatchResult, error)
	Set(ctx context.Context, key string, value *BatchResult, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// MetricsRecorder receives pipeline outcome counts
type MetricsRecorder interface {
	FetchCompleted(outcome string)
	ModelCallCompleted(outcome string)
	ParseCompleted(strategy string, records int)
	RateLimitBackoff(wait time.Duration)
}

// NoopMetrics discards all observations
type NoopMetrics struct{}

func (NoopMetrics) FetchCompleted(string)          {}
func (NoopMetrics) ModelCallCompleted(string)      {}
func (NoopMetrics) ParseCompleted(string, int)     {}
func (NoopMetrics) RateLimitBackoff(time.Duration) {}
