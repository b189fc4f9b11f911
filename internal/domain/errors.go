package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrFetchFailed is returned when a competitor page cannot be retrieved
	ErrFetchFailed = errors.New("page fetch failed")

	// ErrRateLimited is returned when the model API signals a rate limit
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrModelAPIFailure is returned when the model API request fails for any other reason
	ErrModelAPIFailure = errors.New("model API request failed")

	// ErrExtractionFailed is returned when the model call is exhausted or not retryable
	ErrExtractionFailed = errors.New("product extraction failed")

	// ErrNoProducts is returned when extraction succeeded but yielded no records
	ErrNoProducts = errors.New("no products extracted")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrTooManyURLs is returned when a batch exceeds the configured URL limit
	ErrTooManyURLs = errors.New("too many URLs in batch")

	// ErrRunNotFound is returned when a scrape run is unknown or has expired
	ErrRunNotFound = errors.New("scrape run not found")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)

// FetchError describes an HTTP-level or network-level page fetch failure
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode == http.StatusForbidden {
		return fmt.Sprintf("403 Forbidden for %s. The site may block requests from cloud/data-center IPs. "+
			"Try running locally or use a URL that allows server access", e.URL)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrFetchFailed, e.Err}
}
