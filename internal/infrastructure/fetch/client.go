package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/compintel/backend/internal/domain"
)

// Page formats handed to extraction
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

// DefaultUserAgent mimics a desktop Chrome browser
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// embeddedDataSelector locates the JSON payload of a Next.js shell page
const embeddedDataSelector = "script#__NEXT_DATA__"

// browserHeaders are sent with every request alongside the user agent
var browserHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-GB,en;q=0.9",
	"DNT":                       "1",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
}

// Config holds configuration for the fetch client
type Config struct {
	Timeout   time.Duration
	UserAgent string
	Format    string
}

// Client retrieves competitor pages with browser-like headers
type Client struct {
	config    Config
	converter *md.Converter
	logger    *slog.Logger
}

// NewClient creates a new page fetch client
func NewClient(config Config, logger *slog.Logger) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.Format == "" {
		config.Format = FormatHTML
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		config:    config,
		converter: md.NewConverter("", true, nil),
		logger:    logger,
	}
}

// Fetch returns the text of the page at url. Pages that embed their data in a
// __NEXT_DATA__ script return that JSON instead of the markup. HTTP error
// statuses and network failures are reported as *domain.FetchError.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	c.logger.Info("fetching page", "url", url)

	var body []byte
	var statusCode int

	collector := colly.NewCollector(
		colly.UserAgent(c.config.UserAgent),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	collector.SetRequestTimeout(c.config.Timeout)

	collector.OnRequest(func(r *colly.Request) {
		for k, v := range browserHeaders {
			r.Headers.Set(k, v)
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		body = r.Body
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
	})

	if err := collector.Visit(url); err != nil {
		fetchErr := &domain.FetchError{URL: url, StatusCode: statusCode, Err: err}
		c.logger.Error("page fetch failed", "url", url, "status", statusCode, "error", err)
		return "", fetchErr
	}
	if statusCode >= 400 {
		return "", &domain.FetchError{URL: url, StatusCode: statusCode, Err: errors.New("unexpected status")}
	}

	html := string(body)
	if data, ok := ExtractEmbeddedData(html); ok {
		c.logger.Info("using embedded page data", "url", url, "bytes", len(data))
		return data, nil
	}

	if c.config.Format == FormatMarkdown {
		markdown, err := c.converter.ConvertString(html)
		if err != nil {
			c.logger.Warn("markdown conversion failed, using raw HTML", "url", url, "error", err)
			return html, nil
		}
		return markdown, nil
	}

	c.logger.Info("fetched page", "url", url, "bytes", len(body))
	return html, nil
}

// ExtractEmbeddedData returns the compacted JSON payload of a __NEXT_DATA__
// script when the page carries one
func ExtractEmbeddedData(html string) (string, bool) {
	if !strings.Contains(html, "__NEXT_DATA__") {
		return "", false
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}

	raw := strings.TrimSpace(doc.Find(embeddedDataSelector).First().Text())
	if raw == "" {
		return "", false
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(raw)); err != nil {
		return "", false
	}
	return compact.String(), true
}

var _ domain.PageFetcher = (*Client)(nil)
