package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// BatchResult holds the outcome of one scrape run. Results are keyed by URL and
// Order keeps the input order of the URLs that produced records.
type BatchResult struct {
	RunID      string                     `json:"run_id" yaml:"run_id"`
	StartedAt  time.Time                  `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time                  `json:"finished_at" yaml:"finished_at"`
	URLs       []string                   `json:"urls" yaml:"urls"`
	Order      []string                   `json:"order" yaml:"order"`
	Results    map[string][]ProductRecord `json:"results" yaml:"results"`
	Errors     []ScrapeError              `json:"errors" yaml:"errors"`
}

// NewBatchResult creates an empty result for the given run
func NewBatchResult(runID string, urls []string) *BatchResult {
	return &BatchResult{
		RunID:   runID,
		URLs:    urls,
		Order:   make([]string, 0, len(urls)),
		Results: make(map[string][]ProductRecord),
		Errors:  make([]ScrapeError, 0),
	}
}

// AddProducts stores the records extracted from url
func (b *BatchResult) AddProducts(url string, records []ProductRecord) {
	if _, exists := b.Results[url]; !exists {
		b.Order = append(b.Order, url)
	}
	b.Results[url] = append(b.Results[url], records...)
}

// AddError records a per-URL failure
func (b *BatchResult) AddError(url string, err error) {
	b.Errors = append(b.Errors, ScrapeError{URL: url, Error: err.Error()})
}

// AllProducts flattens the records of every URL, in input order
func (b *BatchResult) AllProducts() []ProductRecord {
	var all []ProductRecord
	for _, url := range b.Order {
		all = append(all, b.Results[url]...)
	}
	return all
}

// Summary holds the statistics of a scrape run. Price aggregates only cover
// prices that could be parsed as numbers.
type Summary struct {
	TotalURLsScraped int      `json:"total_urls_scraped"`
	TotalProducts    int      `json:"total_products"`
	ErrorsCount      int      `json:"errors_count"`
	URLsWithData     int      `json:"urls_with_data"`
	AvgMonthlyPrice  *float64 `json:"avg_monthly_price"`
	MinMonthlyPrice  *float64 `json:"min_monthly_price"`
	MaxMonthlyPrice  *float64 `json:"max_monthly_price"`
	AvgAnnualPrice   *float64 `json:"avg_annual_price"`
	MinAnnualPrice   *float64 `json:"min_annual_price"`
	MaxAnnualPrice   *float64 `json:"max_annual_price"`
}

// Summary computes run statistics
func (b *BatchResult) Summary() Summary {
	products := b.AllProducts()

	urlsWithData := 0
	for _, records := range b.Results {
		if len(records) > 0 {
			urlsWithData++
		}
	}

	var monthly, annual []float64
	for _, p := range products {
		if v, ok := ParsePrice(StringValue(p.PriceMonthly)); ok {
			monthly = append(monthly, v)
		}
		if v, ok := ParsePrice(StringValue(p.PriceAnnual)); ok {
			annual = append(annual, v)
		}
	}

	m := Aggregate(monthly)
	a := Aggregate(annual)

	return Summary{
		TotalURLsScraped: len(b.Results),
		TotalProducts:    len(products),
		ErrorsCount:      len(b.Errors),
		URLsWithData:     urlsWithData,
		AvgMonthlyPrice:  m.Avg,
		MinMonthlyPrice:  m.Min,
		MaxMonthlyPrice:  m.Max,
		AvgAnnualPrice:   a.Avg,
		MinAnnualPrice:   a.Min,
		MaxAnnualPrice:   a.Max,
	}
}

var priceNumberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ParsePrice extracts the first numeric token of a money-like string.
// Thousands separators are ignored, so "£1,200" parses as 1200.
func ParsePrice(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	match := priceNumberPattern.FindString(strings.ReplaceAll(s, ",", ""))
	if match == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Aggregate computes min/max/average of values; all fields are nil for an empty slice
func Aggregate(values []float64) PriceStats {
	if len(values) == 0 {
		return PriceStats{}
	}
	lo, hi, sum := values[0], values[0], 0.0
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
		sum += v
	}
	avg := sum / float64(len(values))
	return PriceStats{Min: &lo, Max: &hi, Avg: &avg}
}
