package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/compintel/backend/internal/domain"
)

const namespace = "compintel"

// Collector records pipeline outcomes as Prometheus metrics
type Collector struct {
	registry       *prometheus.Registry
	fetches        *prometheus.CounterVec
	modelCalls     *prometheus.CounterVec
	parses         *prometheus.CounterVec
	parsedRecords  prometheus.Counter
	backoffSeconds prometheus.Histogram
}

// NewCollector creates a collector with its own registry
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_fetches_total",
			Help:      "Page fetches by outcome.",
		}, []string{"outcome"}),
		modelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_calls_total",
			Help:      "Model API calls by outcome.",
		}, []string{"outcome"}),
		parses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "response_parses_total",
			Help:      "Model responses parsed, by winning strategy.",
		}, []string{"strategy"}),
		parsedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parsed_records_total",
			Help:      "Product records recovered from model responses.",
		}),
		backoffSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rate_limit_backoff_seconds",
			Help:      "Backoff waits after model rate-limit signals.",
			Buckets:   []float64{1, 5, 10, 20, 40, 80},
		}),
	}

	c.registry.MustRegister(
		c.fetches,
		c.modelCalls,
		c.parses,
		c.parsedRecords,
		c.backoffSeconds,
	)
	return c
}

func (c *Collector) FetchCompleted(outcome string) {
	c.fetches.WithLabelValues(outcome).Inc()
}

func (c *Collector) ModelCallCompleted(outcome string) {
	c.modelCalls.WithLabelValues(outcome).Inc()
}

func (c *Collector) ParseCompleted(strategy string, records int) {
	c.parses.WithLabelValues(strategy).Inc()
	c.parsedRecords.Add(float64(records))
}

func (c *Collector) RateLimitBackoff(wait time.Duration) {
	c.backoffSeconds.Observe(wait.Seconds())
}

// TrackRunStore exports the number of stored runs as a gauge read from size
// at scrape time
func (c *Collector) TrackRunStore(size func() int) {
	c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stored_runs",
		Help:      "Scrape runs held in the run store.",
	}, func() float64 { return float64(size()) }))
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

var _ domain.MetricsRecorder = (*Collector)(nil)
