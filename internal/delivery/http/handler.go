package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/compintel/backend/internal/domain"
	"github.com/compintel/backend/internal/usecase"
)

// Scraper runs a batch of URLs through the extraction pipeline
type Scraper interface {
	Run(ctx context.Context, targets []domain.BatchTarget) (*domain.BatchResult, error)
}

// Reporter writes the narrative comparison of reconciled providers
type Reporter interface {
	Generate(ctx context.Context, views []domain.ProviderView, kind usecase.ReportKind) (string, error)
}

// HandlerConfig holds configuration for the HTTP handlers
type HandlerConfig struct {
	RunTTL         time.Duration
	BaselineDomain string
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	scraper  Scraper
	reporter Reporter
	runs     domain.RunRepository
	logger   *slog.Logger
	config   HandlerConfig
}

// NewHandler creates a new HTTP handler
func NewHandler(scraper Scraper, reporter Reporter, runs domain.RunRepository, logger *slog.Logger, config HandlerConfig) *Handler {
	if config.RunTTL <= 0 {
		config.RunTTL = time.Hour
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		scraper:  scraper,
		reporter: reporter,
		runs:     runs,
		logger:   logger,
		config:   config,
	}
}

// ScrapeRequest is the body of POST /api/v1/scrape
type ScrapeRequest struct {
	Targets  []domain.BatchTarget `json:"targets"`
	URLsText string               `json:"urls_text"`
}

// ScrapeResponse is returned once a batch has finished
type ScrapeResponse struct {
	RunID   string                            `json:"run_id"`
	Results map[string][]domain.ProductRecord `json:"results"`
	Errors  []domain.ScrapeError              `json:"errors"`
	Stats   domain.Summary                    `json:"stats"`
}

// ReportRequest is the optional body of POST /api/v1/runs/:id/report
type ReportRequest struct {
	Summary bool `json:"summary"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "compintel-backend",
		"version": "1.0.0",
	})
}

// Scrape runs a batch synchronously and stores it for follow-up requests
func (h *Handler) Scrape(c *gin.Context) {
	if h.scraper == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scraping is not configured"})
		return
	}

	var req ScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	targets := append(req.Targets, usecase.ParseTargetsText(req.URLsText)...)
	if len(targets) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one URL is required"})
		return
	}

	result, err := h.scraper.Run(c.Request.Context(), targets)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.runs.Set(c.Request.Context(), result.RunID, result, h.config.RunTTL); err != nil {
		h.logger.Warn("failed to store run", "run_id", result.RunID, "error", err)
	}

	c.JSON(http.StatusOK, ScrapeResponse{
		RunID:   result.RunID,
		Results: result.Results,
		Errors:  result.Errors,
		Stats:   result.Summary(),
	})
}

// GetRun returns a stored batch result
func (h *Handler) GetRun(c *gin.Context) {
	run, ok := h.loadRun(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run":   run,
		"stats": run.Summary(),
	})
}

// GetProviders returns the reconciled provider views of a run as JSON, or as
// YAML when format=yaml
func (h *Handler) GetProviders(c *gin.Context) {
	run, ok := h.loadRun(c)
	if !ok {
		return
	}

	views := usecase.BuildProviderViews(run.AllProducts(), h.config.BaselineDomain)

	if c.Query("format") == "yaml" {
		var buf bytes.Buffer
		if err := usecase.ExportProvidersYAML(&buf, views); err != nil {
			h.respondError(c, err)
			return
		}
		c.Data(http.StatusOK, "application/yaml; charset=utf-8", buf.Bytes())
		return
	}

	c.JSON(http.StatusOK, gin.H{"providers": views})
}

// GenerateReport asks the model for a narrative comparison of a run
func (h *Handler) GenerateReport(c *gin.Context) {
	if h.reporter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reporting is not configured"})
		return
	}

	run, ok := h.loadRun(c)
	if !ok {
		return
	}

	var req ReportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
	}

	kind := usecase.ReportFull
	if req.Summary {
		kind = usecase.ReportSummary
	}

	views := usecase.BuildProviderViews(run.AllProducts(), h.config.BaselineDomain)
	report, err := h.reporter.Generate(c.Request.Context(), views, kind)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id": run.RunID,
		"kind":   kind,
		"report": report,
	})
}

// DeleteRun discards a stored run before its TTL expires
func (h *Handler) DeleteRun(c *gin.Context) {
	id := c.Param("id")
	exists, err := h.runs.Exists(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !exists {
		h.respondError(c, domain.ErrRunNotFound)
		return
	}

	if err := h.runs.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ExportCSV streams the deduplicated products of a run as CSV
func (h *Handler) ExportCSV(c *gin.Context) {
	run, ok := h.loadRun(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := usecase.ExportProductsCSV(&buf, run.AllProducts()); err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="products-%s.csv"`, run.RunID))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// loadRun resolves the :id path parameter, writing a 404 when unknown
func (h *Handler) loadRun(c *gin.Context) (*domain.BatchResult, bool) {
	run, err := h.runs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	return run, true
}

// respondError maps domain errors to HTTP status codes
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrTooManyURLs):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrRunNotFound), errors.Is(err, domain.ErrCacheMiss):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrModelAPIFailure):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
