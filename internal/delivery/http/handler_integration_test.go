package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/compintel/backend/config"
	"github.com/compintel/backend/internal/domain"
	"github.com/compintel/backend/internal/infrastructure/cache"
	"github.com/compintel/backend/internal/usecase"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type mockScraper struct {
	gotTargets []domain.BatchTarget
	err        error
}

func (m *mockScraper) Run(ctx context.Context, targets []domain.BatchTarget) (*domain.BatchResult, error) {
	m.gotTargets = targets
	if m.err != nil {
		return nil, m.err
	}

	urls := make([]string, len(targets))
	for i, t := range targets {
		urls[i] = t.URL
	}
	result := domain.NewBatchResult(fmt.Sprintf("run-%d", len(targets)), urls)
	for _, t := range targets {
		if strings.Contains(t.URL, "blocked") {
			result.AddError(t.URL, &domain.FetchError{URL: t.URL, StatusCode: http.StatusForbidden, Err: errors.New("Forbidden")})
			continue
		}
		price := "£12"
		record := domain.ProductRecord{
			ProductName:  "Boiler Cover",
			PriceMonthly: &price,
			Features:     []string{"24/7 support"},
			Category:     "Boiler",
		}
		result.AddProducts(t.URL, []domain.ProductRecord{record.WithProvenance(t.URL, t.Competitor)})
	}
	return result, nil
}

type mockReporter struct {
	gotKind  usecase.ReportKind
	gotViews []domain.ProviderView
	err      error
}

func (m *mockReporter) Generate(ctx context.Context, views []domain.ProviderView, kind usecase.ReportKind) (string, error) {
	m.gotKind = kind
	m.gotViews = views
	if m.err != nil {
		return "", m.err
	}
	return "## 1. EXECUTIVE SUMMARY\nOne provider.", nil
}

type testServer struct {
	router   *gin.Engine
	scraper  *mockScraper
	reporter *mockReporter
	runs     *cache.RunStore
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:*"},
		},
		RateLimit: config.RateLimitConfig{PerIP: 100},
	}

	s := &testServer{
		scraper:  &mockScraper{},
		reporter: &mockReporter{},
		runs:     cache.NewRunStore(),
	}
	t.Cleanup(s.runs.Close)

	handler := NewHandler(s.scraper, s.reporter, s.runs, nil, HandlerConfig{
		RunTTL:         time.Minute,
		BaselineDomain: "britishgas.co.uk",
	})
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("compintel_page_fetches_total 0\n"))
	})
	s.router = SetupRouter(cfg, handler, metrics, nil)
	return s
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) scrape(t *testing.T, body string) ScrapeResponse {
	t.Helper()
	w := s.do(http.MethodPost, "/api/v1/scrape", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ScrapeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthCheckEndpoint(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
	assert.Equal(t, "compintel-backend", response["service"])
	assert.NotEmpty(t, response["version"])

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		assert.Equal(t, http.StatusNotFound, s.do(method, "/health", "").Code, method)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "compintel_page_fetches_total")
}

func TestScrapeEndpoint(t *testing.T) {
	t.Run("runs targets and text URLs together", func(t *testing.T) {
		s := setupTestServer(t)

		resp := s.scrape(t, `{
			"targets": [{"url": "https://www.example.com/boiler", "competitor": "Example"}],
			"urls_text": "https://www.example.com/heating\n\nhttps://blocked.example.org/plans\n"
		}`)

		require.Len(t, s.scraper.gotTargets, 3)
		assert.Equal(t, "Example", s.scraper.gotTargets[0].Competitor)
		assert.Equal(t, "https://www.example.com/heating", s.scraper.gotTargets[1].URL)

		assert.NotEmpty(t, resp.RunID)
		assert.Len(t, resp.Results, 2)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "https://blocked.example.org/plans", resp.Errors[0].URL)
		assert.Contains(t, resp.Errors[0].Error, "403 Forbidden")
		assert.Equal(t, 2, resp.Stats.TotalProducts)
		assert.Equal(t, 1, resp.Stats.ErrorsCount)
		require.NotNil(t, resp.Stats.AvgMonthlyPrice)
		assert.Equal(t, 12.0, *resp.Stats.AvgMonthlyPrice)

		_, err := s.runs.Get(context.Background(), resp.RunID)
		assert.NoError(t, err, "run should be stored")
	})

	t.Run("rejects empty batch", func(t *testing.T) {
		s := setupTestServer(t)

		w := s.do(http.MethodPost, "/api/v1/scrape", `{"urls_text": "  \n "}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Nil(t, s.scraper.gotTargets)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		s := setupTestServer(t)

		w := s.do(http.MethodPost, "/api/v1/scrape", `{"targets": "nope"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("maps too many URLs to 400", func(t *testing.T) {
		s := setupTestServer(t)
		s.scraper.err = fmt.Errorf("%w: 60 URLs exceeds limit of 50", domain.ErrTooManyURLs)

		w := s.do(http.MethodPost, "/api/v1/scrape", `{"urls_text": "https://a.example.com"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "exceeds limit")
	})
}

func TestRunEndpoints(t *testing.T) {
	s := setupTestServer(t)
	resp := s.scrape(t, `{"urls_text": "https://www.britishgas.co.uk/cover\nhttps://www.britishgas.co.uk/boiler\nhttps://www.example.com/plans"}`)
	base := "/api/v1/runs/" + resp.RunID

	t.Run("get run", func(t *testing.T) {
		w := s.do(http.MethodGet, base, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), resp.RunID)
	})

	t.Run("unknown run is 404", func(t *testing.T) {
		for _, path := range []string{
			"/api/v1/runs/missing",
			"/api/v1/runs/missing/providers",
			"/api/v1/runs/missing/export.csv",
		} {
			assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, path, "").Code, path)
		}
	})

	t.Run("providers are reconciled per domain", func(t *testing.T) {
		w := s.do(http.MethodGet, base+"/providers", "")
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Providers []domain.ProviderView `json:"providers"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Providers, 2)

		bg := body.Providers[0]
		assert.Equal(t, "www.britishgas.co.uk", bg.ProviderDomain)
		assert.True(t, bg.IsBaseline)
		assert.Equal(t, 1, bg.ProductCount)
		assert.Equal(t, 1, bg.Dedupe.DuplicatesRemoved)
		assert.False(t, body.Providers[1].IsBaseline)
	})

	t.Run("providers as yaml", func(t *testing.T) {
		w := s.do(http.MethodGet, base+"/providers?format=yaml", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "yaml")

		var doc map[string][]map[string]any
		require.NoError(t, yaml.Unmarshal(w.Body.Bytes(), &doc))
		assert.Len(t, doc["providers"], 2)
	})

	t.Run("csv export", func(t *testing.T) {
		w := s.do(http.MethodGet, base+"/export.csv", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
		assert.Contains(t, w.Header().Get("Content-Disposition"), resp.RunID)

		lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
		assert.True(t, strings.HasPrefix(lines[0], "competitor,product_name,price_monthly"))
	})

	t.Run("full report by default", func(t *testing.T) {
		w := s.do(http.MethodPost, base+"/report", "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, usecase.ReportFull, s.reporter.gotKind)
		assert.Len(t, s.reporter.gotViews, 2)
		assert.Contains(t, w.Body.String(), "EXECUTIVE SUMMARY")
	})

	t.Run("summary report", func(t *testing.T) {
		w := s.do(http.MethodPost, base+"/report", `{"summary": true}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, usecase.ReportSummary, s.reporter.gotKind)
	})

	t.Run("model failure is 502", func(t *testing.T) {
		s.reporter.err = fmt.Errorf("%w: status 500", domain.ErrModelAPIFailure)
		defer func() { s.reporter.err = nil }()

		w := s.do(http.MethodPost, base+"/report", "")
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestDeleteRun(t *testing.T) {
	s := setupTestServer(t)
	resp := s.scrape(t, `{"urls_text": "https://www.example.com/plans"}`)
	path := "/api/v1/runs/" + resp.RunID

	w := s.do(http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, path, "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, path, "").Code)
	assert.Equal(t, 0, s.runs.Size())
}

func TestCORSIntegration(t *testing.T) {
	s := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:8501")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:8501", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}
