package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/compintel/backend/internal/domain"
)

// ReportKind selects the narrative report variant
type ReportKind string

const (
	ReportFull    ReportKind = "full"
	ReportSummary ReportKind = "summary"
)

// ReportConfig holds configuration for the report service
type ReportConfig struct {
	BaselineDomain   string
	MaxTokens        int
	SummaryMaxTokens int
}

// ReportService turns reconciled provider views into a comparative narrative
type ReportService struct {
	model  domain.ModelClient
	logger *slog.Logger
	config ReportConfig
}

// NewReportService creates a new report service with dependencies
func NewReportService(model domain.ModelClient, logger *slog.Logger, config ReportConfig) *ReportService {
	if config.MaxTokens <= 0 {
		config.MaxTokens = 3000
	}
	if config.SummaryMaxTokens <= 0 {
		config.SummaryMaxTokens = 1500
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ReportService{model: model, logger: logger, config: config}
}

// Generate asks the model for a report comparing every provider against the
// baseline. Model errors are returned unchanged.
func (s *ReportService) Generate(ctx context.Context, views []domain.ProviderView, kind ReportKind) (string, error) {
	if len(views) == 0 {
		return "", fmt.Errorf("%w: no provider data to report on", domain.ErrInvalidRequest)
	}

	data, err := json.MarshalIndent(viewsByDomain(views), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode provider views: %w", err)
	}

	hasBaseline := false
	for _, v := range views {
		hasBaseline = hasBaseline || v.IsBaseline
	}

	var prompt string
	maxTokens := s.config.MaxTokens
	switch kind {
	case ReportSummary:
		prompt = buildSummaryPrompt(s.baselineLabel(), hasBaseline, string(data))
		maxTokens = s.config.SummaryMaxTokens
	case ReportFull, "":
		kind = ReportFull
		prompt = buildReportPrompt(s.baselineLabel(), hasBaseline, string(data))
	default:
		return "", fmt.Errorf("%w: unknown report kind %q", domain.ErrInvalidRequest, kind)
	}

	report, err := s.model.Complete(ctx, prompt, maxTokens)
	if err != nil {
		s.logger.Error("failed to generate report", "kind", kind, "error", err)
		return "", err
	}

	s.logger.Info("generated report", "kind", kind, "providers", len(views), "baseline_present", hasBaseline)
	return strings.TrimSpace(report), nil
}

func (s *ReportService) baselineLabel() string {
	if s.config.BaselineDomain == "" {
		return "the baseline provider"
	}
	return s.config.BaselineDomain
}

// viewsByDomain keys the views by provider domain for the prompt payload
func viewsByDomain(views []domain.ProviderView) map[string]domain.ProviderView {
	byDomain := make(map[string]domain.ProviderView, len(views))
	for _, v := range views {
		byDomain[v.ProviderDomain] = v
	}
	return byDomain
}

func buildReportPrompt(baseline string, present bool, data string) string {
	return fmt.Sprintf(`You are a strategic business analyst specializing in competitive intelligence.
Your task is to create a comparison report where **%[1]s is the baseline** and all other market players are compared against it.

If %[1]s data is missing, clearly state that the baseline is not present in the dataset and fall back to a general market comparison.
Baseline present in dataset: %[2]t

DATA COLLECTED:
%[3]s

Generate a detailed report with the following sections:

## 1. EXECUTIVE SUMMARY
- Brief overview of the competitive landscape
- Number of providers analyzed and total unique products found (after dedupe)
- Key headline differences vs the baseline (pricing, coverage breadth, offers)

## 2. BASELINE PROVIDER (if present)
- Summarize the baseline product lineup, price ranges, and top features/coverage
- Note any prominent offers or terms

## 3. MARKET PLAYERS VS BASELINE (provider-by-provider)
For each other provider:
- Closest comparable products (by category/name/features)
- Price comparison (cheaper / similar / more expensive) with approximate deltas when possible
- Feature/coverage differences
- Promotions/incentives differences
- Clear "Who wins?" callout per provider (Pricing / Features / Simplicity / Offer)

## 4. PRICING & VALUE MATRIX
- A table-like section grouping comparable categories/plans and showing the baseline vs others
- Identify budget leaders and premium leaders relative to the baseline

## 5. FEATURE / COVERAGE GAP ANALYSIS
- Features competitors commonly offer that the baseline lacks (if any)
- Features the baseline offers that are uncommon elsewhere (if any)
- Notable terms/exclusions that shift value

## 6. STRATEGIC IMPLICATIONS
- Where the baseline is over/under-priced vs market
- Bundling or feature adjustments to defend/attack key rivals
- Offer strategy and positioning recommendations

Format the response with clear headings, bullet points where appropriate, and specific data references from the collected information. Be analytical and data-driven in your insights.`, baseline, present, data)
}

func buildSummaryPrompt(baseline string, present bool, data string) string {
	return fmt.Sprintf(`Provide a concise comparison summary where %[1]s is the baseline (if present).
If the baseline is missing, state that and provide a general summary.
Baseline present in dataset: %[2]t

%[3]s

Include:
1. Baseline snapshot (or "not present")
2. Top 3 threats to the baseline (which providers and why)
3. Top 3 opportunities for the baseline (pricing/features/offers)
4. One primary recommendation (actionable)

Keep it brief and actionable.`, baseline, present, data)
}
