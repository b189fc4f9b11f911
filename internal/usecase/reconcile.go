package usecase

import (
	"net/url"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/compintel/backend/internal/domain"
)

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	currencyPattern   = regexp.MustCompile(`[£$€]`)
	amountPattern     = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// ProviderDomain returns the lowercased network authority of rawURL, or ""
// when it cannot be parsed
func ProviderDomain(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// NormalizeText lowercases s and collapses whitespace runs
func NormalizeText(s string) string {
	return whitespacePattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

// NormalizeMoney reduces a money-like string to its first currency symbol and
// first numeric token, so "£15.50 a month" and "£15.50" compare equal. Values
// without both parts are only trimmed.
func NormalizeMoney(value *string) string {
	if value == nil {
		return ""
	}
	s := strings.TrimSpace(*value)
	if s == "" {
		return ""
	}
	currency := currencyPattern.FindString(s)
	amount := amountPattern.FindString(strings.ReplaceAll(s, ",", ""))
	if currency != "" && amount != "" {
		return currency + amount
	}
	return s
}

// DedupeKeyFor builds the merge identity of a record
func DedupeKeyFor(record domain.ProductRecord) domain.DedupeKey {
	return domain.DedupeKey{
		Domain:       ProviderDomain(record.SourceURL),
		Name:         NormalizeText(record.ProductName),
		PriceMonthly: NormalizeMoney(record.PriceMonthly),
		PriceAnnual:  NormalizeMoney(record.PriceAnnual),
		Excess:       NormalizeMoney(record.Excess),
	}
}

// DedupeProducts merges records sharing a DedupeKey. The first record of each
// key is kept, blanks in its offers, terms, category and features are filled
// from later duplicates, and every contributing source URL is kept. Output
// order follows the first occurrence of each key; inputs are not modified.
func DedupeProducts(records []domain.ProductRecord) ([]domain.MergedProduct, domain.DedupeStats) {
	index := make(map[domain.DedupeKey]int, len(records))
	merged := make([]domain.MergedProduct, 0, len(records))

	for _, record := range records {
		key := DedupeKeyFor(record)
		i, exists := index[key]
		if !exists {
			product := domain.MergedProduct{
				ProductRecord:  record.Clone(),
				ProviderDomain: key.Domain,
				SourceURLs:     []string{},
			}
			if record.SourceURL != "" {
				product.SourceURLs = append(product.SourceURLs, record.SourceURL)
			}
			index[key] = len(merged)
			merged = append(merged, product)
			continue
		}

		existing := &merged[i]
		if record.SourceURL != "" && !slices.Contains(existing.SourceURLs, record.SourceURL) {
			existing.SourceURLs = append(existing.SourceURLs, record.SourceURL)
		}
		backfill(&existing.ProductRecord, record)
	}

	for i := range merged {
		if len(merged[i].SourceURLs) > 0 {
			merged[i].SourceURL = strings.Join(merged[i].SourceURLs, "\n")
		}
	}

	stats := domain.DedupeStats{
		InputCount:  len(records),
		OutputCount: len(merged),
	}
	stats.DuplicatesRemoved = max(0, stats.InputCount-stats.OutputCount)
	return merged, stats
}

// backfill copies optional values from a duplicate where the kept record has none
func backfill(kept *domain.ProductRecord, dup domain.ProductRecord) {
	if isBlank(kept.SpecialOffers) && !isBlank(dup.SpecialOffers) {
		v := *dup.SpecialOffers
		kept.SpecialOffers = &v
	}
	if isBlank(kept.TermsConditions) && !isBlank(dup.TermsConditions) {
		v := *dup.TermsConditions
		kept.TermsConditions = &v
	}
	if strings.TrimSpace(kept.Category) == "" && strings.TrimSpace(dup.Category) != "" {
		kept.Category = dup.Category
	}
	if len(kept.Features) == 0 && len(dup.Features) > 0 {
		kept.Features = append([]string(nil), dup.Features...)
	}
}

// BuildProviderViews groups records by provider domain and reconciles each
// group. Views are ordered by first appearance of their domain; a view is
// flagged as baseline when its domain contains baselineDomain.
func BuildProviderViews(records []domain.ProductRecord, baselineDomain string) []domain.ProviderView {
	var order []string
	groups := make(map[string][]domain.ProductRecord)
	urls := make(map[string][]string)

	for _, record := range records {
		d := ProviderDomain(record.SourceURL)
		if _, ok := groups[d]; !ok {
			order = append(order, d)
		}
		groups[d] = append(groups[d], record)
		if record.SourceURL != "" && !slices.Contains(urls[d], record.SourceURL) {
			urls[d] = append(urls[d], record.SourceURL)
		}
	}

	baselineDomain = strings.ToLower(strings.TrimSpace(baselineDomain))
	views := make([]domain.ProviderView, 0, len(order))
	for _, d := range order {
		products, stats := DedupeProducts(groups[d])
		views = append(views, domain.ProviderView{
			ProviderDomain:   d,
			URLs:             append([]string{}, urls[d]...),
			ProductCount:     len(products),
			Dedupe:           stats,
			Products:         products,
			Categories:       categorySet(products),
			PriceRange:       priceRange(products),
			FeatureFrequency: featureFrequency(products),
			IsBaseline:       baselineDomain != "" && strings.Contains(d, baselineDomain),
		})
	}
	return views
}

// categorySet lists distinct non-empty categories in first-seen order
func categorySet(products []domain.MergedProduct) []string {
	categories := []string{}
	for _, p := range products {
		if p.Category != "" && !slices.Contains(categories, p.Category) {
			categories = append(categories, p.Category)
		}
	}
	return categories
}

func priceRange(products []domain.MergedProduct) domain.PriceRange {
	var monthly, annual []float64
	for _, p := range products {
		if v, ok := domain.ParsePrice(domain.StringValue(p.PriceMonthly)); ok {
			monthly = append(monthly, v)
		}
		if v, ok := domain.ParsePrice(domain.StringValue(p.PriceAnnual)); ok {
			annual = append(annual, v)
		}
	}
	return domain.PriceRange{
		Monthly: domain.Aggregate(monthly),
		Annual:  domain.Aggregate(annual),
	}
}

// featureFrequency counts trimmed, lowercased features, most frequent first.
// Ties keep first-seen order.
func featureFrequency(products []domain.MergedProduct) []domain.FeatureCount {
	counts := []domain.FeatureCount{}
	index := make(map[string]int)
	for _, p := range products {
		for _, f := range p.Features {
			normalized := strings.ToLower(strings.TrimSpace(f))
			if normalized == "" {
				continue
			}
			if i, ok := index[normalized]; ok {
				counts[i].Count++
				continue
			}
			index[normalized] = len(counts)
			counts = append(counts, domain.FeatureCount{Feature: normalized, Count: 1})
		}
	}
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	return counts
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
