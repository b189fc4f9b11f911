package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compintel/backend/internal/domain"
)

func strPtr(s string) *string {
	return &s
}

func TestProviderDomain(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.Example.com/boiler-cover?x=1", "www.example.com"},
		{"http://example.com:8080/plans", "example.com:8080"},
		{"  https://shop.example.org  ", "shop.example.org"},
		{"not a url", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ProviderDomain(tt.url); got != tt.want {
			t.Errorf("ProviderDomain(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestNormalizeMoney(t *testing.T) {
	tests := []struct {
		name  string
		value *string
		want  string
	}{
		{"absent", nil, ""},
		{"blank", strPtr("  "), ""},
		{"plain amount", strPtr("£15.50"), "£15.50"},
		{"with wording", strPtr("£15.50 a month"), "£15.50"},
		{"thousands separator", strPtr("From £1,200 per year"), "£1200"},
		{"dollar", strPtr("$9.99/mo"), "$9.99"},
		{"no currency", strPtr(" 15.50 "), "15.50"},
		{"no amount", strPtr("Free"), "Free"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeMoney(tt.value); got != tt.want {
				t.Errorf("NormalizeMoney() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "boiler cover plus", NormalizeText("  Boiler\tCover \n PLUS "))
}

func TestDedupeKeyFor_EquivalentRecords(t *testing.T) {
	a := domain.ProductRecord{
		ProductName:  "HomeCare  One",
		PriceMonthly: strPtr("£15.50 a month"),
		SourceURL:    "https://www.example.com/a",
	}
	b := domain.ProductRecord{
		ProductName:  "homecare one",
		PriceMonthly: strPtr("£15.50"),
		SourceURL:    "https://WWW.example.com/b",
	}
	assert.Equal(t, DedupeKeyFor(a), DedupeKeyFor(b))

	c := b
	c.Excess = strPtr("£60")
	assert.NotEqual(t, DedupeKeyFor(a), DedupeKeyFor(c))
}

func TestDedupeProducts_MergesAndBackfills(t *testing.T) {
	records := []domain.ProductRecord{
		{
			ProductName:  "Boiler Cover",
			PriceMonthly: strPtr("£12"),
			Category:     "",
			SourceURL:    "https://example.com/boiler",
		},
		{
			ProductName:     "Heating Cover",
			PriceMonthly:    strPtr("£18"),
			Category:        "Heating",
			SourceURL:       "https://example.com/boiler",
			TermsConditions: strPtr("Annual contract"),
		},
		{
			ProductName:   "boiler cover",
			PriceMonthly:  strPtr("£12 per month"),
			Category:      "Boiler",
			Features:      []string{"24/7 support"},
			SpecialOffers: strPtr("First month free"),
			SourceURL:     "https://example.com/offers",
		},
		{
			ProductName:   "Boiler Cover",
			PriceMonthly:  strPtr("£12"),
			Category:      "Other",
			Features:      []string{"ignored"},
			SpecialOffers: strPtr("ignored"),
			SourceURL:     "https://example.com/offers",
		},
	}

	merged, stats := DedupeProducts(records)

	require.Len(t, merged, 2)
	assert.Equal(t, domain.DedupeStats{InputCount: 4, OutputCount: 2, DuplicatesRemoved: 2}, stats)

	boiler := merged[0]
	assert.Equal(t, "Boiler Cover", boiler.ProductName)
	assert.Equal(t, "£12", domain.StringValue(boiler.PriceMonthly))
	assert.Equal(t, "Boiler", boiler.Category)
	assert.Equal(t, []string{"24/7 support"}, boiler.Features)
	assert.Equal(t, "First month free", domain.StringValue(boiler.SpecialOffers))
	assert.Nil(t, boiler.TermsConditions)
	assert.Equal(t, []string{"https://example.com/boiler", "https://example.com/offers"}, boiler.SourceURLs)
	assert.Equal(t, "https://example.com/boiler\nhttps://example.com/offers", boiler.SourceURL)
	assert.Equal(t, "example.com", boiler.ProviderDomain)

	assert.Equal(t, "Heating Cover", merged[1].ProductName)
	assert.Equal(t, "https://example.com/boiler", merged[1].SourceURL)

	assert.Empty(t, records[0].Category, "input records must not be modified")
	assert.Empty(t, records[0].Features)
	assert.Nil(t, records[0].SpecialOffers)
	assert.Equal(t, "https://example.com/boiler", records[0].SourceURL)
}

func TestDedupeProducts_DistinctKeysKept(t *testing.T) {
	records := []domain.ProductRecord{
		{ProductName: "Plan", PriceMonthly: strPtr("£10"), SourceURL: "https://a.example.com/x"},
		{ProductName: "Plan", PriceMonthly: strPtr("£11"), SourceURL: "https://a.example.com/x"},
		{ProductName: "Plan", PriceMonthly: strPtr("£10"), SourceURL: "https://b.example.com/x"},
	}

	merged, stats := DedupeProducts(records)
	assert.Len(t, merged, 3)
	assert.Equal(t, 0, stats.DuplicatesRemoved)
}

func TestDedupeProducts_Empty(t *testing.T) {
	merged, stats := DedupeProducts(nil)
	assert.Empty(t, merged)
	assert.Equal(t, domain.DedupeStats{}, stats)
}

func TestBuildProviderViews(t *testing.T) {
	records := []domain.ProductRecord{
		{ProductName: "Boiler Cover", PriceMonthly: strPtr("£12"), Category: "Boiler", Features: []string{"24/7 support"}, SourceURL: "https://example.com/a"},
		{ProductName: "Boiler Cover", PriceMonthly: strPtr("£12"), Category: "Boiler", Features: []string{"24/7 support"}, SourceURL: "https://example.com/b"},
		{ProductName: "HomeCare One", PriceMonthly: strPtr("£9.50"), PriceAnnual: strPtr("£114"), Category: "Boiler", Features: []string{" 24/7 Support", "Annual service"}, SourceURL: "https://www.britishgas.co.uk/homecare"},
		{ProductName: "HomeCare Four", PriceMonthly: strPtr("£31.50"), Category: "Home", Features: []string{"Annual service", "Plumbing"}, SourceURL: "https://www.britishgas.co.uk/homecare"},
		{ProductName: "Quote only", PriceMonthly: strPtr("Call us"), Category: "Home", Features: []string{"plumbing", "annual service"}, SourceURL: "https://www.britishgas.co.uk/quote"},
	}

	views := BuildProviderViews(records, "britishgas.co.uk")
	require.Len(t, views, 2)

	example := views[0]
	assert.Equal(t, "example.com", example.ProviderDomain)
	assert.False(t, example.IsBaseline)
	assert.Equal(t, 1, example.ProductCount)
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, example.URLs)
	assert.Equal(t, domain.DedupeStats{InputCount: 2, OutputCount: 1, DuplicatesRemoved: 1}, example.Dedupe)
	require.NotNil(t, example.PriceRange.Monthly.Min)
	assert.Equal(t, 12.0, *example.PriceRange.Monthly.Min)
	assert.Equal(t, 12.0, *example.PriceRange.Monthly.Max)
	assert.Equal(t, 12.0, *example.PriceRange.Monthly.Avg)
	assert.Nil(t, example.PriceRange.Annual.Avg)

	baseline := views[1]
	assert.Equal(t, "www.britishgas.co.uk", baseline.ProviderDomain)
	assert.True(t, baseline.IsBaseline)
	assert.Equal(t, 3, baseline.ProductCount)
	assert.Equal(t, []string{"Boiler", "Home"}, baseline.Categories)
	assert.Equal(t, 9.5, *baseline.PriceRange.Monthly.Min)
	assert.Equal(t, 31.5, *baseline.PriceRange.Monthly.Max)
	assert.InDelta(t, 20.5, *baseline.PriceRange.Monthly.Avg, 1e-9)
	assert.Equal(t, 114.0, *baseline.PriceRange.Annual.Avg)
	assert.Equal(t, []domain.FeatureCount{
		{Feature: "annual service", Count: 3},
		{Feature: "plumbing", Count: 2},
		{Feature: "24/7 support", Count: 1},
	}, baseline.FeatureFrequency)
}

func TestBuildProviderViews_Deterministic(t *testing.T) {
	records := []domain.ProductRecord{
		{ProductName: "A", SourceURL: "https://z.example.com"},
		{ProductName: "B", SourceURL: "https://a.example.com"},
		{ProductName: "A", SourceURL: "https://z.example.com/2"},
	}

	first := BuildProviderViews(records, "")
	assert.Equal(t, first, BuildProviderViews(records, ""))
	assert.Equal(t, "z.example.com", first[0].ProviderDomain)
	assert.Equal(t, "a.example.com", first[1].ProviderDomain)
	assert.False(t, first[0].IsBaseline)
}
