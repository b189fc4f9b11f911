package usecase

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/compintel/backend/internal/domain"
)

// featureDelimiter joins the feature list into a single CSV cell
const featureDelimiter = " | "

// productColumns is the CSV column order, provider and pricing first
var productColumns = []string{
	"competitor",
	"product_name",
	"price_monthly",
	"price_annual",
	"excess",
	"special_offers",
	"category",
	"source_url",
	"features",
	"terms_conditions",
}

// ExportProductsCSV writes the deduplicated records as CSV. Nothing is
// written for an empty input.
func ExportProductsCSV(w io.Writer, records []domain.ProductRecord) error {
	if len(records) == 0 {
		return nil
	}

	merged, _ := DedupeProducts(records)

	cw := csv.NewWriter(w)
	if err := cw.Write(productColumns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range merged {
		row := []string{
			competitorLabel(p),
			p.ProductName,
			domain.StringValue(p.PriceMonthly),
			domain.StringValue(p.PriceAnnual),
			domain.StringValue(p.Excess),
			domain.StringValue(p.SpecialOffers),
			p.Category,
			p.SourceURL,
			strings.Join(p.Features, featureDelimiter),
			domain.StringValue(p.TermsConditions),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// competitorLabel prefers the caller-supplied label and falls back to the
// domain of the first source URL
func competitorLabel(p domain.MergedProduct) string {
	if label := strings.TrimSpace(domain.StringValue(p.Competitor)); label != "" {
		return label
	}
	first, _, _ := strings.Cut(p.SourceURL, "\n")
	return ProviderDomain(first)
}

// ExportProvidersYAML writes the provider views as a YAML document
func ExportProvidersYAML(w io.Writer, views []domain.ProviderView) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string][]domain.ProviderView{"providers": views}); err != nil {
		return fmt.Errorf("encode providers yaml: %w", err)
	}
	return enc.Close()
}
