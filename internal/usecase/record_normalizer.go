package usecase

import (
	"strconv"
	"strings"

	"github.com/compintel/backend/internal/domain"
)

// NormalizeRecord converts one parsed item into a ProductRecord with every
// required field present. Items that are not JSON objects are rejected.
func NormalizeRecord(item any) (domain.ProductRecord, bool) {
	raw, ok := item.(map[string]any)
	if !ok {
		return domain.ProductRecord{}, false
	}

	record := domain.ProductRecord{
		ProductName:     DefaultString(optionalString(raw["product_name"]), domain.DefaultProductName),
		PriceMonthly:    optionalString(raw["price_monthly"]),
		PriceAnnual:     optionalString(raw["price_annual"]),
		Excess:          optionalString(raw["excess"]),
		Features:        stringList(raw["features"]),
		SpecialOffers:   optionalString(raw["special_offers"]),
		TermsConditions: optionalString(raw["terms_conditions"]),
		Category:        DefaultString(optionalString(raw["category"]), domain.DefaultCategory),
	}

	return record, true
}

// NormalizeRecords normalizes every item, silently dropping non-objects
func NormalizeRecords(items []any) []domain.ProductRecord {
	records := make([]domain.ProductRecord, 0, len(items))
	for _, item := range items {
		if record, ok := NormalizeRecord(item); ok {
			records = append(records, record)
		}
	}
	return records
}

// DefaultString returns the trimmed value, or fallback when it is absent or blank
func DefaultString(value *string, fallback string) string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return fallback
	}
	return strings.TrimSpace(*value)
}

// optionalString coerces scalar JSON values to a string; null and composite values are absent
func optionalString(v any) *string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	default:
		return nil
	}
	return &s
}

// stringList keeps the scalar entries of a JSON list; anything else yields an empty list
func stringList(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return []string{}
	}
	features := make([]string, 0, len(list))
	for _, item := range list {
		if s := optionalString(item); s != nil && strings.TrimSpace(*s) != "" {
			features = append(features, *s)
		}
	}
	return features
}
