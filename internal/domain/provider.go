package domain

// DedupeKey identifies the same underlying product scraped from different pages
type DedupeKey struct {
	Domain       string
	Name         string
	PriceMonthly string
	PriceAnnual  string
	Excess       string
}

// MergedProduct is the representative record of a DedupeKey. Its SourceURL holds
// every contributing source URL joined by newlines.
type MergedProduct struct {
	ProductRecord  `yaml:",inline"`
	ProviderDomain string   `json:"provider_domain" yaml:"provider_domain"`
	SourceURLs     []string `json:"source_urls" yaml:"source_urls"`
}

// DedupeStats reports how many records were merged away
type DedupeStats struct {
	InputCount        int `json:"input_count" yaml:"input_count"`
	OutputCount       int `json:"output_count" yaml:"output_count"`
	DuplicatesRemoved int `json:"duplicates_removed" yaml:"duplicates_removed"`
}

// PriceStats holds min/max/average over parsed numeric prices
type PriceStats struct {
	Min *float64 `json:"min" yaml:"min"`
	Max *float64 `json:"max" yaml:"max"`
	Avg *float64 `json:"avg" yaml:"avg"`
}

// PriceRange summarises monthly and annual pricing of a provider
type PriceRange struct {
	Monthly PriceStats `json:"monthly" yaml:"monthly"`
	Annual  PriceStats `json:"annual" yaml:"annual"`
}

// FeatureCount is one entry of the feature frequency table
type FeatureCount struct {
	Feature string `json:"feature" yaml:"feature"`
	Count   int    `json:"count" yaml:"count"`
}

// ProviderView aggregates the reconciled products of one provider domain
type ProviderView struct {
	ProviderDomain   string          `json:"provider_domain" yaml:"provider_domain"`
	URLs             []string        `json:"urls" yaml:"urls"`
	ProductCount     int             `json:"product_count" yaml:"product_count"`
	Dedupe           DedupeStats     `json:"dedupe" yaml:"dedupe"`
	Products         []MergedProduct `json:"products" yaml:"products"`
	Categories       []string        `json:"categories" yaml:"categories"`
	PriceRange       PriceRange      `json:"price_range" yaml:"price_range"`
	FeatureFrequency []FeatureCount  `json:"unique_features" yaml:"unique_features"`
	IsBaseline       bool            `json:"is_baseline" yaml:"is_baseline"`
}
