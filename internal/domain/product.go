package domain

// ProductRecord represents one product offering extracted from one competitor page
type ProductRecord struct {
	ProductName     string   `json:"product_name" yaml:"product_name"`
	PriceMonthly    *string  `json:"price_monthly" yaml:"price_monthly"`
	PriceAnnual     *string  `json:"price_annual" yaml:"price_annual"`
	Excess          *string  `json:"excess" yaml:"excess"`
	Features        []string `json:"features" yaml:"features"`
	SpecialOffers   *string  `json:"special_offers" yaml:"special_offers"`
	TermsConditions *string  `json:"terms_conditions" yaml:"terms_conditions"`
	Category        string   `json:"category" yaml:"category"`
	SourceURL       string   `json:"source_url" yaml:"source_url"`
	Competitor      *string  `json:"competitor,omitempty" yaml:"competitor,omitempty"`
}

// Default values applied by the record normalizer
const (
	DefaultProductName = "Unknown"
	DefaultCategory    = "General"
)

// WithProvenance returns a copy of the record tagged with its source URL and
// optional competitor label. The receiver is left untouched.
func (p ProductRecord) WithProvenance(sourceURL, competitor string) ProductRecord {
	tagged := p.Clone()
	tagged.SourceURL = sourceURL
	if competitor != "" {
		label := competitor
		tagged.Competitor = &label
	}
	return tagged
}

// Clone returns a deep copy of the record
func (p ProductRecord) Clone() ProductRecord {
	c := p
	c.PriceMonthly = cloneString(p.PriceMonthly)
	c.PriceAnnual = cloneString(p.PriceAnnual)
	c.Excess = cloneString(p.Excess)
	c.SpecialOffers = cloneString(p.SpecialOffers)
	c.TermsConditions = cloneString(p.TermsConditions)
	c.Competitor = cloneString(p.Competitor)
	c.Features = append(make([]string, 0, len(p.Features)), p.Features...)
	return c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// StringValue dereferences an optional field, returning "" when absent
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// BatchTarget is one URL to scrape, optionally labelled with a competitor name
type BatchTarget struct {
	URL        string `json:"url" binding:"required"`
	Competitor string `json:"competitor,omitempty"`
}

// ScrapeError records a per-URL failure without aborting the batch
type ScrapeError struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}
