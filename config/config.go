package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Anthropic  AnthropicConfig
	Extraction ExtractionConfig
	Fetch      FetchConfig
	Scrape     ScrapeConfig
	Report     ReportConfig
	Cache      CacheConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// AnthropicConfig holds model API configuration
type AnthropicConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ExtractionConfig holds windowing and model retry configuration
type ExtractionConfig struct {
	MaxChars        int             `mapstructure:"max_chars"`
	RetryMaxChars   int             `mapstructure:"retry_max_chars"`
	MaxOutputTokens int             `mapstructure:"max_output_tokens"`
	MaxAttempts     int             `mapstructure:"max_attempts"`
	BackoffSchedule []time.Duration `mapstructure:"backoff_schedule"`
}

// FetchConfig holds page fetch configuration
type FetchConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	Format    string        `mapstructure:"format"` // "html" or "markdown"
	UserAgent string        `mapstructure:"user_agent"`
}

// ScrapeConfig holds batch configuration
type ScrapeConfig struct {
	RequestDelay time.Duration `mapstructure:"request_delay"`
	MaxURLs      int           `mapstructure:"max_urls"`
}

// ReportConfig holds narrative report configuration
type ReportConfig struct {
	BaselineDomain   string `mapstructure:"baseline_domain"`
	MaxTokens        int    `mapstructure:"max_tokens"`
	SummaryMaxTokens int    `mapstructure:"summary_max_tokens"`
}

// CacheConfig holds run store configuration
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text", "json" or empty for auto
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/compintel/")

	// COMPINTEL_EXTRACTION_MAX_CHARS maps to extraction.max_chars
	v.SetEnvPrefix("COMPINTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("anthropic.api_key", "COMPINTEL_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind api key env: %w", err)
	}

	setDefaults(v)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile reads a .env file from the working directory when one exists.
// Variables already set in the environment win.
func loadEnvFile() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error loading .env file: %w", err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})

	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.timeout", "120s")

	v.SetDefault("extraction.max_chars", 60000)
	v.SetDefault("extraction.retry_max_chars", 30000)
	v.SetDefault("extraction.max_output_tokens", 2000)
	v.SetDefault("extraction.max_attempts", 3)
	v.SetDefault("extraction.backoff_schedule", []time.Duration{10 * time.Second, 20 * time.Second, 40 * time.Second})

	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.format", "html")
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	v.SetDefault("scrape.request_delay", "2s")
	v.SetDefault("scrape.max_urls", 50)

	v.SetDefault("report.baseline_domain", "britishgas.co.uk")
	v.SetDefault("report.max_tokens", 3000)
	v.SetDefault("report.summary_max_tokens", 1500)

	v.SetDefault("cache.ttl", "1h")

	v.SetDefault("ratelimit.per_ip", 60)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Anthropic.APIKey == "" {
		return fmt.Errorf("Anthropic API key is required (set COMPINTEL_ANTHROPIC_API_KEY or ANTHROPIC_API_KEY)")
	}

	if config.Fetch.Format != "html" && config.Fetch.Format != "markdown" {
		return fmt.Errorf("fetch format must be 'html' or 'markdown', got: %s", config.Fetch.Format)
	}

	if config.Extraction.MaxChars <= 0 || config.Extraction.RetryMaxChars <= 0 {
		return fmt.Errorf("extraction character budgets must be positive")
	}

	if config.Extraction.RetryMaxChars >= config.Extraction.MaxChars {
		return fmt.Errorf("extraction retry budget (%d) must be smaller than max_chars (%d)",
			config.Extraction.RetryMaxChars, config.Extraction.MaxChars)
	}

	if config.Extraction.MaxOutputTokens <= 0 || config.Extraction.MaxAttempts <= 0 {
		return fmt.Errorf("extraction max_output_tokens and max_attempts must be positive")
	}

	if len(config.Extraction.BackoffSchedule) == 0 {
		return fmt.Errorf("extraction backoff schedule must not be empty")
	}

	if config.Scrape.MaxURLs <= 0 {
		return fmt.Errorf("scrape max_urls must be positive, got: %d", config.Scrape.MaxURLs)
	}

	if config.Scrape.RequestDelay < 0 {
		return fmt.Errorf("scrape request_delay must not be negative")
	}

	return nil
}
