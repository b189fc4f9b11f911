package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/compintel/backend/internal/domain"
)

// DefaultModel is used when no model is configured
const DefaultModel = "claude-sonnet-4-5-20250929"

// Config holds configuration for the model client
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client sends single-turn prompts to the Anthropic Messages API. Retries are
// left to the caller so rate limits surface as domain.ErrRateLimited.
type Client struct {
	client sdk.Client
	model  string
	logger *slog.Logger
}

// NewClient creates a new Anthropic API client
func NewClient(config Config, logger *slog.Logger) *Client {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Timeout <= 0 {
		config.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(config.Timeout),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &Client{
		client: sdk.NewClient(opts...),
		model:  config.Model,
		logger: logger,
	}
}

// Complete sends prompt as a user message and returns the concatenated text
// blocks of the reply
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	start := time.Now()

	message, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", classifyError(err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	c.logger.Debug("model call completed",
		"model", c.model,
		"input_tokens", message.Usage.InputTokens,
		"output_tokens", message.Usage.OutputTokens,
		"stop_reason", message.StopReason,
		"duration", time.Since(start),
	)
	return text.String(), nil
}

// classifyError maps SDK errors onto the domain taxonomy
func classifyError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
		}
		return fmt.Errorf("%w: status %d: %w", domain.ErrModelAPIFailure, apiErr.StatusCode, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrModelAPIFailure, err)
}

var _ domain.ModelClient = (*Client)(nil)
