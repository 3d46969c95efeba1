// Package anthropic provides the completion-service client used by the summarizer.
package anthropic

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dirtycajunrice/ai-commit-summary/storage"
)

const (
	// DefaultModel is the Claude model used for diff summaries.
	DefaultModel = "claude-3-5-haiku-latest"

	// DefaultMaxTokens bounds the length of a single summary completion.
	DefaultMaxTokens = 512

	// DefaultTemperature is the fixed sampling temperature for summaries.
	DefaultTemperature = 0.5

	// APITimeout is the maximum time to wait for a completion response.
	APITimeout = 2 * time.Minute
)

// Client wraps the Anthropic API with fixed sampling parameters.
type Client struct {
	client      *anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewClient creates a completion client. An empty model selects DefaultModel.
func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		client:      anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:       model,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
	}
}

// Complete submits a system + user prompt pair and returns the first text
// block of the response along with token usage.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, *storage.TokenUsage, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	message, err := c.client.Messages.New(timeoutCtx, anthropic.MessageNewParams{
		Model:       anthropic.F(anthropic.Model(c.model)),
		MaxTokens:   anthropic.F(c.maxTokens),
		Temperature: anthropic.F(c.temperature),
		System: anthropic.F([]anthropic.TextBlockParam{
			anthropic.NewTextBlock(system),
		}),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		}),
	})
	if err != nil {
		return "", nil, fmt.Errorf("completion API error: %w", err)
	}

	usage := &storage.TokenUsage{
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}

	for _, block := range message.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			return block.Text, usage, nil
		}
	}

	return "", usage, fmt.Errorf("no text content in completion response")
}

// ValidateAPIKey validates an API key by making a minimal API call.
// Returns nil if the key is valid, or an error describing the problem.
func ValidateAPIKey(ctx context.Context, apiKey string) error {
	if apiKey == "" {
		return fmt.Errorf("API key is empty")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	// Minimal call with max 1 token to minimize cost
	_, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.F(anthropic.ModelClaude3_5HaikuLatest),
		MaxTokens: anthropic.F(int64(1)),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("hi")),
		}),
	})
	if err != nil {
		return fmt.Errorf("API key validation failed: %w", err)
	}

	return nil
}
