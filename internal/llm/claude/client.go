// Package claude implements the pipeline's LLM provider on the Anthropic API.
package claude

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Client wraps the Anthropic SDK for the short, single-turn completions the
// pipeline makes. Output size is bounded by the caller's token budget; there
// is no tool use and no conversation state.
type Client struct {
	client anthropic.Client
	model  anthropic.Model
}

// New creates a Claude client with the given API key and model name. Extra
// request options (e.g. a base URL override in tests) are applied after the
// API key.
func New(apiKey, model string, opts ...option.RequestOption) *Client {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{
		client: anthropic.NewClient(opts...),
		model:  anthropic.Model(model),
	}
}

// Complete sends one system+user prompt pair and returns the concatenated
// text content of the response, trimmed.
func (c *Client) Complete(ctx context.Context, system, prompt string, maxTokens int64, temperature float64) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude: send message: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", fmt.Errorf("claude: response contained no text content")
	}
	return out, nil
}
