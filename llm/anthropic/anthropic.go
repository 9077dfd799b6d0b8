// Package anthropic adapts the Anthropic Messages API to llm.TextCompleter.
package anthropic

import (
	"context"
	"fmt"
	"os"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/recallkit/recall/llm"
)

const (
	defaultModel     = "claude-sonnet-4-5"
	defaultMaxTokens = 1024
)

// Config controls the adapter. Zero values fall back to the
// ANTHROPIC_API_KEY environment variable and a default model.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int64
}

// Completer is the Anthropic-backed llm.TextCompleter.
type Completer struct {
	client    anthropicsdk.Client
	model     anthropicsdk.Model
	maxTokens int64
}

var _ llm.TextCompleter = (*Completer)(nil)

// New creates a completer. An API key is required, either in cfg or in the
// environment.
func New(cfg Config) (*Completer, error) {
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv("ANTHROPIC_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("anthropic: no API key configured")
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Completer{
		client:    anthropicsdk.NewClient(option.WithAPIKey(key)),
		model:     anthropicsdk.Model(model),
		maxTokens: maxTokens,
	}, nil
}

// Complete sends one user message and concatenates the text blocks of the
// response.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropicsdk.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", llm.ErrUnavailable, err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
