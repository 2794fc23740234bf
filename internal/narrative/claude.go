package narrative

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/wonny/trifund/pkg/config"
	"github.com/wonny/trifund/pkg/logger"
)

// Completer sends one prompt to a language model and returns its text
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// ClaudeClient is the Anthropic-backed Completer
type ClaudeClient struct {
	client    anthropic.Client
	model     string
	maxTokens int
	logger    *logger.Logger
}

// NewClaudeClient creates a client from the narrative config
func NewClaudeClient(cfg config.NarrativeConfig, log *logger.Logger) *ClaudeClient {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &ClaudeClient{
		client: anthropic.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithMaxRetries(0), // 재시도는 Service에서 관리
		),
		model:     cfg.Model,
		maxTokens: maxTokens,
		logger:    log,
	}
}

// Complete calls the Messages API and joins the text blocks of the reply
func (c *ClaudeClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude api call failed: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}

	if out.Len() == 0 {
		return "", fmt.Errorf("no text in claude response")
	}

	c.logger.WithFields(map[string]interface{}{
		"model":         c.model,
		"input_tokens":  resp.Usage.InputTokens,
		"output_tokens": resp.Usage.OutputTokens,
	}).Debug("Claude completion received")

	return out.String(), nil
}
