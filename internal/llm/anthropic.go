package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/user/shotpost/internal/config"
)

type anthropicClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	timeout   time.Duration
}

func newAnthropic(apiKey, model string, cfg config.LLMConfig) *anthropicClient {
	opts := []anthropic.ClientOption{anthropic.WithHTTPClient(httpClient(cfg.Headers))}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	return &anthropicClient{
		client:    anthropic.NewClient(apiKey, opts...),
		model:     model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
	}
}

func (c *anthropicClient) Name() string {
	return "anthropic/" + c.model
}

func (c *anthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	content := make([]anthropic.MessageContent, 0, len(req.Images)+1)
	for _, img := range req.Images {
		content = append(content, anthropic.NewImageMessageContent(
			anthropic.NewMessageContentSource(
				anthropic.MessagesContentSourceTypeBase64,
				img.MediaType,
				base64.StdEncoding.EncodeToString(img.Data),
			),
		))
	}
	content = append(content, anthropic.NewTextMessageContent(req.Prompt))

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		System:    req.System,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: content},
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", ErrEmptyResponse
	}

	text := resp.Content[0].GetText()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
