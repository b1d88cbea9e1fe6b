package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/user/shotpost/internal/config"
)

type openAIClient struct {
	client    *openai.Client
	model     string
	maxTokens int
	timeout   time.Duration
}

func newOpenAI(apiKey, baseURL, model string, cfg config.LLMConfig) *openAIClient {
	oc := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		oc.BaseURL = baseURL
	}
	oc.HTTPClient = httpClient(cfg.Headers)

	return &openAIClient{
		client:    openai.NewClientWithConfig(oc),
		model:     model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
	}
}

func (c *openAIClient) Name() string {
	return "openai/" + c.model
}

func (c *openAIClient) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(req.Images) == 0 {
		user.Content = req.Prompt
	} else {
		parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: req.Prompt}}
		for _, img := range req.Images {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    "data:" + img.MediaType + ";base64," + base64.StdEncoding.EncodeToString(img.Data),
					Detail: openai.ImageURLDetailHigh,
				},
			})
		}
		user.MultiContent = parts
	}
	messages = append(messages, user)

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages:  messages,
	})
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
