// Package llm is the boundary to the inference backends used for screenshot
// extraction and rewriting.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/user/shotpost/internal/config"
)

var (
	ErrEmptyResponse = errors.New("empty response from model")
	ErrNoJSON        = errors.New("no JSON object in response")
	ErrInvalidJSON   = errors.New("invalid JSON in response")
)

// Image is an inline image sent along with a prompt.
type Image struct {
	MediaType string // image/png, image/jpeg, ...
	Data      []byte
}

type Request struct {
	System    string
	Prompt    string
	Images    []Image
	MaxTokens int
}

// Client sends one request and returns the model's text.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
}

// New builds the client for the configured provider using the given model.
func New(cfg config.LLMConfig, model string) (Client, error) {
	switch cfg.Provider {
	case "anthropic":
		apiKey := firstNonEmpty(cfg.APIKey, os.Getenv("ANTHROPIC_API_KEY"))
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		return newAnthropic(apiKey, model, cfg), nil
	case "openai", "openrouter":
		var apiKey, baseURL string
		if cfg.Provider == "openrouter" {
			apiKey = firstNonEmpty(cfg.APIKey, os.Getenv("OPENROUTER_API_KEY"))
			baseURL = firstNonEmpty(cfg.BaseURL, "https://openrouter.ai/api/v1")
		} else {
			apiKey = firstNonEmpty(cfg.APIKey, os.Getenv("OPENAI_API_KEY"))
			baseURL = cfg.BaseURL
		}
		if apiKey == "" {
			return nil, fmt.Errorf("API key not set for provider %s", cfg.Provider)
		}
		return newOpenAI(apiKey, baseURL, model, cfg), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// withTimeout bounds a single call when a timeout is configured.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// headerTransport adds fixed headers (e.g. OpenRouter attribution) to every request.
type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

func httpClient(headers map[string]string) *http.Client {
	if len(headers) == 0 {
		return http.DefaultClient
	}
	return &http.Client{Transport: &headerTransport{headers: headers, base: http.DefaultTransport}}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
