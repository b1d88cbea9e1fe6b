// Package extractor turns a screenshot of a post into a post.Extracted by
// asking a vision model for a fixed JSON object.
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/user/shotpost/internal/llm"
	"github.com/user/shotpost/internal/post"
)

var (
	// ErrIncomplete means the model answered with JSON that is not a post.
	ErrIncomplete = errors.New("extraction has neither handle nor content")

	ErrUnsupportedImage = errors.New("unsupported image type")
)

const extractPrompt = `This is a screenshot of a single social media post.
Read it and answer with one JSON object and nothing else, using exactly these fields:

{
  "author": "display name of the poster",
  "handle": "account handle without the leading @",
  "content": "full text of the post, line breaks kept",
  "timestamp": "post time exactly as shown, ISO 8601 if the full date is visible",
  "likes": "like count as shown, e.g. 1.2K",
  "retweets": "repost count as shown",
  "replies": "reply count as shown",
  "hasMedia": true or false,
  "mediaDescription": "one sentence describing attached images or video, empty if none",
  "isAd": true if the post is marked as promoted or is an advertisement, else false
}

Use an empty string for anything that is not visible.`

// Extractor reads screenshots through an injected llm.Client.
type Extractor struct {
	client    llm.Client
	logger    *log.Logger
	maxTokens int
}

func New(client llm.Client, logger *log.Logger) *Extractor {
	return &Extractor{client: client, logger: logger.WithPrefix("extract")}
}

// WithMaxTokens overrides the client's default response budget.
func (e *Extractor) WithMaxTokens(n int) *Extractor {
	e.maxTokens = n
	return e
}

// Extract returns the post shown in the image at path. On any failure it
// returns nil and an error; nothing is written anywhere.
func (e *Extractor) Extract(ctx context.Context, path string) (*post.Extracted, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read screenshot: %w", err)
	}

	mediaType, err := DetectMediaType(path, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	resp, err := e.client.Complete(ctx, llm.Request{
		Prompt:    extractPrompt,
		Images:    []llm.Image{{MediaType: mediaType, Data: data}},
		MaxTokens: e.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}

	p, err := Parse(resp)
	if err != nil {
		e.logger.Warn("unusable extraction response", "path", path, "err", err, "response", resp)
		return nil, fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}

	e.logger.Debug("extracted post", "path", path, "handle", p.Handle, "ad", p.IsAd)
	return p, nil
}

// rawPost is the model's answer before lenient field decoding.
type rawPost struct {
	Author           json.RawMessage `json:"author"`
	Handle           json.RawMessage `json:"handle"`
	Content          json.RawMessage `json:"content"`
	Timestamp        json.RawMessage `json:"timestamp"`
	Likes            json.RawMessage `json:"likes"`
	Retweets         json.RawMessage `json:"retweets"`
	Replies          json.RawMessage `json:"replies"`
	HasMedia         json.RawMessage `json:"hasMedia"`
	MediaDescription json.RawMessage `json:"mediaDescription"`
	IsAd             json.RawMessage `json:"isAd"`
}

// Parse decodes a model response into a post. Missing fields become "" or
// false; a response carrying neither handle nor content is rejected.
func Parse(text string) (*post.Extracted, error) {
	var raw rawPost
	if err := llm.DecodeObject(text, &raw); err != nil {
		return nil, err
	}

	p := &post.Extracted{
		Author:           strings.TrimSpace(llm.String(raw.Author)),
		Handle:           strings.TrimPrefix(strings.TrimSpace(llm.String(raw.Handle)), "@"),
		Content:          strings.TrimSpace(llm.String(raw.Content)),
		Timestamp:        strings.TrimSpace(llm.String(raw.Timestamp)),
		Likes:            strings.TrimSpace(llm.String(raw.Likes)),
		Retweets:         strings.TrimSpace(llm.String(raw.Retweets)),
		Replies:          strings.TrimSpace(llm.String(raw.Replies)),
		HasMedia:         llm.Bool(raw.HasMedia),
		MediaDescription: strings.TrimSpace(llm.String(raw.MediaDescription)),
		IsAd:             llm.Bool(raw.IsAd),
	}

	// Ads are kept even when blank so the filter can count them.
	if p.Handle == "" && p.Content == "" && !p.IsAd {
		return nil, ErrIncomplete
	}
	return p, nil
}

var supportedTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// DetectMediaType sniffs the image bytes, falling back to the file extension.
func DetectMediaType(path string, data []byte) (string, error) {
	if t := http.DetectContentType(data); supportedTypes[t] {
		return t, nil
	}
	if t, _, err := mime.ParseMediaType(mime.TypeByExtension(filepath.Ext(path))); err == nil && supportedTypes[t] {
		return t, nil
	}
	return "", ErrUnsupportedImage
}
