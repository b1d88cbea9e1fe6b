// Package rewriter turns stored posts into locale-adapted articles.
package rewriter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/user/shotpost/internal/db"
	"github.com/user/shotpost/internal/llm"
	"github.com/user/shotpost/internal/post"
)

// ErrIncomplete means the model's JSON lacked a title or body.
var ErrIncomplete = errors.New("rewrite is missing title or content")

const systemPrompt = `You are an editor who turns short social media posts into brief, readable articles.
You always answer with a single JSON object and no other text.`

const rewritePrompt = `Rewrite the post below as a short article for readers in the %s locale.
Write in that locale's language and conventions. Keep the facts; do not invent details.
%s
Answer with exactly this JSON object:
{
  "title": "headline",
  "content": "article body",
  "tags": ["3 to 5 topic tags"],
  "originalAuthor": %s,
  "originalHandle": %s
}

Post by %s (@%s):
%s`

type Options struct {
	Locale       string
	Instructions string
	MaxTokens    int
}

type Rewriter struct {
	client llm.Client
	logger *log.Logger
	opts   Options
}

func New(client llm.Client, logger *log.Logger, opts Options) *Rewriter {
	if opts.Locale == "" {
		opts.Locale = "en-US"
	}
	return &Rewriter{client: client, logger: logger.WithPrefix("rewrite"), opts: opts}
}

// Rewrite asks the model for an article based on r. On any failure it
// returns nil and an error.
func (rw *Rewriter) Rewrite(ctx context.Context, r *db.Record) (*post.Article, error) {
	resp, err := rw.client.Complete(ctx, llm.Request{
		System:    systemPrompt,
		Prompt:    rw.prompt(r),
		MaxTokens: rw.opts.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("rewrite %s: %w", r.Key, err)
	}

	a, err := Parse(resp, r)
	if err != nil {
		rw.logger.Warn("unusable rewrite response", "key", r.Key, "err", err, "response", resp)
		return nil, fmt.Errorf("rewrite %s: %w", r.Key, err)
	}
	return a, nil
}

func (rw *Rewriter) prompt(r *db.Record) string {
	extra := ""
	if s := strings.TrimSpace(rw.opts.Instructions); s != "" {
		extra = "Additional instructions: " + s + "\n"
	}
	return fmt.Sprintf(rewritePrompt,
		rw.opts.Locale, extra,
		jsonString(r.Author), jsonString(r.Handle),
		r.Author, r.Handle, r.Content)
}

// jsonString quotes s as a JSON string literal for the answer template.
func jsonString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}

type rawArticle struct {
	Title          json.RawMessage `json:"title"`
	Content        json.RawMessage `json:"content"`
	Tags           json.RawMessage `json:"tags"`
	OriginalAuthor json.RawMessage `json:"originalAuthor"`
	OriginalHandle json.RawMessage `json:"originalHandle"`
}

// Parse decodes a rewrite response. Attribution the model left out is
// taken from r.
func Parse(text string, r *db.Record) (*post.Article, error) {
	var raw rawArticle
	if err := llm.DecodeObject(text, &raw); err != nil {
		return nil, err
	}

	a := &post.Article{
		Title:          strings.TrimSpace(llm.String(raw.Title)),
		Content:        strings.TrimSpace(llm.String(raw.Content)),
		Tags:           post.NormalizeTags(llm.Strings(raw.Tags)),
		OriginalAuthor: strings.TrimSpace(llm.String(raw.OriginalAuthor)),
		OriginalHandle: strings.TrimPrefix(strings.TrimSpace(llm.String(raw.OriginalHandle)), "@"),
	}
	if a.Title == "" || a.Content == "" {
		return nil, ErrIncomplete
	}
	if a.OriginalAuthor == "" {
		a.OriginalAuthor = r.Author
	}
	if a.OriginalHandle == "" {
		a.OriginalHandle = r.Handle
	}
	return a, nil
}
