package rewriter

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/user/shotpost/internal/db"
	"github.com/user/shotpost/internal/llm"
	"github.com/user/shotpost/internal/logging"
	"github.com/user/shotpost/internal/post"
)

type fakeClient struct {
	resp string
	err  error
	reqs []llm.Request
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.reqs = append(f.reqs, req)
	return f.resp, f.err
}

var alice = &db.Record{Key: "k1", Author: "Alice", Handle: "alice", Content: "Hello world"}

func TestRewrite(t *testing.T) {
	client := &fakeClient{resp: "Here is the article:\n" +
		`{"title":"Hola","content":"Un saludo al mundo.","tags":["#greeting","Greeting"," world "],"originalAuthor":"Alice","originalHandle":"@alice"}`}
	rw := New(client, logging.Discard(), Options{Locale: "es-ES", Instructions: "Keep it under 50 words.", MaxTokens: 2048})

	got, err := rw.Rewrite(context.Background(), alice)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	want := &post.Article{
		Title:          "Hola",
		Content:        "Un saludo al mundo.",
		Tags:           []string{"greeting", "world"},
		OriginalAuthor: "Alice",
		OriginalHandle: "alice",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v\nwant %+v", got, want)
	}

	prompt := client.reqs[0].Prompt
	for _, s := range []string{"es-ES", "Keep it under 50 words.", "Hello world", "@alice"} {
		if !strings.Contains(prompt, s) {
			t.Errorf("prompt missing %q", s)
		}
	}
	if client.reqs[0].MaxTokens != 2048 {
		t.Errorf("MaxTokens = %d", client.reqs[0].MaxTokens)
	}
	if len(client.reqs[0].Images) != 0 {
		t.Error("rewrite must be a text-only request")
	}
}

func TestRewriteAttributionFallback(t *testing.T) {
	client := &fakeClient{resp: `{"title":"T","content":"C","tags":"go, sqlite"}`}
	got, err := New(client, logging.Discard(), Options{}).Rewrite(context.Background(), alice)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if got.OriginalAuthor != "Alice" || got.OriginalHandle != "alice" {
		t.Errorf("attribution = %q/%q", got.OriginalAuthor, got.OriginalHandle)
	}
	if !reflect.DeepEqual(got.Tags, []string{"go", "sqlite"}) {
		t.Errorf("tags = %v", got.Tags)
	}
	if !strings.Contains(client.reqs[0].Prompt, "en-US") {
		t.Error("expected default locale in prompt")
	}
}

func TestPromptTemplateStaysValidJSON(t *testing.T) {
	client := &fakeClient{err: llm.ErrEmptyResponse}
	r := &db.Record{Key: "k2", Author: `The "Real" Alice \ Co`, Handle: "alice", Content: "Hi"}
	New(client, logging.Discard(), Options{}).Rewrite(context.Background(), r)

	obj, ok := llm.FirstObject(client.reqs[0].Prompt)
	if !ok {
		t.Fatal("expected a JSON object in the prompt")
	}
	var tmpl struct {
		OriginalAuthor string `json:"originalAuthor"`
		OriginalHandle string `json:"originalHandle"`
	}
	if err := json.Unmarshal([]byte(obj), &tmpl); err != nil {
		t.Fatalf("answer template is not valid JSON: %v\n%s", err, obj)
	}
	if tmpl.OriginalAuthor != r.Author || tmpl.OriginalHandle != "alice" {
		t.Errorf("template attribution = %q/%q", tmpl.OriginalAuthor, tmpl.OriginalHandle)
	}
}

func TestRewriteFailures(t *testing.T) {
	cases := []struct {
		name    string
		client  *fakeClient
		wantErr error
	}{
		{"inference error", &fakeClient{err: llm.ErrEmptyResponse}, llm.ErrEmptyResponse},
		{"no json", &fakeClient{resp: "Sorry, I can't help."}, llm.ErrNoJSON},
		{"missing title", &fakeClient{resp: `{"content":"body only"}`}, ErrIncomplete},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := New(tc.client, logging.Discard(), Options{}).Rewrite(context.Background(), alice)
			if got != nil {
				t.Errorf("expected nil article, got %+v", got)
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}
