package extractor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/user/shotpost/internal/llm"
	"github.com/user/shotpost/internal/logging"
	"github.com/user/shotpost/internal/post"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

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

func writeImage(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	return path
}

func TestExtract(t *testing.T) {
	client := &fakeClient{resp: `{"author":"Alice","handle":"@alice","content":"Hello world","timestamp":"2h","likes":"1.2K","retweets":3,"replies":null,"hasMedia":"false","isAd":false}`}
	e := New(client, logging.Discard()).WithMaxTokens(512)

	got, err := e.Extract(context.Background(), writeImage(t, "shot.png", pngHeader))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	want := post.Extracted{
		Author:    "Alice",
		Handle:    "alice",
		Content:   "Hello world",
		Timestamp: "2h",
		Likes:     "1.2K",
		Retweets:  "3",
	}
	if *got != want {
		t.Errorf("got %+v\nwant %+v", *got, want)
	}

	if len(client.reqs) != 1 {
		t.Fatalf("expected one request, got %d", len(client.reqs))
	}
	req := client.reqs[0]
	if len(req.Images) != 1 || req.Images[0].MediaType != "image/png" {
		t.Errorf("unexpected images: %+v", req.Images)
	}
	if req.MaxTokens != 512 {
		t.Errorf("MaxTokens = %d, want 512", req.MaxTokens)
	}
	if req.Prompt != extractPrompt {
		t.Error("expected the fixed extraction prompt")
	}
}

func TestExtractFailures(t *testing.T) {
	cases := []struct {
		name    string
		client  *fakeClient
		wantErr error
	}{
		{"inference error", &fakeClient{err: llm.ErrEmptyResponse}, llm.ErrEmptyResponse},
		{"prose only", &fakeClient{resp: "I can't read this image."}, llm.ErrNoJSON},
		{"broken json", &fakeClient{resp: "{handle: alice}"}, llm.ErrInvalidJSON},
		{"not a post", &fakeClient{resp: `{"likes":"4"}`}, ErrIncomplete},
	}

	path := writeImage(t, "shot.png", pngHeader)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := New(tc.client, logging.Discard()).Extract(context.Background(), path)
			if got != nil {
				t.Errorf("expected nil post, got %+v", got)
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestExtractUnreadableFile(t *testing.T) {
	client := &fakeClient{}
	e := New(client, logging.Discard())

	if _, err := e.Extract(context.Background(), filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := e.Extract(context.Background(), writeImage(t, "notes.txt", []byte("plain text"))); !errors.Is(err, ErrUnsupportedImage) {
		t.Errorf("expected ErrUnsupportedImage, got %v", err)
	}
	if len(client.reqs) != 0 {
		t.Error("client must not be called for unreadable input")
	}
}

func TestParse(t *testing.T) {
	t.Run("prose wrapped", func(t *testing.T) {
		got, err := Parse(`Sure, here you go: {"handle":"bob","content":"Shipping today"} Thanks!`)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if got.Handle != "bob" || got.Content != "Shipping today" {
			t.Errorf("got %+v", got)
		}
		if got.Author != "" || got.Timestamp != "" || got.HasMedia {
			t.Errorf("expected zero defaults, got %+v", got)
		}
	})

	t.Run("ad", func(t *testing.T) {
		got, err := Parse(`{"handle":"brand","content":"Buy now","isAd":true}`)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if !got.IsAd {
			t.Error("expected IsAd")
		}
	})

	t.Run("blank ad", func(t *testing.T) {
		got, err := Parse(`{"isAd":"yes"}`)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if !got.IsAd {
			t.Error("expected IsAd")
		}
	})
}

func TestDetectMediaType(t *testing.T) {
	cases := []struct {
		name string
		path string
		data []byte
		want string
	}{
		{"png bytes", "x.bin", pngHeader, "image/png"},
		{"jpeg bytes", "x", []byte("\xff\xd8\xff\xe0\x00\x10JFIF"), "image/jpeg"},
		{"extension fallback", "x.webp", []byte("garbage"), "image/webp"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DetectMediaType(tc.path, tc.data)
			if err != nil {
				t.Fatalf("DetectMediaType: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}
