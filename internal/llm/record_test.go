package llm

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type stubClient struct {
	resp string
	err  error
}

func (s stubClient) Name() string { return "stub" }

func (s stubClient) Complete(ctx context.Context, req Request) (string, error) {
	return s.resp, s.err
}

func TestRecorderWritesExchanges(t *testing.T) {
	dir, _ := os.MkdirTemp("", "shotpost-llm")
	defer os.RemoveAll(dir)

	r := NewRecorder(stubClient{resp: `{"ok":true}`}, dir)
	got, err := r.Complete(context.Background(), Request{
		Prompt: "extract",
		Images: []Image{{MediaType: "image/png", Data: []byte{1, 2, 3}}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != `{"ok":true}` {
		t.Errorf("response = %q", got)
	}

	failing := NewRecorder(stubClient{err: errors.New("boom")}, dir)
	if _, err := failing.Complete(context.Background(), Request{Prompt: "again"}); err == nil {
		t.Fatal("expected error to pass through")
	}

	files, _ := filepath.Glob(filepath.Join(dir, "*.json"))
	if len(files) != 2 {
		t.Fatalf("expected 2 recorded exchanges, got %d", len(files))
	}

	var ex Exchange
	data, _ := os.ReadFile(files[0])
	if err := json.Unmarshal(data, &ex); err != nil {
		t.Fatalf("unmarshal exchange: %v", err)
	}
	if ex.Client != "stub" {
		t.Errorf("client = %q", ex.Client)
	}
}
