package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// Exchange is a prompt/response pair kept for debugging.
type Exchange struct {
	Timestamp time.Time `json:"timestamp"`
	Client    string    `json:"client"`
	System    string    `json:"system,omitempty"`
	Prompt    string    `json:"prompt"`
	Images    int       `json:"images"`
	Response  string    `json:"response"`
	Error     string    `json:"error,omitempty"`
}

// Recorder wraps a Client and writes every exchange to dir as JSON.
type Recorder struct {
	next Client
	dir  string
	seq  atomic.Uint64
}

func NewRecorder(next Client, dir string) *Recorder {
	return &Recorder{next: next, dir: dir}
}

func (r *Recorder) Name() string {
	return r.next.Name()
}

func (r *Recorder) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := r.next.Complete(ctx, req)

	ex := Exchange{
		Timestamp: time.Now(),
		Client:    r.next.Name(),
		System:    req.System,
		Prompt:    req.Prompt,
		Images:    len(req.Images),
		Response:  resp,
	}
	if err != nil {
		ex.Error = err.Error()
	}
	// Recording is best effort and never masks the model's answer.
	_, _ = r.save(ex)

	return resp, err
}

func (r *Recorder) save(ex Exchange) (string, error) {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return "", err
	}

	// Dashes instead of colons keep the name valid on every filesystem.
	name := fmt.Sprintf("%s-%04d.json", ex.Timestamp.Format("2006-01-02T15-04-05"), r.seq.Add(1))
	path := filepath.Join(r.dir, name)

	data, err := json.MarshalIndent(ex, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}
