package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/user/shotpost/internal/config"
	"github.com/user/shotpost/internal/db"
	"github.com/user/shotpost/internal/extractor"
	"github.com/user/shotpost/internal/ingest"
	"github.com/user/shotpost/internal/llm"
	"github.com/user/shotpost/internal/logging"
	"github.com/user/shotpost/internal/rewriter"
)

// env bundles what most commands need: config, a logger and an open store.
type env struct {
	cfg    *config.Config
	logger *log.Logger
	store  *db.Store
}

func setup(quiet bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.Stderr(cfg.LogLevel)
	if quiet {
		logger = logging.Discard()
	}

	store, err := db.NewStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &env{cfg: cfg, logger: logger, store: store}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

// client builds an inference client for model, recording exchanges when
// debug.record_exchanges is set.
func (e *env) client(model string) (llm.Client, error) {
	c, err := llm.New(e.cfg.LLM, model)
	if err != nil {
		return nil, err
	}
	if e.cfg.Debug.RecordExchanges {
		dir := filepath.Join(e.cfg.CacheDir(), "llm")
		e.logger.Debug("recording llm exchanges", "dir", dir)
		return llm.NewRecorder(c, dir), nil
	}
	return c, nil
}

func (e *env) extractor() (*extractor.Extractor, error) {
	c, err := e.client(e.cfg.ExtractModel())
	if err != nil {
		return nil, fmt.Errorf("extraction client: %w", err)
	}
	return extractor.New(c, e.logger).WithMaxTokens(e.cfg.LLM.ExtractMaxTokens), nil
}

func (e *env) rewriter() (*rewriter.Rewriter, error) {
	c, err := e.client(e.cfg.LLM.Model)
	if err != nil {
		return nil, fmt.Errorf("rewrite client: %w", err)
	}
	return rewriter.New(c, e.logger, rewriter.Options{
		Locale:       e.cfg.Rewrite.Locale,
		Instructions: e.cfg.Rewrite.Instructions,
		MaxTokens:    e.cfg.Rewrite.MaxTokens,
	}), nil
}

// pipeline wires the configured stages. withRewrite is ANDed with
// rewrite.enabled.
func (e *env) pipeline(withRewrite bool) (*ingest.Pipeline, error) {
	ex, err := e.extractor()
	if err != nil {
		return nil, err
	}

	// Leave the interface nil when rewriting is off.
	var rw ingest.ArticleWriter
	if withRewrite && e.cfg.Rewrite.Enabled {
		r, err := e.rewriter()
		if err != nil {
			return nil, err
		}
		rw = r
	}

	return ingest.New(e.store, ex, rw, e.logger, ingest.Options{
		Delay:       e.cfg.Pipeline.Delay,
		DedupPrefix: e.cfg.Pipeline.DedupPrefix,
	}), nil
}

// rewriteOnly builds a pipeline for commands that never extract.
func (e *env) rewriteOnly() (*ingest.Pipeline, error) {
	rw, err := e.rewriter()
	if err != nil {
		return nil, err
	}
	return ingest.New(e.store, nil, rw, e.logger, ingest.Options{
		Delay:       e.cfg.Pipeline.Delay,
		DedupPrefix: e.cfg.Pipeline.DedupPrefix,
	}), nil
}
