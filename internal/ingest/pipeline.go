// Package ingest runs batches of screenshots through extraction, ad
// filtering, deduplication, storage, rewriting and watermark tracking.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/user/shotpost/internal/capture"
	"github.com/user/shotpost/internal/db"
	"github.com/user/shotpost/internal/post"
)

var (
	// ErrPartialBatch is returned by Result.Err when any item failed.
	ErrPartialBatch = errors.New("batch finished with failed items")

	ErrSourceUnavailable = errors.New("capture source unavailable")
	ErrRewriteDisabled   = errors.New("rewriting is disabled")
)

// PostExtractor reads one screenshot.
type PostExtractor interface {
	Extract(ctx context.Context, path string) (*post.Extracted, error)
}

// ArticleWriter rewrites one stored record.
type ArticleWriter interface {
	Rewrite(ctx context.Context, r *db.Record) (*post.Article, error)
}

// RecordStore is the part of *db.Store the pipeline needs.
type RecordStore interface {
	prefixChecker
	watermarkStore
	Save(ctx context.Context, r *db.Record) (bool, error)
	AttachRewrite(ctx context.Context, key string, a *post.Article) error
	ListUnrewritten(ctx context.Context, limit int) ([]db.Record, error)
	Get(ctx context.Context, key string) (*db.Record, error)
}

type Options struct {
	// Delay is the minimum spacing between inference calls.
	Delay       time.Duration
	DedupPrefix int
}

// Pipeline processes batches one item at a time. A nil rewriter disables
// the rewrite stage.
type Pipeline struct {
	store     RecordStore
	extractor PostExtractor
	rewriter  ArticleWriter
	dedup     *Deduplicator
	sync      *SyncTracker
	limiter   *rate.Limiter
	logger    *log.Logger
	now       func() time.Time
}

func New(store RecordStore, extractor PostExtractor, rewriter ArticleWriter, logger *log.Logger, opts Options) *Pipeline {
	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}
	return &Pipeline{
		store:     store,
		extractor: extractor,
		rewriter:  rewriter,
		dedup:     NewDeduplicator(store, opts.DedupPrefix),
		sync:      NewSyncTracker(store),
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger.WithPrefix("ingest"),
		now:       time.Now,
	}
}

func (p *Pipeline) Sync() *SyncTracker {
	return p.sync
}

// Result counts what happened to each item of a batch.
type Result struct {
	RunID         string
	Captured      int
	Extracted     int
	ExtractFailed int
	Ads           int
	Duplicates    int
	Stored        int
	StoreFailed   int
	Rewritten     int
	RewriteFailed int
	Keys          []string
}

func (r Result) Failures() int {
	return r.ExtractFailed + r.StoreFailed + r.RewriteFailed
}

// Err is ErrPartialBatch when any item failed.
func (r Result) Err() error {
	if n := r.Failures(); n > 0 {
		return fmt.Errorf("%w: %d failed", ErrPartialBatch, n)
	}
	return nil
}

// Merge adds o's counters to r.
func (r *Result) Merge(o Result) {
	r.Captured += o.Captured
	r.Extracted += o.Extracted
	r.ExtractFailed += o.ExtractFailed
	r.Ads += o.Ads
	r.Duplicates += o.Duplicates
	r.Stored += o.Stored
	r.StoreFailed += o.StoreFailed
	r.Rewritten += o.Rewritten
	r.RewriteFailed += o.RewriteFailed
	r.Keys = append(r.Keys, o.Keys...)
}

func (p *Pipeline) newRun(kind string) (Result, *log.Logger) {
	id := uuid.NewString()
	return Result{RunID: id}, p.logger.With("run", id[:8], "kind", kind)
}

// Run processes paths in order. Item failures are logged and counted; only
// cancellation stops the batch early, returning what was done so far.
func (p *Pipeline) Run(ctx context.Context, paths []string) (Result, error) {
	res, logger := p.newRun("batch")
	res.Captured = len(paths)
	logger.Info("batch started", "screenshots", len(paths))

	items := make([]Extraction, 0, len(paths))
	for _, path := range paths {
		if err := p.limiter.Wait(ctx); err != nil {
			return res, err
		}
		ep, err := p.extractor.Extract(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.ExtractFailed++
			logger.Warn("extraction failed", "path", path, "err", err)
			continue
		}
		res.Extracted++
		items = append(items, Extraction{Path: path, Post: *ep})
	}

	kept := FilterAds(items)
	res.Ads = len(items) - len(kept)

	for _, it := range kept {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		p.process(ctx, logger, it, &res)
	}

	logger.Info("batch done",
		"stored", res.Stored, "duplicates", res.Duplicates, "ads", res.Ads,
		"rewritten", res.Rewritten, "failures", res.Failures())
	return res, nil
}

func (p *Pipeline) process(ctx context.Context, logger *log.Logger, it Extraction, res *Result) {
	dup, err := p.dedup.IsDuplicate(ctx, it.Post.Handle, it.Post.Content)
	if err != nil {
		res.StoreFailed++
		logger.Error("duplicate check failed", "path", it.Path, "err", err)
		return
	}
	if dup {
		res.Duplicates++
		logger.Debug("duplicate", "handle", it.Post.Handle, "path", it.Path)
		return
	}

	rec := db.NewRecord(it.Post, it.Path, p.now())
	inserted, err := p.store.Save(ctx, rec)
	if err != nil {
		res.StoreFailed++
		logger.Error("save failed", "key", rec.Key, "err", err)
		return
	}
	if !inserted {
		res.Duplicates++
		logger.Debug("key already stored", "key", rec.Key)
		return
	}
	res.Stored++
	res.Keys = append(res.Keys, rec.Key)

	if p.rewriter == nil {
		p.advance(ctx, logger, rec.Timestamp)
		return
	}
	p.rewrite(ctx, logger, rec, res)
}

// rewrite attaches an article to rec and advances the watermark on success.
func (p *Pipeline) rewrite(ctx context.Context, logger *log.Logger, rec *db.Record, res *Result) {
	if err := p.limiter.Wait(ctx); err != nil {
		return
	}
	article, err := p.rewriter.Rewrite(ctx, rec)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		res.RewriteFailed++
		logger.Warn("rewrite failed", "key", rec.Key, "err", err)
		return
	}

	if err := p.store.AttachRewrite(ctx, rec.Key, article); err != nil {
		res.StoreFailed++
		logger.Error("attach rewrite failed", "key", rec.Key, "err", err)
		return
	}
	res.Rewritten++
	p.advance(ctx, logger, rec.Timestamp)
}

func (p *Pipeline) advance(ctx context.Context, logger *log.Logger, ts string) {
	moved, err := p.sync.Advance(ctx, ts)
	if err != nil {
		logger.Warn("watermark not advanced", "timestamp", ts, "err", err)
		return
	}
	if moved {
		logger.Debug("watermark advanced", "timestamp", ts)
	}
}

type FetchOptions struct {
	// Accounts to capture; empty captures the source's default.
	Accounts []string
	Count    int
	Force    bool
}

// Fetch captures screenshots for each account and runs them as batches. An
// unavailable or failing capture source aborts the fetch. The sync time is
// only recorded once every account went through and no screenshot failed
// extraction, so failed ones stay inside the next capture window.
func (p *Pipeline) Fetch(ctx context.Context, src capture.Source, opts FetchOptions) (Result, error) {
	var total Result
	if !src.Available() {
		return total, fmt.Errorf("%w: %s", ErrSourceUnavailable, src.Name())
	}

	st, err := p.sync.State(ctx)
	if err != nil {
		return total, fmt.Errorf("read sync state: %w", err)
	}
	started := p.now()

	accounts := opts.Accounts
	if len(accounts) == 0 {
		accounts = []string{""}
	}

	for _, account := range accounts {
		paths, err := src.Capture(ctx, capture.Request{
			Account:    account,
			Count:      opts.Count,
			Since:      st.LastSeenTimestamp,
			LastSyncAt: st.LastSyncAt,
			Force:      opts.Force,
		})
		if err != nil {
			return total, fmt.Errorf("capture %s from %s: %w", account, src.Name(), err)
		}

		res, err := p.Run(ctx, paths)
		total.RunID = res.RunID
		total.Merge(res)
		if err != nil {
			return total, err
		}
	}

	if total.ExtractFailed > 0 {
		p.logger.Warn("sync time not recorded, failed screenshots will be offered again",
			"failed", total.ExtractFailed)
		return total, nil
	}
	if err := p.sync.MarkSynced(ctx, started); err != nil {
		return total, fmt.Errorf("mark synced: %w", err)
	}
	return total, nil
}

// RewritePending rewrites up to limit stored records that have no article
// yet, oldest first. limit <= 0 means all of them.
func (p *Pipeline) RewritePending(ctx context.Context, limit int) (Result, error) {
	if p.rewriter == nil {
		return Result{}, ErrRewriteDisabled
	}

	res, logger := p.newRun("rewrite")
	records, err := p.store.ListUnrewritten(ctx, limit)
	if err != nil {
		return res, fmt.Errorf("list pending records: %w", err)
	}
	logger.Info("rewrite started", "pending", len(records))

	for i := range records {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		p.rewrite(ctx, logger, &records[i], &res)
	}

	logger.Info("rewrite done", "rewritten", res.Rewritten, "failures", res.Failures())
	return res, nil
}

// RewriteKeys rewrites the given records again, replacing any article they
// already carry. Unknown keys count as store failures.
func (p *Pipeline) RewriteKeys(ctx context.Context, keys []string) (Result, error) {
	if p.rewriter == nil {
		return Result{}, ErrRewriteDisabled
	}

	res, logger := p.newRun("rewrite")
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rec, err := p.store.Get(ctx, key)
		if err != nil {
			res.StoreFailed++
			logger.Error("load record failed", "key", key, "err", err)
			continue
		}
		p.rewrite(ctx, logger, rec, &res)
	}
	return res, nil
}
