package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/user/shotpost/internal/db"
	"github.com/user/shotpost/internal/post"
)

// ErrWatermarkContention is returned when other writers keep moving the
// watermark between our read and our swap.
var ErrWatermarkContention = errors.New("watermark changed concurrently too many times")

const maxAdvanceAttempts = 8

type watermarkStore interface {
	SyncState(ctx context.Context) (db.SyncState, error)
	CompareAndSetWatermark(ctx context.Context, expected, next string) (bool, error)
	SetWatermark(ctx context.Context, ts string) error
	TouchSync(ctx context.Context, at time.Time) error
	MaxTimestamp(ctx context.Context) (string, bool, error)
}

// SyncTracker owns the watermark: the newest post timestamp fully processed.
type SyncTracker struct {
	store watermarkStore
}

func NewSyncTracker(store watermarkStore) *SyncTracker {
	return &SyncTracker{store: store}
}

// Watermark returns the current watermark; ok is false when none is set.
func (s *SyncTracker) Watermark(ctx context.Context) (string, bool, error) {
	st, err := s.store.SyncState(ctx)
	if err != nil {
		return "", false, err
	}
	return st.LastSeenTimestamp, st.LastSeenTimestamp != "", nil
}

func (s *SyncTracker) State(ctx context.Context) (db.SyncState, error) {
	return s.store.SyncState(ctx)
}

// Advance moves the watermark to candidate when candidate is strictly newer
// or no watermark exists. Older, equal and empty candidates are ignored.
func (s *SyncTracker) Advance(ctx context.Context, candidate string) (bool, error) {
	if candidate == "" {
		return false, nil
	}

	for attempt := 0; attempt < maxAdvanceAttempts; attempt++ {
		current, ok, err := s.Watermark(ctx)
		if err != nil {
			return false, err
		}
		if ok && post.CompareTimestamps(candidate, current) <= 0 {
			return false, nil
		}

		swapped, err := s.store.CompareAndSetWatermark(ctx, current, candidate)
		if err != nil {
			return false, err
		}
		if swapped {
			return true, nil
		}
	}
	return false, ErrWatermarkContention
}

// Rebuild recomputes the watermark from the stored records and overwrites
// whatever is there. It returns the new value, "" when no record has a
// timestamp.
func (s *SyncTracker) Rebuild(ctx context.Context) (string, error) {
	ts, _, err := s.store.MaxTimestamp(ctx)
	if err != nil {
		return "", err
	}
	if err := s.store.SetWatermark(ctx, ts); err != nil {
		return "", err
	}
	return ts, nil
}

// MarkSynced records when a batch completed.
func (s *SyncTracker) MarkSynced(ctx context.Context, at time.Time) error {
	return s.store.TouchSync(ctx, at)
}
