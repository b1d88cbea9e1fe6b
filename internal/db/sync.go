package db

import (
	"context"
	"fmt"
	"time"
)

// ensureSyncRow recreates the singleton row if it was removed.
func (s *Store) ensureSyncRow(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO sync_state (id) VALUES (1)`)
	return err
}

func (s *Store) SyncState(ctx context.Context) (SyncState, error) {
	var st SyncState
	if err := s.ensureSyncRow(ctx); err != nil {
		return st, err
	}

	var lastSyncAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT last_seen_timestamp, last_sync_at FROM sync_state WHERE id = 1
	`).Scan(&st.LastSeenTimestamp, &lastSyncAt)
	if err != nil {
		return st, err
	}

	if lastSyncAt != "" {
		t, err := time.Parse(timeLayout, lastSyncAt)
		if err != nil {
			return st, fmt.Errorf("bad last_sync_at %q: %w", lastSyncAt, err)
		}
		st.LastSyncAt = t
	}
	return st, nil
}

// CompareAndSetWatermark replaces the watermark with next only if it still
// equals expected. It reports whether the swap happened.
func (s *Store) CompareAndSetWatermark(ctx context.Context, expected, next string) (bool, error) {
	if err := s.ensureSyncRow(ctx); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_state SET last_seen_timestamp = ? WHERE id = 1 AND last_seen_timestamp = ?
	`, next, expected)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetWatermark overwrites the watermark unconditionally.
func (s *Store) SetWatermark(ctx context.Context, ts string) error {
	if err := s.ensureSyncRow(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `UPDATE sync_state SET last_seen_timestamp = ? WHERE id = 1`, ts)
	return err
}

// TouchSync records the wall-clock time of the last completed sync.
func (s *Store) TouchSync(ctx context.Context, at time.Time) error {
	if err := s.ensureSyncRow(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_state SET last_sync_at = ? WHERE id = 1
	`, at.UTC().Truncate(time.Millisecond).Format(timeLayout))
	return err
}
