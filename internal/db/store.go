package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/user/shotpost/internal/post"
)

var ErrNotFound = errors.New("record not found")

// timeLayout is fixed width so stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

type Store struct {
	db            *sql.DB
	schemaVersion uint
}

func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dataDir, "shotpost.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const recordColumns = `key, author, handle, content, timestamp, likes, retweets, replies,
	has_media, media_description, media_type, media_urls, screenshot_path, is_ad,
	captured_at, rewritten, rewritten_payload`

// Save inserts r unless a record with the same key exists. It reports whether
// a row was written; a duplicate key is not an error.
func (s *Store) Save(ctx context.Context, r *Record) (bool, error) {
	r.Author, r.Handle, r.Content = validText(r.Author), validText(r.Handle), validText(r.Content)
	if r.Key == "" {
		r.Key = post.DeriveKey(r.Handle, r.Content, r.Timestamp)
	}
	if r.CapturedAt.IsZero() {
		r.CapturedAt = time.Now()
	}
	r.CapturedAt = r.CapturedAt.UTC().Truncate(time.Millisecond)
	if r.MediaURLs == nil {
		r.MediaURLs = []string{}
	}

	mediaJSON, err := json.Marshal(r.MediaURLs)
	if err != nil {
		return false, err
	}
	payload, err := encodeArticle(r.Article)
	if err != nil {
		return false, err
	}
	r.Rewritten = r.Article != nil

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.Key, r.Author, r.Handle, r.Content, r.Timestamp, r.Likes, r.Retweets, r.Replies,
		r.HasMedia, r.MediaDescription, r.MediaType, string(mediaJSON), r.ScreenshotPath, r.IsAd,
		r.CapturedAt.Format(timeLayout), r.Rewritten, payload)
	if err != nil {
		return false, fmt.Errorf("insert record %s: %w", r.Key, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ExistsByContentPrefix reports whether handle already has a record whose
// first n characters of content equal those of content.
func (s *Store) ExistsByContentPrefix(ctx context.Context, handle, content string, n int) (bool, error) {
	handle, content = validText(handle), validText(content)
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM records WHERE handle = ? AND substr(content, 1, ?) = ?)
	`, handle, n, post.Prefix(content, n)).Scan(&exists)
	return exists, err
}

// AttachRewrite stores the article for key and flags the record as rewritten.
func (s *Store) AttachRewrite(ctx context.Context, key string, a *post.Article) error {
	if a == nil {
		return fmt.Errorf("attach rewrite %s: nil article", key)
	}
	payload, err := encodeArticle(a)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE records SET rewritten = 1, rewritten_payload = ? WHERE key = ?
	`, payload, key)
	if err != nil {
		return fmt.Errorf("attach rewrite %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE key = ?`, key)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// Filter selects records by rewrite state.
type Filter int

const (
	FilterAll Filter = iota
	FilterRewritten
	FilterPending
)

// List returns records newest capture first. limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, filter Filter, limit int) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records`
	switch filter {
	case FilterRewritten:
		query += ` WHERE rewritten = 1`
	case FilterPending:
		query += ` WHERE rewritten = 0`
	}
	query += ` ORDER BY captured_at DESC, key`
	return s.queryRecords(ctx, query, limit)
}

// ListUnrewritten returns records still waiting for an article, oldest first.
func (s *Store) ListUnrewritten(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE rewritten = 0 ORDER BY captured_at ASC, key`
	return s.queryRecords(ctx, query, limit)
}

func (s *Store) queryRecords(ctx context.Context, query string, limit int, args ...any) ([]Record, error) {
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&count)
	return count, err
}

// Stats aggregates record counts. Last24h is measured from now by capture time.
func (s *Store) Stats(ctx context.Context, now time.Time) (Stats, error) {
	var st Stats
	since := now.Add(-24 * time.Hour).UTC().Format(timeLayout)

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN captured_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(rewritten), 0)
		FROM records
	`, since).Scan(&st.Total, &st.Last24h, &st.Rewritten)
	if err != nil {
		return st, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT handle, COUNT(*) FROM records GROUP BY handle ORDER BY COUNT(*) DESC, handle
	`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var hc HandleCount
		if err := rows.Scan(&hc.Handle, &hc.Count); err != nil {
			return st, err
		}
		st.ByHandle = append(st.ByHandle, hc)
	}
	return st, rows.Err()
}

// MaxTimestamp returns the newest non-empty post timestamp under
// post.CompareTimestamps. ok is false when no record carries a timestamp.
func (s *Store) MaxTimestamp(ctx context.Context) (string, bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT timestamp FROM records WHERE timestamp != ''`)
	if err != nil {
		return "", false, err
	}
	defer rows.Close()

	var max string
	found := false
	for rows.Next() {
		var ts string
		if err := rows.Scan(&ts); err != nil {
			return "", false, err
		}
		if !found || post.CompareTimestamps(ts, max) > 0 {
			max = ts
			found = true
		}
	}
	return max, found, rows.Err()
}

// validText replaces invalid UTF-8 so Go rune counts and SQLite character
// counts agree on stored text.
func validText(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var r Record
	var mediaJSON, capturedAt, payload string
	err := row.Scan(
		&r.Key, &r.Author, &r.Handle, &r.Content, &r.Timestamp, &r.Likes, &r.Retweets, &r.Replies,
		&r.HasMedia, &r.MediaDescription, &r.MediaType, &mediaJSON, &r.ScreenshotPath, &r.IsAd,
		&capturedAt, &r.Rewritten, &payload,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(mediaJSON), &r.MediaURLs); err != nil || r.MediaURLs == nil {
		r.MediaURLs = []string{}
	}
	if r.CapturedAt, err = time.Parse(timeLayout, capturedAt); err != nil {
		return nil, fmt.Errorf("record %s: bad captured_at %q: %w", r.Key, capturedAt, err)
	}
	if r.Article, err = decodeArticle(payload); err != nil {
		return nil, fmt.Errorf("record %s: %w", r.Key, err)
	}
	return &r, nil
}

func encodeArticle(a *post.Article) (string, error) {
	if a == nil {
		return "", nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeArticle(payload string) (*post.Article, error) {
	if payload == "" {
		return nil, nil
	}
	var a post.Article
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return nil, fmt.Errorf("bad rewritten payload: %w", err)
	}
	return &a, nil
}
