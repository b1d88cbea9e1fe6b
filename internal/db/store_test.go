package db

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/user/shotpost/internal/post"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	tmpDir, _ := os.MkdirTemp("", "shotpost-test")
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store, err := NewStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewStoreMigrates(t *testing.T) {
	store := newTestStore(t)
	if store.SchemaVersion() != 2 {
		t.Errorf("Expected schema version 2, got %d", store.SchemaVersion())
	}

	st, err := store.SyncState(context.Background())
	if err != nil {
		t.Fatalf("Failed to read sync state: %v", err)
	}
	if st.LastSeenTimestamp != "" || !st.LastSyncAt.IsZero() {
		t.Errorf("Expected empty sync state, got %+v", st)
	}
}

func TestSaveIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := post.Extracted{Handle: "alice", Content: "Hello world", Timestamp: "2h"}
	inserted, err := store.Save(ctx, NewRecord(p, "a.png", time.Now()))
	if err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	if !inserted {
		t.Error("Expected inserted=true for new record")
	}

	inserted, err = store.Save(ctx, NewRecord(p, "b.png", time.Now()))
	if err != nil {
		t.Fatalf("Failed to save duplicate: %v", err)
	}
	if inserted {
		t.Error("Expected inserted=false for duplicate key")
	}

	count, _ := store.Count(ctx)
	if count != 1 {
		t.Errorf("Expected 1 record, got %d", count)
	}

	got, err := store.Get(ctx, post.DeriveKey("alice", "Hello world", "2h"))
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if got.ScreenshotPath != "a.png" {
		t.Errorf("Expected first write to win, got screenshot %q", got.ScreenshotPath)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	captured := time.Date(2026, 3, 1, 12, 30, 0, 123456789, time.FixedZone("X", 3600))
	p := post.Extracted{
		Author:           "Alice",
		Handle:           "alice",
		Content:          "Photo from the trail",
		Timestamp:        "2026-03-01T11:00:00Z",
		Likes:            "1.2K",
		Retweets:         "30",
		Replies:          "4",
		HasMedia:         true,
		MediaDescription: "a mountain",
	}
	r := NewRecord(p, "shot.png", captured)
	if _, err := store.Save(ctx, r); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	got, err := store.Get(ctx, r.Key)
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if !got.CapturedAt.Equal(captured.Truncate(time.Millisecond)) {
		t.Errorf("CapturedAt = %v, want %v", got.CapturedAt, captured)
	}
	got.CapturedAt = r.CapturedAt
	if !reflect.DeepEqual(got, r) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, r)
	}
	if got.MediaType != "image" {
		t.Errorf("MediaType = %q", got.MediaType)
	}
}

func TestGetMissing(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestExistsByContentPrefix(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	long := "Thread about Go generics and why constraints matter more than you think when designing library APIs for other people"
	store.Save(ctx, NewRecord(post.Extracted{Handle: "carol", Content: long, Timestamp: "1h"}, "", time.Now()))

	cases := []struct {
		name    string
		handle  string
		content string
		want    bool
	}{
		{"same content", "carol", long, true},
		{"same prefix different tail", "carol", long[:100] + " but a different ending", true},
		{"other handle", "dave", long, false},
		{"different prefix", "carol", "Something else entirely", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := store.ExistsByContentPrefix(ctx, tc.handle, tc.content, 100)
			if err != nil {
				t.Fatalf("ExistsByContentPrefix: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestExistsByContentPrefixInvalidUTF8(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	raw := "ab\xffcd\xfe tail one"
	rec := NewRecord(post.Extracted{Handle: "erin", Content: raw}, "", time.Now())
	if _, err := store.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !utf8.ValidString(rec.Content) {
		t.Errorf("stored content %q is not valid UTF-8", rec.Content)
	}

	for _, n := range []int{3, 6} {
		got, err := store.ExistsByContentPrefix(ctx, "erin", "ab\xffcd\xfe tail two", n)
		if err != nil {
			t.Fatalf("ExistsByContentPrefix: %v", err)
		}
		if !got {
			t.Errorf("n=%d: expected raw and stored content to share the prefix", n)
		}
	}
	if got, _ := store.ExistsByContentPrefix(ctx, "erin", "ab\xffcX", 5); got {
		t.Error("Expected a difference inside the prefix to count as new")
	}
}

func TestMaxTimestampMixedFormats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, ts := range []string{"5h", "2026-01-02T10:00:00Z", "3h", "Jan 5, 2026", "yesterday"} {
		store.Save(ctx, NewRecord(post.Extracted{Handle: "h", Content: "c" + ts, Timestamp: ts}, "", time.Now()))
	}
	got, _, err := store.MaxTimestamp(ctx)
	if err != nil {
		t.Fatalf("MaxTimestamp: %v", err)
	}
	if got != "Jan 5, 2026" {
		t.Errorf("MaxTimestamp = %q, want the newest absolute timestamp", got)
	}
}

func TestAttachRewrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r := NewRecord(post.Extracted{Handle: "alice", Content: "Hello world"}, "", time.Now())
	store.Save(ctx, r)

	pending, _ := store.ListUnrewritten(ctx, 0)
	if len(pending) != 1 {
		t.Fatalf("Expected 1 pending record, got %d", len(pending))
	}

	article := &post.Article{
		Title:          "Hello",
		Content:        "A greeting to the world.",
		Tags:           []string{"greeting"},
		OriginalAuthor: "Alice",
		OriginalHandle: "alice",
	}
	if err := store.AttachRewrite(ctx, r.Key, article); err != nil {
		t.Fatalf("Failed to attach rewrite: %v", err)
	}

	got, _ := store.Get(ctx, r.Key)
	if !got.Rewritten {
		t.Error("Expected rewritten flag to be set")
	}
	if !reflect.DeepEqual(got.Article, article) {
		t.Errorf("Article = %+v, want %+v", got.Article, article)
	}

	pending, _ = store.ListUnrewritten(ctx, 0)
	if len(pending) != 0 {
		t.Errorf("Expected no pending records, got %d", len(pending))
	}

	if err := store.AttachRewrite(ctx, "missing", article); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing key, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	a := NewRecord(post.Extracted{Handle: "a", Content: "first"}, "", base)
	b := NewRecord(post.Extracted{Handle: "b", Content: "second"}, "", base.Add(time.Minute))
	store.Save(ctx, a)
	store.Save(ctx, b)
	store.AttachRewrite(ctx, a.Key, &post.Article{Title: "t", Content: "c"})

	all, _ := store.List(ctx, FilterAll, 0)
	if len(all) != 2 || all[0].Key != b.Key {
		t.Errorf("Expected newest first, got %v", keys(all))
	}
	done, _ := store.List(ctx, FilterRewritten, 0)
	if len(done) != 1 || done[0].Key != a.Key {
		t.Errorf("Rewritten filter = %v", keys(done))
	}
	pending, _ := store.List(ctx, FilterPending, 0)
	if len(pending) != 1 || pending[0].Key != b.Key {
		t.Errorf("Pending filter = %v", keys(pending))
	}
	limited, _ := store.List(ctx, FilterAll, 1)
	if len(limited) != 1 {
		t.Errorf("Expected limit to apply, got %d", len(limited))
	}
}

func TestSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Save(ctx, NewRecord(post.Extracted{Handle: "gopher", Content: "new release"}, "", time.Now()))
	store.Save(ctx, NewRecord(post.Extracted{Handle: "bob", Content: "I love gopher plushies"}, "", time.Now()))
	store.Save(ctx, NewRecord(post.Extracted{Handle: "eve", Content: "100% done"}, "", time.Now()))

	got, err := store.Search(ctx, "gopher", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[0].Handle != "gopher" {
		t.Errorf("Expected handle match first, got %v", handles(got))
	}

	got, _ = store.Search(ctx, "0%", 10)
	if len(got) != 1 || got[0].Handle != "eve" {
		t.Errorf("Expected literal percent match, got %v", handles(got))
	}

	got, _ = store.Search(ctx, "", 10)
	if len(got) != 3 {
		t.Errorf("Expected empty query to list all, got %d", len(got))
	}
}

func TestStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	old := NewRecord(post.Extracted{Handle: "alice", Content: "old"}, "", now.Add(-48*time.Hour))
	store.Save(ctx, old)
	store.Save(ctx, NewRecord(post.Extracted{Handle: "alice", Content: "new"}, "", now.Add(-time.Hour)))
	store.Save(ctx, NewRecord(post.Extracted{Handle: "bob", Content: "hi"}, "", now))
	store.AttachRewrite(ctx, old.Key, &post.Article{Title: "t", Content: "c"})

	st, err := store.Stats(ctx, now)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Total != 3 || st.Last24h != 2 || st.Rewritten != 1 {
		t.Errorf("Stats = %+v", st)
	}
	want := []HandleCount{{"alice", 2}, {"bob", 1}}
	if !reflect.DeepEqual(st.ByHandle, want) {
		t.Errorf("ByHandle = %v, want %v", st.ByHandle, want)
	}
}

func TestMaxTimestamp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, ok, _ := store.MaxTimestamp(ctx); ok {
		t.Error("Expected no timestamp on empty store")
	}

	for _, ts := range []string{"2026-01-02T10:00:00Z", "2026-01-10T08:00:00Z", "", "2026-01-05T23:59:00Z"} {
		store.Save(ctx, NewRecord(post.Extracted{Handle: "h", Content: "c" + ts, Timestamp: ts}, "", time.Now()))
	}

	got, ok, err := store.MaxTimestamp(ctx)
	if err != nil || !ok {
		t.Fatalf("MaxTimestamp: %v %v", ok, err)
	}
	if got != "2026-01-10T08:00:00Z" {
		t.Errorf("MaxTimestamp = %q", got)
	}
}

func TestWatermarkCompareAndSet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ok, err := store.CompareAndSetWatermark(ctx, "", "2026-01-01T00:00:00Z")
	if err != nil || !ok {
		t.Fatalf("Expected first swap to succeed: %v %v", ok, err)
	}

	ok, _ = store.CompareAndSetWatermark(ctx, "", "2026-02-01T00:00:00Z")
	if ok {
		t.Error("Expected stale swap to fail")
	}

	st, _ := store.SyncState(ctx)
	if st.LastSeenTimestamp != "2026-01-01T00:00:00Z" {
		t.Errorf("Watermark = %q", st.LastSeenTimestamp)
	}

	if err := store.SetWatermark(ctx, ""); err != nil {
		t.Fatalf("SetWatermark: %v", err)
	}
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := store.TouchSync(ctx, at); err != nil {
		t.Fatalf("TouchSync: %v", err)
	}
	st, _ = store.SyncState(ctx)
	if st.LastSeenTimestamp != "" || !st.LastSyncAt.Equal(at) {
		t.Errorf("SyncState = %+v", st)
	}
}

func TestSyncRowRecreated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.db.ExecContext(ctx, `DELETE FROM sync_state`); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ok, err := store.CompareAndSetWatermark(ctx, "", "2h")
	if err != nil || !ok {
		t.Errorf("Expected swap on recreated row: %v %v", ok, err)
	}
}

func keys(rs []Record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Key
	}
	return out
}

func handles(rs []Record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Handle
	}
	return out
}
