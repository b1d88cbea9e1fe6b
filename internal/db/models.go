package db

import (
	"time"

	"github.com/user/shotpost/internal/post"
)

// Record is a stored post. Every field of post.Extracted is kept; the
// article is attached once the post has been rewritten.
type Record struct {
	Key              string        `json:"key"`
	Author           string        `json:"author"`
	Handle           string        `json:"handle"`
	Content          string        `json:"content"`
	Timestamp        string        `json:"timestamp"`
	Likes            string        `json:"likes"`
	Retweets         string        `json:"retweets"`
	Replies          string        `json:"replies"`
	HasMedia         bool          `json:"has_media"`
	MediaDescription string        `json:"media_description"`
	MediaType        string        `json:"media_type"`
	MediaURLs        []string      `json:"media_urls"`
	ScreenshotPath   string        `json:"screenshot_path"`
	IsAd             bool          `json:"is_ad"`
	CapturedAt       time.Time     `json:"captured_at"`
	Rewritten        bool          `json:"rewritten"`
	Article          *post.Article `json:"article,omitempty"`
}

// NewRecord builds the stored form of an extracted post.
func NewRecord(p post.Extracted, screenshotPath string, capturedAt time.Time) *Record {
	p.Handle, p.Content = validText(p.Handle), validText(p.Content)
	r := &Record{
		Key:              post.DeriveKey(p.Handle, p.Content, p.Timestamp),
		Author:           p.Author,
		Handle:           p.Handle,
		Content:          p.Content,
		Timestamp:        p.Timestamp,
		Likes:            p.Likes,
		Retweets:         p.Retweets,
		Replies:          p.Replies,
		HasMedia:         p.HasMedia,
		MediaDescription: p.MediaDescription,
		MediaURLs:        []string{},
		ScreenshotPath:   screenshotPath,
		IsAd:             p.IsAd,
		CapturedAt:       capturedAt,
	}
	if p.HasMedia {
		r.MediaType = "image"
	}
	return r
}

// SyncState is the single watermark row. An empty LastSeenTimestamp means
// nothing has been processed yet.
type SyncState struct {
	LastSeenTimestamp string    `json:"last_seen_timestamp"`
	LastSyncAt        time.Time `json:"last_sync_at"`
}

type HandleCount struct {
	Handle string `json:"handle"`
	Count  int    `json:"count"`
}

type Stats struct {
	Total     int           `json:"total"`
	Last24h   int           `json:"last_24h"`
	Rewritten int           `json:"rewritten"`
	ByHandle  []HandleCount `json:"by_handle"`
}
