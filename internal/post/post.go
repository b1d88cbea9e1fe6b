// Package post holds the domain types shared by the extraction, storage and
// rewrite stages.
package post

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// KeyPrefixLen is the number of content characters that go into a derived key.
const KeyPrefixLen = 100

// Extracted is one post as read off a screenshot. Engagement counters keep
// the formatting shown on screen ("1.2K") and are never parsed.
type Extracted struct {
	Author           string `json:"author"`
	Handle           string `json:"handle"`
	Content          string `json:"content"`
	Timestamp        string `json:"timestamp"`
	Likes            string `json:"likes"`
	Retweets         string `json:"retweets"`
	Replies          string `json:"replies"`
	HasMedia         bool   `json:"hasMedia"`
	MediaDescription string `json:"mediaDescription"`
	IsAd             bool   `json:"isAd"`
}

// Article is the locale-adapted rewrite of a stored post.
type Article struct {
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	Tags           []string `json:"tags"`
	OriginalAuthor string   `json:"originalAuthor"`
	OriginalHandle string   `json:"originalHandle"`
}

// Prefix returns the first n characters (runes) of s.
func Prefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// DeriveKey returns the storage key for a post. It only depends on its
// arguments, so the same post maps to the same key across runs.
func DeriveKey(handle, content, timestamp string) string {
	h := sha256.New()
	h.Write([]byte(handle))
	h.Write([]byte{0})
	h.Write([]byte(Prefix(content, KeyPrefixLen)))
	h.Write([]byte{0})
	h.Write([]byte(timestamp))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:8])
}

// NormalizeTags trims tags and drops blanks and repeats, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "#"))
		if t == "" {
			continue
		}
		k := strings.ToLower(t)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out
}
