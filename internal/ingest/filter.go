package ingest

import "github.com/user/shotpost/internal/post"

// Extraction is a post read off the screenshot at Path.
type Extraction struct {
	Path string
	Post post.Extracted
}

// FilterAds drops promoted posts and keeps the rest in order. It runs before
// anything touches the store, so ads are never saved, deduplicated or
// rewritten.
func FilterAds(items []Extraction) []Extraction {
	kept := make([]Extraction, 0, len(items))
	for _, it := range items {
		if it.Post.IsAd {
			continue
		}
		kept = append(kept, it)
	}
	return kept
}
