package ingest

import (
	"context"

	"github.com/user/shotpost/internal/post"
)

type prefixChecker interface {
	ExistsByContentPrefix(ctx context.Context, handle, content string, n int) (bool, error)
}

// Deduplicator treats a post as seen when the same handle already has a
// stored post starting with the same prefixLen characters. Distinct posts
// that share that prefix are also reported as duplicates.
type Deduplicator struct {
	store     prefixChecker
	prefixLen int
}

func NewDeduplicator(store prefixChecker, prefixLen int) *Deduplicator {
	if prefixLen <= 0 {
		prefixLen = post.KeyPrefixLen
	}
	return &Deduplicator{store: store, prefixLen: prefixLen}
}

func (d *Deduplicator) IsDuplicate(ctx context.Context, handle, content string) (bool, error) {
	return d.store.ExistsByContentPrefix(ctx, handle, content, d.prefixLen)
}
