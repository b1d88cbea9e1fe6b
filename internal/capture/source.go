// Package capture adapts external screenshot producers to the pipeline.
package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/user/shotpost/internal/config"
)

// Request describes one capture run for an account.
type Request struct {
	Account string
	Count   int
	// Since is the current watermark, "" when nothing has been processed.
	Since string
	// LastSyncAt is the wall-clock time of the previous completed batch.
	LastSyncAt time.Time
	// Force ignores LastSyncAt and returns everything available.
	Force bool
}

// Source produces ordered screenshot paths for an account.
type Source interface {
	// Name returns the source identifier (dir, command)
	Name() string
	// Available reports whether the source can run at all
	Available() bool
	// Capture returns screenshot paths in processing order, possibly none
	Capture(ctx context.Context, req Request) ([]string, error)
}

// FromConfig builds the configured source.
func FromConfig(cfg config.CaptureConfig) (Source, error) {
	switch cfg.Source {
	case "dir":
		return NewDirSource(cfg.Dir), nil
	case "command":
		return NewCommandSource(cfg.Command), nil
	default:
		return nil, fmt.Errorf("unknown capture source: %s", cfg.Source)
	}
}
