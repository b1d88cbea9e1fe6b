package logging

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// New creates a timestamped key/value logger writing to w.
// Unknown levels fall back to info.
func New(w io.Writer, level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}

	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           lvl,
	})
}

// Stderr is the logger used by the CLI commands.
func Stderr(level string) *log.Logger {
	return New(os.Stderr, level)
}

// Discard returns a logger that drops everything, for tests and silent runs.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
