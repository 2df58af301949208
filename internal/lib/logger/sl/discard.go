package sl

import (
	"io"
	"log/slog"
)

// NewDiscardLogger returns a logger that drops every record. Used by tests
// and by components constructed without a logger.
func NewDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
