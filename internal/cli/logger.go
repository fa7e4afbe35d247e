package cli

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/ctagard/cdbg/internal/errors"
)

// levelCritical sits above Error for messages that end the command.
const levelCritical = slog.LevelError + 4

// NewCommandLogger creates a structured logger writing to w at the given
// verbosity: debug, info, warning (or warn), error, critical or none.
// When w is a terminal, uses slog.TextHandler for human-readable output.
// Otherwise (CI, scripts, an MCP or DAP client reading stdout) uses
// slog.JSONHandler for machine-parseable output.
func NewCommandLogger(w io.Writer, verbosity string) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(verbosity) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "", "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	case "critical":
		level = levelCritical
	case "none":
		return slog.New(slog.DiscardHandler), nil
	default:
		return nil, errors.InvalidParameter("verbosity", verbosity,
			"one of debug, info, warning, error, critical, none")
	}

	var handler slog.Handler
	options := &slog.HandlerOptions{Level: level}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		handler = slog.NewTextHandler(w, options)
	} else {
		handler = slog.NewJSONHandler(w, options)
	}
	return slog.New(handler), nil
}
