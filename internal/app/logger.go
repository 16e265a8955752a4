package app

import (
	"io"
	"log/slog"

	"github.com/zooba/esdlc/internal/cli"
)

// newLogger builds the app's isolated slog.Logger from the parsed command
// line. It does not touch the global logger. The console command quiets to
// warn unless -log-level was given explicitly, so interactive output is not
// interleaved with log records.
func newLogger(cfg *cli.Config, outW io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if cfg.Command == "console" && !cfg.LogLevelSet {
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(outW, opts)
	} else {
		handler = slog.NewTextHandler(outW, opts)
	}
	return slog.New(handler)
}
