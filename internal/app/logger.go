package app

import (
	"io"
	"log/slog"
	"strings"
)

// logLevels maps the CLI's level names onto slog levels. A name not in the
// map resolves to the zero value, slog.LevelInfo, so a retrieval job never
// fails over its logging configuration.
var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// newLogger builds the app's isolated logger. The process-global slog
// default is left untouched: pipelines run side by side in tests, and
// long downloads log through the context logger rather than a global.
func newLogger(level, format string, outW io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logLevels[strings.ToLower(level)]}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(outW, opts))
	}
	return slog.New(slog.NewTextHandler(outW, opts))
}
