package logger

import (
	"io"
	"log/slog"
)

// NewDiscardLogger returns a Logger that drops everything. Intended for tests.
func NewDiscardLogger() Logger {
	return &moduleLogger{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		level:  slog.LevelError + 1,
	}
}

// NewBufferLogger returns a Logger writing JSON records to w at the given
// level. Intended for tests that assert on log output.
func NewBufferLogger(w io.Writer, level LogLevel) Logger {
	lvl := parseLogLevel(string(level))
	return &moduleLogger{
		logger: slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})),
		level:  lvl,
	}
}
