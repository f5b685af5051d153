// Package logging builds the process logger: JSON slog to stdout plus a
// size-rotated file. The hot paths never log; everything that does sits on
// connection, lifecycle or error handling code.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"matchbox/infra/config"
)

// New returns a logger writing to stdout and <dir>/<file>, rotated at
// 50 MB with a handful of compressed backups. Falls back to stderr-only
// if the directory cannot be created.
func New(cfg config.Logging, file string) *slog.Logger {
	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	rotated := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, file),
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     14,
		Compress:   true,
	}
	return slog.New(slog.NewJSONHandler(io.MultiWriter(os.Stdout, rotated), opts))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
