package infra

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger creates a JSON slog.Logger writing to stderr.
// stdout carries the Singer message stream, so nothing else may write there.
// When cfg.Logging.File is set, logs are also written to a rotated file.
func NewLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(logWriter(cfg, os.Stderr), &slog.HandlerOptions{
		Level: ParseLevel(cfg.Logging.Level),
	}))
}

func logWriter(cfg *Config, stderr io.Writer) io.Writer {
	if cfg.Logging.File == "" {
		return stderr
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
		// Fallback to stderr only if directory creation fails
		return stderr
	}

	fileLogger := &lumberjack.Logger{
		Filename:   cfg.Logging.File,
		MaxSize:    10, // Megabytes
		MaxBackups: 3,
		MaxAge:     28, // Days
		Compress:   true,
	}

	return io.MultiWriter(stderr, fileLogger)
}

// ParseLevel maps a config level name to a slog.Level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
