// Package logger configures structured diagnostic logging for bpatch.
// It uses log/slog, writing to stderr or to a rotating file via lumberjack.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logger configuration options.
type Config struct {
	// LogDir is the directory where log files are stored.
	// If empty, logs go to stderr.
	LogDir string

	// Debug enables debug-level logging. Otherwise only warnings and
	// errors are emitted, leaving the terminal to the summary output.
	Debug bool

	// JSON enables JSON output format. If false, text format is used.
	JSON bool
}

// Init initializes the global slog logger with the given configuration.
func Init(cfg Config) error {
	logger, err := New(cfg, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

// New builds a logger writing to w, or to a rotating file when LogDir is set.
func New(cfg Config, w io.Writer) (*slog.Logger, error) {
	level := slog.LevelWarn
	if cfg.Debug {
		level = slog.LevelDebug
	}

	writer := w
	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, err
		}
		// Files capture everything; the level only limits the terminal.
		level = slog.LevelDebug
		writer = &lumberjack.Logger{
			Filename:   filepath.Join(cfg.LogDir, "bpatch.log"),
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
			Compress:   true,
		}
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.Debug,
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	return slog.New(handler).With("component", "bpatch"), nil
}
