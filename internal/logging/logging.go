package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ItsHarshjsin/riseup-sub000/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds the process logger. Records always go to stdout; when LogPath is
// set they are also written as JSON to a size-rotated file.
func New(cfg config.Config) (*slog.Logger, io.Closer) {
	options := &slog.HandlerOptions{Level: ParseLevel(cfg.LogLevel)}

	if cfg.LogPath == "" {
		return slog.New(slog.NewTextHandler(os.Stdout, options)), nopCloser{}
	}

	if dir := filepath.Dir(cfg.LogPath); dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	file := &lumberjack.Logger{
		Filename:   cfg.LogPath,
		MaxSize:    positiveOr(cfg.LogMaxSizeMB, 100),
		MaxBackups: positiveOr(cfg.LogMaxBackups, 3),
		MaxAge:     positiveOr(cfg.LogMaxAgeDays, 7),
		Compress:   true,
	}

	writer := io.MultiWriter(os.Stdout, file)
	return slog.New(slog.NewJSONHandler(writer, options)), file
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func positiveOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
