package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"candleBacktester/internal/ports"
)

// SlogLogger implements the ports.Logger interface on top of log/slog.
type SlogLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

var _ ports.Logger = (*SlogLogger)(nil)

// ParseLevel converts a string level to a slog level. Unknown strings map to Info.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewSlogLogger creates a text logger writing to os.Stderr.
func NewSlogLogger(level slog.Level) *SlogLogger {
	return NewSlogLoggerWithWriter(os.Stderr, level)
}

// NewSlogLoggerWithWriter creates a text logger writing to w.
func NewSlogLoggerWithWriter(w io.Writer, level slog.Level) *SlogLogger {
	if w == nil {
		w = os.Stderr
	}
	lv := new(slog.LevelVar)
	lv.Set(level)
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv})
	return &SlogLogger{logger: slog.New(handler), level: lv}
}

// SetLevel changes the threshold at runtime.
func (l *SlogLogger) SetLevel(level slog.Level) {
	l.level.Set(level)
}

func (l *SlogLogger) log(ctx context.Context, level slog.Level, msg string, err error, fields ...map[string]interface{}) {
	if !l.logger.Enabled(ctx, level) {
		return
	}

	var attrs []slog.Attr
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	for _, f := range fields {
		keys := make([]string, 0, len(f))
		for k := range f {
			keys = append(keys, k)
		}
		// stable output order
		sort.Strings(keys)
		for _, k := range keys {
			attrs = append(attrs, slog.Any(k, f[k]))
		}
	}

	l.logger.LogAttrs(ctx, level, msg, attrs...)
}

// Debug logs a message at Debug level.
func (l *SlogLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log(ctx, slog.LevelDebug, msg, nil, fields...)
}

// Info logs a message at Info level.
func (l *SlogLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log(ctx, slog.LevelInfo, msg, nil, fields...)
}

// Warn logs a message at Warning level.
func (l *SlogLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log(ctx, slog.LevelWarn, msg, nil, fields...)
}

// Error logs an error message at Error level.
func (l *SlogLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	l.log(ctx, slog.LevelError, msg, err, fields...)
}
