package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/m-mizutani/clog"
	"github.com/m-mizutani/goerr/v2"
)

type contextKey struct{}

var (
	loggerKey       = contextKey{}
	defaultLogger   *slog.Logger
	defaultLoggerMu sync.RWMutex
)

func init() {
	defaultLogger = New(os.Stderr)
}

// Format selects the log output encoding
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// ParseLevel converts a level name to slog.Level.
// Accepts: "debug", "info", "warn", "warning", "error" (case-insensitive)
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, goerr.New("invalid log level", goerr.V("level", level))
	}
}

// ParseFormat validates a format name
func ParseFormat(format string) (Format, error) {
	switch Format(strings.ToLower(format)) {
	case "", FormatConsole:
		return FormatConsole, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", goerr.New("invalid log format", goerr.V("format", format))
	}
}

type options struct {
	level  slog.Level
	format Format
}

type Option func(*options)

func WithLevel(level slog.Level) Option {
	return func(o *options) { o.level = level }
}

func WithFormat(format Format) Option {
	return func(o *options) { o.format = format }
}

// New creates a logger writing to w. Console output is colored by clog;
// JSON output is meant for log collectors.
func New(w io.Writer, opts ...Option) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	o := options{level: slog.LevelInfo, format: FormatConsole}
	for _, opt := range opts {
		opt(&o)
	}

	if o.format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: o.level}))
	}

	handler := clog.New(
		clog.WithWriter(w),
		clog.WithLevel(o.level),
		clog.WithTimeFmt("15:04:05"),
		clog.WithSource(false),
		clog.WithAttrHook(clog.GoerrHook),
	)
	return slog.New(handler)
}

// Default returns the process-wide logger
func Default() *slog.Logger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

func SetDefault(logger *slog.Logger) {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	defaultLogger = logger
}

// With returns a new context with the logger attached
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// From retrieves the logger from the context, falling back to Default.
func From(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return Default()
}

// ErrAttr is the attribute key convention for errors in log records.
func ErrAttr(err error) slog.Attr {
	return slog.Any("error", err)
}
