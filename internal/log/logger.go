// Package log is a thin component-tagged wrapper around log/slog.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Field and component names shared across packages.
const (
	FieldComponent = "component"
	FieldError     = "error"
	FieldFile      = "file"
	FieldRunID     = "run_id"
	FieldRows      = "rows"
	FieldModel     = "model"
	FieldProvider  = "provider"
	FieldDuration  = "duration_ms"
	FieldStatus    = "status_code"
	FieldMethod    = "method"
	FieldPath      = "path"

	ComponentApp      = "app"
	ComponentAnalysis = "analysis"
	ComponentLLM      = "llm"
	ComponentArchive  = "archive"
	ComponentAMQP     = "amqp"
	ComponentHTTP     = "http"
)

// Logger wraps slog.Logger and stamps every record with its component.
type Logger struct {
	*slog.Logger
	component string
}

// Config holds logger configuration.
type Config struct {
	Level     slog.Level
	Format    string // "text" or "json"
	Component string
	Output    io.Writer
	Handler   slog.Handler
}

// DefaultConfig logs text at Info level to stderr so stdout stays free for
// reports.
func DefaultConfig() Config {
	return Config{Level: slog.LevelInfo, Format: "text", Component: ComponentApp, Output: os.Stderr}
}

// ParseLevel maps debug/info/warn/error to slog levels; unknown values are Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// New creates a logger from cfg.
func New(cfg Config) *Logger {
	h := cfg.Handler
	if h == nil {
		out := cfg.Output
		if out == nil {
			out = os.Stderr
		}
		opts := &slog.HandlerOptions{Level: cfg.Level}
		if cfg.Format == "json" {
			h = slog.NewJSONHandler(out, opts)
		} else {
			h = slog.NewTextHandler(out, opts)
		}
	}
	comp := cfg.Component
	if comp == "" {
		comp = ComponentApp
	}
	return &Logger{Logger: slog.New(h), component: comp}
}

// Discard returns a logger that drops everything; handy in tests.
func Discard() *Logger {
	return New(Config{Output: io.Discard, Level: slog.LevelError + 1})
}

// With returns a new logger with the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), component: l.component}
}

// WithComponent returns a logger tagged with a different component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger, component: component}
}

// Component returns the logger's component name.
func (l *Logger) Component() string { return l.component }

func (l *Logger) tag(args []any) []any {
	return append([]any{FieldComponent, l.component}, args...)
}

func (l *Logger) Info(msg string, args ...any)  { l.Logger.Info(msg, l.tag(args)...) }
func (l *Logger) Warn(msg string, args ...any)  { l.Logger.Warn(msg, l.tag(args)...) }
func (l *Logger) Error(msg string, args ...any) { l.Logger.Error(msg, l.tag(args)...) }
func (l *Logger) Debug(msg string, args ...any) { l.Logger.Debug(msg, l.tag(args)...) }

func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.Logger.InfoContext(ctx, msg, l.tag(args)...)
}

func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.Logger.ErrorContext(ctx, msg, l.tag(args)...)
}

// SetDefault installs logger as the slog default.
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}
