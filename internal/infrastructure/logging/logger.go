package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nerrad567/pm2-watchdog/internal/infrastructure/config"
)

// Logger wraps slog.Logger with watchdog-specific functionality.
//
// It provides structured logging with default fields and level-based filtering,
// and optionally mirrors records into rotated log files.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger

	// files are the rotated log files owned by this logger (nil for children).
	files []io.Closer

	// detached stops file output once files are closed. Shared with children.
	detached *atomic.Bool
}

// New creates a new Logger with the specified configuration.
//
// It configures:
//   - Output format (JSON for production, text for development)
//   - Log level filtering
//   - Default fields (service name, version)
//   - Output destination, plus the combined and error log files if configured
//
// Parameters:
//   - cfg: Logging configuration from config.yaml
//   - version: Application version for default field
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{
		Level: level,
	}

	var console slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		console = slog.NewTextHandler(output, opts)
	default:
		console = slog.NewJSONHandler(output, opts)
	}

	handlers := []slog.Handler{console}
	var files []io.Closer

	// Files are always JSON so they stay machine-parsable.
	if cfg.File.Path != "" {
		combined := newRotatingFile(cfg.File, cfg.File.Path)
		files = append(files, combined)
		handlers = append(handlers, slog.NewJSONHandler(combined, opts))
	}
	if cfg.File.ErrorPath != "" {
		errorFile := newRotatingFile(cfg.File, cfg.File.ErrorPath)
		files = append(files, errorFile)
		handlers = append(handlers, slog.NewJSONHandler(errorFile, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	detached := &atomic.Bool{}
	var handler slog.Handler = console
	if len(handlers) > 1 {
		handler = &fanoutHandler{handlers: handlers, detached: detached}
	}

	// Add default fields
	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "pm2-watchdog"),
		slog.String("version", version),
	})

	return &Logger{
		Logger:   slog.New(handler),
		files:    files,
		detached: detached,
	}
}

// newRotatingFile builds a size-rotated log file writer.
func newRotatingFile(cfg config.FileLoggingConfig, path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
}

// parseLevel converts a string log level to slog.Level.
//
// Supported levels: debug, info, warn, error
// Defaults to info if unrecognised.
func parseLevel(level string) slog.Level {
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

// With returns a new Logger with additional default attributes.
//
// The child shares the parent's files but does not own them; only the
// logger returned by New closes them.
//
// Example:
//
//	cycleLogger := logger.With("component", "cycle")
//	cycleLogger.Info("cycle started") // Includes component=cycle
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// Close flushes and closes any log files opened by New.
// Console output is left untouched. Records logged after Close, through this
// logger or any of its children, go to the console only.
func (l *Logger) Close() error {
	if l.detached != nil {
		l.detached.Store(true)
	}

	var errs []error
	for _, f := range l.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	l.files = nil
	return errors.Join(errs...)
}

// Release implements shutdown.Releaser.
func (l *Logger) Release(_ context.Context) error {
	return l.Close()
}

// Default creates a default logger for use before configuration is loaded.
//
// This logger outputs to stdout in JSON format at info level.
// It should only be used during early startup before config is available.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}

// fanoutHandler forwards each record to every handler that accepts its level.
// handlers[0] is the console; the rest write to files and are skipped once
// detached is set.
type fanoutHandler struct {
	handlers []slog.Handler
	detached *atomic.Bool
}

func (h *fanoutHandler) active() []slog.Handler {
	if h.detached != nil && h.detached.Load() {
		return h.handlers[:1]
	}
	return h.handlers
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.active() {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, handler := range h.active() {
		if !handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := handler.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: next, detached: h.detached}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &fanoutHandler{handlers: next, detached: h.detached}
}
