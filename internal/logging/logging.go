// Package logging provides structured logging for the sync core using slog.
package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	defaultLogger *slog.Logger
	defaultOnce   sync.Once
)

// Options configures the logger behavior.
type Options struct {
	// Level sets the minimum log level. Defaults to slog.LevelInfo.
	Level slog.Level
	// Output sets the output destination. Defaults to os.Stderr.
	Output io.Writer
	// JSON enables JSON output format instead of text.
	JSON bool
}

// New creates a new logger with the given options.
func New(opts Options) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(opts.Output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(opts.Output, handlerOpts)
	}

	return slog.New(handler)
}

// Default returns the default logger, creating it if necessary.
func Default() *slog.Logger {
	defaultOnce.Do(func() {
		defaultLogger = New(Options{Level: slog.LevelInfo})
	})
	return defaultLogger
}

// SetDefault sets the default logger and makes it slog's default too.
func SetDefault(logger *slog.Logger) {
	defaultOnce.Do(func() {})
	defaultLogger = logger
	slog.SetDefault(logger)
}

// Debug logs at debug level using the default logger.
func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

// Info logs at info level using the default logger.
func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

// Warn logs at warn level using the default logger.
func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

// Error logs at error level using the default logger.
func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}

// Common attribute keys used across the codebase.
const (
	KeyDevice    = "device"
	KeyEntity    = "entity"
	KeyConflict  = "conflict"
	KeyStrategy  = "strategy"
	KeyOperation = "operation"
	KeyCount     = "count"
	KeyError     = "error"
)

// Device returns a slog attribute identifying a device.
func Device(id string) slog.Attr {
	return slog.String(KeyDevice, id)
}

// Entity returns a slog attribute identifying an entity as type/id.
func Entity(entityType, entityID string) slog.Attr {
	return slog.String(KeyEntity, entityType+"/"+entityID)
}

// Conflict returns a slog attribute identifying a conflict record.
func Conflict(id string) slog.Attr {
	return slog.String(KeyConflict, id)
}

// Strategy returns a slog attribute for a resolution strategy.
func Strategy(s string) slog.Attr {
	return slog.String(KeyStrategy, s)
}

// Operation returns a slog attribute for the operation being performed.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Count returns a slog attribute for item counts.
func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}

// Err returns a slog attribute for an error value.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any(KeyError, err)
}
