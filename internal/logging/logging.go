// Package logging provides a configured slog logger with:
// - TTY detection for human-readable vs JSON output
// - LOG_FORMAT env var override (text/json)
// - LOG_LEVEL env var (debug/info/warn/error)
// - Context-based jobID extraction so every log line in a job's execution
//   path carries its job_id without threading it through every call site.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// ContextKey is a type for context keys used in logging.
type ContextKey string

// JobIDKey is the context key for job ID.
const JobIDKey ContextKey = "log_job_id"

// programLevel is shared by every handler this package constructs, so
// SetLevel adjusts verbosity for the process without recreating the logger.
var programLevel = new(slog.LevelVar)

// WithJobID adds a job ID to the context for logging.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, JobIDKey, jobID)
}

// GetJobID extracts the job ID from context.
func GetJobID(ctx context.Context) string {
	if v := ctx.Value(JobIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// FromContext returns a logger with job_id from context added as an
// attribute, if present. Use this at the start of any job-scoped operation.
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if ctx == nil {
		return logger
	}
	if jobID := GetJobID(ctx); jobID != "" {
		return logger.With("job_id", jobID)
	}
	return logger
}

// New creates a new configured logger.
// Format is determined by:
//  1. LOG_FORMAT env var (text/json)
//  2. TTY detection (text for TTY, JSON otherwise)
//
// Level is determined by LOG_LEVEL env var (debug/info/warn/error, default: info).
func New() *slog.Logger {
	programLevel.Set(parseLogLevel(os.Getenv("LOG_LEVEL")))

	logFormat := os.Getenv("LOG_FORMAT")
	useText := logFormat == "text" || (logFormat == "" && isatty(os.Stdout))

	opts := &slog.HandlerOptions{Level: programLevel, AddSource: true}

	var handler slog.Handler
	if useText {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// SetDefault creates a new logger and sets it as the default slog logger.
// Returns the created logger for additional use.
func SetDefault() *slog.Logger {
	logger := New()
	slog.SetDefault(logger)
	return logger
}

// SetLevel changes the global log level at runtime.
func SetLevel(level slog.Level) {
	programLevel.Set(level)
}

// GetLevel returns the current global log level.
func GetLevel() slog.Level {
	return programLevel.Level()
}

// isatty returns true if the file is a terminal.
func isatty(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
