package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"
	// ReviewerKey is the context key for the signed-in reviewer
	ReviewerKey ContextKey = "reviewer"
	// AnalysisIDKey is the context key for the analysis being processed
	AnalysisIDKey ContextKey = "analysis_id"
)

// Config holds logger configuration
type Config struct {
	Level  string    // debug, info, warn, error
	Format string    // json, text
	Output io.Writer // defaults to stdout
}

// Init initializes the global slog logger with the given configuration
func Init(cfg *Config) {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// ParseLevel maps a config string to a slog level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch level {
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

// WithAnalysis returns a context carrying the analysis ID for log lines
func WithAnalysis(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, AnalysisIDKey, id)
}

// WithContext returns a logger with context values extracted
func WithContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		logger = logger.With("request_id", requestID)
	}
	if reviewer, ok := ctx.Value(ReviewerKey).(string); ok && reviewer != "" {
		logger = logger.With("reviewer", reviewer)
	}
	if analysisID, ok := ctx.Value(AnalysisIDKey).(string); ok && analysisID != "" {
		logger = logger.With("analysis_id", analysisID)
	}

	return logger
}

// Info logs at info level with context
func Info(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Info(msg, args...)
}

// Debug logs at debug level with context
func Debug(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Debug(msg, args...)
}

// Warn logs at warn level with context
func Warn(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Warn(msg, args...)
}

// Error logs at error level with context
func Error(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Error(msg, args...)
}
