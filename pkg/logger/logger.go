package logger

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

// Logger wraps slog for structured logging.
type Logger struct {
	*slog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level       string
	Format      string // json or text
	AddSource   bool
	Service     string
	Version     string
	Environment string
}

// contextKey is the type for context keys.
type contextKey string

const sessionIDKey contextKey = "session_id"

// New creates a new structured logger.
func New(cfg Config) *Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", cfg.Service),
		slog.String("version", cfg.Version),
		slog.String("environment", cfg.Environment),
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewDefault creates a default logger.
func NewDefault() *Logger {
	return New(Config{
		Level:       "info",
		Format:      "json",
		AddSource:   true,
		Service:     "socks5-proxy",
		Version:     "1.0.0",
		Environment: getEnv("ENVIRONMENT", "development"),
	})
}

// WithSessionID adds a session correlation ID to the logger.
func (l *Logger) WithSessionID(id uuid.UUID) *Logger {
	return &Logger{
		Logger: l.With(slog.String("session_id", id.String())),
	}
}

// WithContext extracts a session ID from context and adds it to the logger.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if id := ctx.Value(sessionIDKey); id != nil {
		if sid, ok := id.(uuid.UUID); ok {
			return l.WithSessionID(sid)
		}
	}
	return l
}

// WithError adds an error to the logger.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger: l.With(slog.String("error", err.Error())),
	}
}

// WithField adds a custom field to the logger.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{
		Logger: l.With(slog.Any(key, value)),
	}
}

// WithFields adds multiple custom fields to the logger.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	attrs := make([]any, 0, len(fields))
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	return &Logger{
		Logger: l.With(attrs...),
	}
}

// LogAccepted logs a newly accepted client connection.
func (l *Logger) LogAccepted(sessionID uuid.UUID, remoteAddr string) {
	l.Info("connection_accepted",
		slog.String("session_id", sessionID.String()),
		slog.String("remote_addr", remoteAddr),
	)
}

// LogAuth logs an RFC 1929 username/password authentication attempt.
func (l *Logger) LogAuth(sessionID uuid.UUID, success bool) {
	l.Info("auth_attempt",
		slog.String("session_id", sessionID.String()),
		slog.Bool("success", success),
	)
}

// LogUpstream logs a successful upstream dial for a CONNECT request.
func (l *Logger) LogUpstream(sessionID uuid.UUID, localAddr, remoteAddr string) {
	l.Info("upstream_connected",
		slog.String("session_id", sessionID.String()),
		slog.String("local_addr", localAddr),
		slog.String("remote_addr", remoteAddr),
	)
}

// LogRelayEnded logs the byte counters and duration of a finished relay.
func (l *Logger) LogRelayEnded(sessionID uuid.UUID, bytesUp, bytesDown int64, duration time.Duration) {
	l.Info("relay_ended",
		slog.String("session_id", sessionID.String()),
		slog.Int64("bytes_up", bytesUp),
		slog.Int64("bytes_down", bytesDown),
		slog.Duration("duration", duration),
	)
}

// LogSessionError logs a protocol or I/O failure for a session's current phase.
func (l *Logger) LogSessionError(sessionID uuid.UUID, phase string, err error) {
	l.Warn("session_error",
		slog.String("session_id", sessionID.String()),
		slog.String("phase", phase),
		slog.String("error", err.Error()),
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Global logger instance.
var global *Logger

func init() {
	global = NewDefault()
}

// Global returns the global logger instance.
func Global() *Logger {
	return global
}

// SetGlobal sets the global logger instance.
func SetGlobal(l *Logger) {
	global = l
}

// Helper functions for the global logger.
func Debug(msg string, args ...any) {
	global.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	global.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	global.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	global.Error(msg, args...)
}

func Fatal(msg string, args ...any) {
	global.Error(msg, args...)
	os.Exit(1)
}
