// Package observability carries per-turn logging fields through contexts.
package observability

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

type ctxKey int

const (
	ctxKeySessionKey ctxKey = iota
	ctxKeyTurnID
	ctxKeyRequestID
)

// NewLogger builds the process JSON logger at the given level name.
func NewLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
}

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
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

// NewTurnID returns a fresh identifier for one chat turn.
func NewTurnID() string {
	return uuid.NewString()
}

// WithSessionKey stores the session key in ctx.
func WithSessionKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ctxKeySessionKey, key)
}

// SessionKeyFromContext returns the session key, or "".
func SessionKeyFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeySessionKey).(string)
	return v
}

// WithTurnID stores the turn id in ctx.
func WithTurnID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyTurnID, id)
}

// TurnIDFromContext returns the turn id, or "".
func TurnIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyTurnID).(string)
	return v
}

// WithRequestID stores the HTTP request id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// LoggerFromContext returns the default logger with whichever of
// session_key, turn_id and request_id are present in ctx.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if v := SessionKeyFromContext(ctx); v != "" {
		logger = logger.With("session_key", v)
	}
	if v := TurnIDFromContext(ctx); v != "" {
		logger = logger.With("turn_id", v)
	}
	if v, _ := ctx.Value(ctxKeyRequestID).(string); v != "" {
		logger = logger.With("request_id", v)
	}
	return logger
}
