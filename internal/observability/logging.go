// Package observability carries structured logging context through the
// mutation pipeline, so every log line produced inside a boundary can be
// correlated with the session and boundary that caused it.
package observability

import (
	"context"
	"log/slog"
)

// LogContext holds structured logging context information.
type LogContext struct {
	SessionID  string
	BoundaryID string
	Origin     string
	Pulsar     string
}

type logContextKeyType string

const logContextKey logContextKeyType = "log-context"

// WithSessionID adds a session ID to the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	lc := extractLogContext(ctx)
	lc.SessionID = sessionID
	return context.WithValue(ctx, logContextKey, lc)
}

// WithBoundaryID adds a mutation-boundary ID to the context.
func WithBoundaryID(ctx context.Context, boundaryID string) context.Context {
	lc := extractLogContext(ctx)
	lc.BoundaryID = boundaryID
	return context.WithValue(ctx, logContextKey, lc)
}

// WithOrigin adds a mutation origin to the context.
func WithOrigin(ctx context.Context, origin string) context.Context {
	lc := extractLogContext(ctx)
	lc.Origin = origin
	return context.WithValue(ctx, logContextKey, lc)
}

// WithPulsar adds the pulsar designation to the context.
func WithPulsar(ctx context.Context, pulsar string) context.Context {
	lc := extractLogContext(ctx)
	lc.Pulsar = pulsar
	return context.WithValue(ctx, logContextKey, lc)
}

func extractLogContext(ctx context.Context) LogContext {
	if lc, ok := ctx.Value(logContextKey).(LogContext); ok {
		return lc
	}
	return LogContext{}
}

// Attrs returns the slog attributes carried by the context, for callers that
// log through their own logger rather than the package default.
func Attrs(ctx context.Context) []slog.Attr {
	lc := extractLogContext(ctx)
	attrs := []slog.Attr{}

	if lc.SessionID != "" {
		attrs = append(attrs, slog.String("session.id", lc.SessionID))
	}
	if lc.BoundaryID != "" {
		attrs = append(attrs, slog.String("boundary.id", lc.BoundaryID))
	}
	if lc.Origin != "" {
		attrs = append(attrs, slog.String("origin", lc.Origin))
	}
	if lc.Pulsar != "" {
		attrs = append(attrs, slog.String("pulsar", lc.Pulsar))
	}

	return attrs
}

// InfoContext logs an info message with context information.
func InfoContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	slog.LogAttrs(ctx, slog.LevelInfo, msg, append(Attrs(ctx), attrs...)...)
}

// WarnContext logs a warning message with context information.
func WarnContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	slog.LogAttrs(ctx, slog.LevelWarn, msg, append(Attrs(ctx), attrs...)...)
}

// ErrorContext logs an error message with context information.
func ErrorContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	slog.LogAttrs(ctx, slog.LevelError, msg, append(Attrs(ctx), attrs...)...)
}

// DebugContext logs a debug message with context information.
func DebugContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	slog.LogAttrs(ctx, slog.LevelDebug, msg, append(Attrs(ctx), attrs...)...)
}
