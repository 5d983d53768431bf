package logger

import (
	"context"
	"fmt"
	"log/slog"
)

type contextKey struct{}

// ctxDepthLogger is implemented by *slogLogger to preserve correct source
// locations through the package-level helpers below, which add one call
// frame on top of the Logger interface methods.
type ctxDepthLogger interface {
	logCtxDepth(level slog.Level, msg string, args ...any)
}

// discardLogger is returned by FromContext when no Logger was attached;
// it never writes anywhere.
var discardLogger Logger = NewLogger(WithQuiet())

// WithLogger attaches l to ctx, retrievable via FromContext.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the Logger attached to ctx, or a no-op Logger if
// none was attached.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(contextKey{}).(Logger); ok {
		return l
	}
	return discardLogger
}

// Debug logs at debug level using the Logger attached to ctx.
func Debug(ctx context.Context, msg string, args ...any) {
	if d, ok := FromContext(ctx).(ctxDepthLogger); ok {
		d.logCtxDepth(slog.LevelDebug, msg, args...)
	}
}

// Info logs at info level using the Logger attached to ctx.
func Info(ctx context.Context, msg string, args ...any) {
	if d, ok := FromContext(ctx).(ctxDepthLogger); ok {
		d.logCtxDepth(slog.LevelInfo, msg, args...)
	}
}

// Warn logs at warn level using the Logger attached to ctx.
func Warn(ctx context.Context, msg string, args ...any) {
	if d, ok := FromContext(ctx).(ctxDepthLogger); ok {
		d.logCtxDepth(slog.LevelWarn, msg, args...)
	}
}

// Error logs at error level using the Logger attached to ctx.
func Error(ctx context.Context, msg string, args ...any) {
	if d, ok := FromContext(ctx).(ctxDepthLogger); ok {
		d.logCtxDepth(slog.LevelError, msg, args...)
	}
}

// Debugf formats and logs at debug level using the Logger attached to ctx.
func Debugf(ctx context.Context, format string, args ...any) {
	if d, ok := FromContext(ctx).(ctxDepthLogger); ok {
		d.logCtxDepth(slog.LevelDebug, fmt.Sprintf(format, args...))
	}
}

// Infof formats and logs at info level using the Logger attached to ctx.
func Infof(ctx context.Context, format string, args ...any) {
	if d, ok := FromContext(ctx).(ctxDepthLogger); ok {
		d.logCtxDepth(slog.LevelInfo, fmt.Sprintf(format, args...))
	}
}

// Warnf formats and logs at warn level using the Logger attached to ctx.
func Warnf(ctx context.Context, format string, args ...any) {
	if d, ok := FromContext(ctx).(ctxDepthLogger); ok {
		d.logCtxDepth(slog.LevelWarn, fmt.Sprintf(format, args...))
	}
}

// Errorf formats and logs at error level using the Logger attached to ctx.
func Errorf(ctx context.Context, format string, args ...any) {
	if d, ok := FromContext(ctx).(ctxDepthLogger); ok {
		d.logCtxDepth(slog.LevelError, fmt.Sprintf(format, args...))
	}
}
