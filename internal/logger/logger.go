// Package logger wraps log/slog behind a small interface so callers can
// log without depending on slog directly, matching the teacher's
// functional-option logger construction.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	slogmulti "github.com/samber/slog-multi"
)

// Logger is the structured logging surface used throughout the engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	With(args ...any) Logger
	WithGroup(name string) Logger
}

type options struct {
	debug     bool
	format    string
	quiet     bool
	writer    io.Writer
	writerSet bool
	file      *os.File
}

// Option configures NewLogger.
type Option func(*options)

// WithDebug enables debug-level logging.
func WithDebug() Option { return func(o *options) { o.debug = true } }

// WithFormat selects "json" or "text" output. Text is the default.
func WithFormat(format string) Option { return func(o *options) { o.format = format } }

// WithQuiet suppresses the default stderr writer. It has no effect when an
// explicit WithWriter is also given.
func WithQuiet() Option { return func(o *options) { o.quiet = true } }

// WithWriter sends output to w instead of stderr.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
		o.writerSet = true
	}
}

// WithLogFile additionally fans output out to f via slog-multi.
func WithLogFile(f *os.File) Option { return func(o *options) { o.file = f } }

// NewLogger builds a Logger from the given options.
func NewLogger(opts ...Option) Logger {
	o := &options{writer: os.Stderr}
	for _, opt := range opts {
		opt(o)
	}

	level := slog.LevelInfo
	if o.debug {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{
		Level: level,
		// Source locations are expensive to resolve and only useful in
		// debug builds; production logs omit them entirely.
		AddSource: o.debug,
	}

	var handlers []slog.Handler
	if o.writerSet {
		handlers = append(handlers, newHandler(o.writer, o.format, handlerOpts))
	} else if !o.quiet {
		handlers = append(handlers, newHandler(o.writer, o.format, handlerOpts))
	}
	if o.file != nil {
		handlers = append(handlers, newHandler(o.file, o.format, handlerOpts))
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.DiscardHandler
	case 1:
		handler = handlers[0]
	default:
		handler = slogmulti.Fanout(handlers...)
	}

	return &slogLogger{base: slog.New(handler)}
}

func newHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

type slogLogger struct {
	base *slog.Logger
}

func (l *slogLogger) Debug(msg string, args ...any) { l.log(0, slog.LevelDebug, msg, args...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.log(0, slog.LevelInfo, msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.log(0, slog.LevelWarn, msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.log(0, slog.LevelError, msg, args...) }

func (l *slogLogger) Debugf(format string, args ...any) {
	l.log(0, slog.LevelDebug, fmt.Sprintf(format, args...))
}
func (l *slogLogger) Infof(format string, args ...any) {
	l.log(0, slog.LevelInfo, fmt.Sprintf(format, args...))
}
func (l *slogLogger) Warnf(format string, args ...any) {
	l.log(0, slog.LevelWarn, fmt.Sprintf(format, args...))
}
func (l *slogLogger) Errorf(format string, args ...any) {
	l.log(0, slog.LevelError, fmt.Sprintf(format, args...))
}

// logCtxDepth is used by the package-level context helpers (Debug, Info, ...
// in context.go), which add one extra call frame between the caller and
// this Logger.
func (l *slogLogger) logCtxDepth(level slog.Level, msg string, args ...any) {
	l.log(1, level, msg, args...)
}

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{base: l.base.With(args...)}
}

func (l *slogLogger) WithGroup(name string) Logger {
	return &slogLogger{base: l.base.WithGroup(name)}
}

// log records the call site of the originating Logger method (not this
// helper, nor slog-multi's internals) so source-location-aware handlers
// point at the actual caller. extraSkip accounts for indirection layers
// such as the package-level context helpers.
func (l *slogLogger) log(extraSkip int, level slog.Level, msg string, args ...any) {
	ctx := context.Background()
	if !l.base.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3+extraSkip, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	_ = l.base.Handler().Handle(ctx, r)
}
