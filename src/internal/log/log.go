// Package log provides a context-carried zap logger for KGTorrent.
//
// Every context that flows through the pipeline carries a logger; code logs
// with log.Debug(ctx, ...), log.Info(ctx, ...), etc.  The logger is
// configured once at process startup (see InitCLILogger) and then scoped per
// component with ChildLogger or pctx.Child.
package log

import (
	"context"

	"go.uber.org/zap"
)

// Field is an alias for zap.Field, so that most callers only need to import
// this package.
type Field = zap.Field

type loggerKey struct{}

// AddLogger returns a context that carries the process-wide base logger.
// It is intended to be called once, near main.
func AddLogger(ctx context.Context) context.Context {
	return withLogger(ctx, base())
}

func withLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

func extractLogger(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return l
	}
	// A context without a logger is a programming error, but losing the
	// message would make it harder to notice.
	return base()
}

// LogOption customizes the logger attached to a child context.
type LogOption func(l *zap.Logger) *zap.Logger

// WithFields adds fields that appear on every log line of the child.
func WithFields(fields ...Field) LogOption {
	return func(l *zap.Logger) *zap.Logger {
		return l.With(fields...)
	}
}

// WithOptions applies zap options to the child's logger.
func WithOptions(opts ...zap.Option) LogOption {
	return func(l *zap.Logger) *zap.Logger {
		return l.WithOptions(opts...)
	}
}

// ChildLogger returns a context whose logger is named name, with any options
// applied.  An empty name keeps the parent's name.
func ChildLogger(ctx context.Context, name string, opts ...LogOption) context.Context {
	l := extractLogger(ctx)
	if name != "" {
		l = l.Named(name)
	}
	for _, opt := range opts {
		l = opt(l)
	}
	return withLogger(ctx, l)
}

// Debug logs a message at debug level.
func Debug(ctx context.Context, msg string, fields ...Field) {
	extractLogger(ctx).WithOptions(zap.AddCallerSkip(1)).Debug(msg, fields...)
}

// Info logs a message at info level.
func Info(ctx context.Context, msg string, fields ...Field) {
	extractLogger(ctx).WithOptions(zap.AddCallerSkip(1)).Info(msg, fields...)
}

// Error logs a message at error level.
func Error(ctx context.Context, msg string, fields ...Field) {
	extractLogger(ctx).WithOptions(zap.AddCallerSkip(1)).Error(msg, fields...)
}
