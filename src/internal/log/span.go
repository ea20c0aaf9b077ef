package log

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the level at which to generate logs.
type Level int

const (
	DebugLevel Level = 1
	InfoLevel  Level = 2
	ErrorLevel Level = 3
)

func (l Level) coreLevel() zapcore.Level {
	switch l { //exhaustive:enforce
	case DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel:
		return zapcore.InfoLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	}
	zap.L().DPanic("unknown log level in (log.Level).coreLevel", zap.Int("level", int(l)), zap.Stack("stack"))
	return zapcore.DebugLevel
}

// EndSpanFunc is a function that ends a span.
type EndSpanFunc = func(fields ...Field)

// ErrorL is a Field that marks a span as failed, and logs the end of the span
// at the provided level.
func ErrorL(err error, level Level) Field {
	if err == nil {
		return zap.Skip()
	}
	f := zap.Error(err)
	f.Integer = int64(level)
	return f
}

const errorpType = zapcore.InlineMarshalerType + 100

// Errorp is a Field that marks a span as failed if *err is a non-nil error at
// the time when the span ends.  The pointer form exists because arguments to
// a deferred call are evaluated when the defer statement runs, not when the
// function returns.
func Errorp(err *error) Field {
	return zapcore.Field{
		Key:       "error",
		Type:      errorpType,
		Interface: err,
	}
}

type spanStatus string

const (
	spanStarting spanStatus = "span start"
	spanOK       spanStatus = "span finished ok"
	spanFailed   spanStatus = "span failed"
)

func makeSpanEndFunc(l *zap.Logger, event string, level Level, start time.Time) EndSpanFunc {
	return func(rawFields ...Field) {
		fields := []zap.Field{zap.Duration("spanDuration", time.Since(start))}
		msg := spanOK
		for _, f := range rawFields {
			if i := f.Interface; i != nil {
				// Ordinary zap.Error / zap.NamedError / ErrorL.
				if _, ok := i.(error); ok {
					msg = spanFailed
					if f.Type == zapcore.ErrorType && f.Integer > 0 {
						level = Level(f.Integer)
					}
					fields = append(fields, f)
					continue
				}
				// Errorp.
				if f.Type == errorpType {
					if errp, ok := i.(*error); ok {
						if *errp != nil {
							msg = spanFailed
							if f.Integer > 0 {
								level = Level(f.Integer)
							}
							fields = append(fields, zap.Error(*errp))
						}
					}
					continue // No errorpType fields should end up in fields.
				}
			}
			fields = append(fields, f)
		}
		if e := l.Check(level.coreLevel(), event+": "+string(msg)); e != nil {
			e.Write(fields...)
		}
	}
}

// SpanContext starts a new span, returning a context with a logger scoped to
// that span and a function to end the span.  To end a span in failure, pass
// log.Errorp(&retErr) or log.ErrorL(err, level) to the end function; a nil
// error ends the span successfully.
//
// The returned EndSpanFunc must be called from defer(), due to how Go stacks
// work.
func SpanContext(rctx context.Context, event string, fields ...Field) (context.Context, EndSpanFunc) {
	return spanContext(rctx, event, DebugLevel, fields...)
}

func spanContext(rctx context.Context, event string, level Level, fields ...Field) (context.Context, EndSpanFunc) {
	l := extractLogger(rctx).Named(event).With(fields...)
	if e := l.Check(level.coreLevel(), event+": "+string(spanStarting)); e != nil {
		e.Write()
	}
	ctx := withLogger(rctx, l)
	return ctx, makeSpanEndFunc(l, event, level, time.Now())
}

// SpanL starts a new span at the given level.  See SpanContext for details.
func SpanL(ctx context.Context, event string, level Level, fields ...Field) EndSpanFunc {
	_, end := spanContext(ctx, event, level, fields...)
	return end
}

// Span starts a new span at level debug.  See SpanContext for details.
func Span(ctx context.Context, event string, fields ...Field) EndSpanFunc {
	_, end := spanContext(ctx, event, DebugLevel, fields...)
	return end
}
