// Package pctx creates contexts for use throughout KGTorrent.  All contexts
// carry a logger; see the log package.
package pctx

import (
	"context"

	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/log"
	"go.uber.org/zap"
)

// Background returns a context for use at process startup or in long-running
// background work.  If the caller needs to inherit anything other than a
// clean non-cancelable context, use Child instead.
func Background(process string) context.Context {
	ctx := log.AddLogger(context.Background())
	return Child(ctx, process)
}

// Option is an option for customizing a child context.
type Option struct {
	modifyContext func(context.Context) context.Context
	modifyLogger  log.LogOption
}

// WithFields returns a context that includes additional fields that appear on
// each log line.
func WithFields(fields ...zap.Field) Option {
	return Option{
		modifyLogger: log.WithFields(fields...),
	}
}

// WithOptions returns a context that modifies the logger with additional Zap
// options.
func WithOptions(opts ...zap.Option) Option {
	return Option{
		modifyLogger: log.WithOptions(opts...),
	}
}

// Child returns a named child context, with additional options.  The new name
// can be empty.  Options are applied in an arbitrary order.
func Child(ctx context.Context, name string, opts ...Option) context.Context {
	var logOptions []log.LogOption
	for _, opt := range opts {
		if o := opt.modifyLogger; o != nil {
			logOptions = append(logOptions, o)
		}
		if o := opt.modifyContext; o != nil {
			ctx = o(ctx)
		}
	}
	return log.ChildLogger(ctx, name, logOptions...)
}
