package log

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// TestWithCapture returns a context whose logger records every entry, and the
// recorded entries for assertions.  Intended for tests that care about what
// was logged.
func TestWithCapture(t testing.TB) (context.Context, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	l := zap.New(core)
	t.Cleanup(func() {
		_ = l.Sync()
	})
	return withLogger(context.Background(), l), logs
}

// Test returns a context whose logger writes to the test log.
func Test(t testing.TB) context.Context {
	return withLogger(context.Background(), zaptest.NewLogger(t))
}
