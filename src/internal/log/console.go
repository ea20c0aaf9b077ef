package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// The format is relatively unimportant; no other systems are expected to
// consume these log messages.
var consoleEncoder = zapcore.EncoderConfig{
	// Keys can be anything except the empty string.
	TimeKey:        "T",
	LevelKey:       "L",
	NameKey:        "N",
	CallerKey:      "C",
	FunctionKey:    zapcore.OmitKey,
	MessageKey:     "M",
	StacktraceKey:  "S",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalLevelEncoder,
	EncodeTime:     zapcore.ISO8601TimeEncoder,
	EncodeDuration: zapcore.StringDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
}

var (
	mu         sync.Mutex
	level      = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	baseLogger *zap.Logger
)

func base() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if baseLogger == nil {
		baseLogger = newConsoleLogger()
	}
	return baseLogger
}

func newConsoleLogger() *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleEncoder),
		zapcore.Lock(os.Stderr),
		level,
	)
	return zap.New(core, zap.AddCaller(), zap.ErrorOutput(zapcore.Lock(os.Stderr)))
}

// InitCLILogger initializes the process-wide logger for interactive use,
// writing human-readable lines to stderr.  It also redirects the standard
// library's logger.
func InitCLILogger() {
	mu.Lock()
	defer mu.Unlock()
	baseLogger = newConsoleLogger()
	zap.ReplaceGlobals(baseLogger)
	zap.RedirectStdLog(baseLogger)
}

// SetLevel adjusts the minimum level of all loggers derived from this
// package.  It may be called before or after InitCLILogger.
func SetLevel(l Level) {
	level.SetLevel(l.coreLevel())
}
