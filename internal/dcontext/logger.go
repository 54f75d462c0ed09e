package dcontext

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	defaultLoggerMu sync.RWMutex
	defaultLogger   = logrus.StandardLogger().WithField("go.version", runtime.Version())
)

// Logger is the leveled logging interface handed out by GetLogger. It is
// satisfied by *logrus.Entry.
type Logger interface {
	Debug(args ...any)
	Debugf(format string, args ...any)

	Info(args ...any)
	Infof(format string, args ...any)

	Warn(args ...any)
	Warnf(format string, args ...any)

	Error(args ...any)
	Errorf(format string, args ...any)

	WithError(err error) *logrus.Entry
	WithField(key string, value any) *logrus.Entry
}

type loggerKey struct{}

// WithLogger returns a context carrying logger. Loggers obtained from the
// returned context build on it.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger returns the logger stored on ctx, or one derived from the
// default logger. Each of keys is resolved on ctx and, when set, added as a
// field named fmt.Sprint(key).
func GetLogger(ctx context.Context, keys ...any) Logger {
	return getLogrusLogger(ctx, keys...)
}

// SetDefaultLogger replaces the logger new contexts start from. Only
// *logrus.Entry values are accepted; anything else is ignored.
func SetDefaultLogger(logger Logger) {
	entry, ok := logger.(*logrus.Entry)
	if !ok {
		return
	}

	defaultLoggerMu.Lock()
	defaultLogger = entry
	defaultLoggerMu.Unlock()
}

func getLogrusLogger(ctx context.Context, keys ...any) *logrus.Entry {
	logger, ok := ctx.Value(loggerKey{}).(*logrus.Entry)
	if !ok {
		defaultLoggerMu.RLock()
		logger = defaultLogger
		defaultLoggerMu.RUnlock()

		if id := ctx.Value("instance.id"); id != nil {
			logger = logger.WithField("instance.id", id)
		}
	}

	if len(keys) == 0 {
		return logger
	}

	fields := make(logrus.Fields, len(keys))
	for _, key := range keys {
		if v := ctx.Value(key); v != nil {
			fields[fmt.Sprint(key)] = v
		}
	}
	return logger.WithFields(fields)
}
