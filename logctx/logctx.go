// Package logctx threads a structured logger through a context.Context, the
// way the teacher's context/dcontext packages do, so no subsystem reaches
// for a package-level logging global.
package logctx

import (
	"context"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is the leveled-logging interface every BiReUS subsystem depends
// on, rather than depending on logrus directly.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

type logrusLogger struct {
	entry *logrus.Entry
}

func (l logrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l logrusLogger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l logrusLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l logrusLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
func (l logrusLogger) Fatalf(format string, args ...interface{}) { l.entry.Fatalf(format, args...) }

func (l logrusLogger) WithField(key string, value interface{}) Logger {
	return logrusLogger{entry: l.entry.WithField(key, value)}
}

func (l logrusLogger) WithFields(fields map[string]interface{}) Logger {
	return logrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger = logrusLogger{entry: logrus.StandardLogger().WithField("go.version", runtime.Version())}
)

// SetDefault replaces the logger handed out when a context carries none.
func SetDefault(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

type loggerKey struct{}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger returns the logger carried by ctx, or the package default if
// none was attached, optionally scoped with extra fields drawn from ctx
// values named by the supplied keys.
func GetLogger(ctx context.Context, keys ...interface{}) Logger {
	logger, ok := ctx.Value(loggerKey{}).(Logger)
	if !ok {
		defaultMu.RLock()
		logger = defaultLogger
		defaultMu.RUnlock()
	}

	for _, key := range keys {
		if v := ctx.Value(key); v != nil {
			if ks, ok := key.(string); ok {
				logger = logger.WithField(ks, v)
			}
		}
	}

	return logger
}

// NewLogrus builds a Logger backed by a fresh logrus.Logger at the given
// level, used by cmd/bireus-server and cmd/bireus-client to seed the root
// context.
func NewLogrus(level logrus.Level) Logger {
	l := logrus.New()
	l.SetLevel(level)
	return logrusLogger{entry: logrus.NewEntry(l)}
}
