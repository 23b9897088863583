package runloop

import "github.com/sirupsen/logrus"

// Logger is the structured diagnostics sink used throughout the run loop.
// Adapted from estuary-flow's ops.LogPublisher: a thin interface around a
// logrus-backed implementation so the loop never hard-codes a global
// logger and tests can substitute a no-op.
type Logger interface {
	WithFields(fields logrus.Fields) Logger
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
}

// logrusLogger adapts *logrus.Entry to Logger.
type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger builds a Logger backed by the given logrus.Logger.
func NewLogrusLogger(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.New()
	}
	return logrusLogger{entry: logrus.NewEntry(l)}
}

func (l logrusLogger) WithFields(fields logrus.Fields) Logger {
	return logrusLogger{entry: l.entry.WithFields(fields)}
}

func (l logrusLogger) Debug(args ...any) { l.entry.Debug(args...) }
func (l logrusLogger) Info(args ...any)  { l.entry.Info(args...) }
func (l logrusLogger) Warn(args ...any)  { l.entry.Warn(args...) }
func (l logrusLogger) Error(args ...any) { l.entry.Error(args...) }

// noopLogger discards everything; it is the Config default.
type noopLogger struct{}

func (noopLogger) WithFields(logrus.Fields) Logger { return noopLogger{} }
func (noopLogger) Debug(...any)                    {}
func (noopLogger) Info(...any)                     {}
func (noopLogger) Warn(...any)                     {}
func (noopLogger) Error(...any)                    {}
