package platform

import (
	"strings"
)

// Logger is the common interface every layer of the engine logs through.
// Concrete implementations wrap go.uber.org/zap; call sites never import
// zap directly so the engine can run under a no-op logger in tests.
type Logger interface {
	Info(args ...any)
	Infof(format string, args ...any)

	Error(args ...any)
	Errorf(format string, args ...any)

	Warn(args ...any)
	Warnf(format string, args ...any)

	Debug(args ...any)
	Debugf(format string, args ...any)

	Fatal(args ...any)
	Fatalf(format string, args ...any)

	// WithFields returns a new Logger with the given key/value pairs
	// attached to every subsequent entry.
	WithFields(fields ...any) Logger

	Sync() error
}

// Level represents the severity threshold of the logging system.
type Level int8

const (
	FatalLevel Level = iota
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
)

// ParseLevel takes a string level and returns a Level constant.
func ParseLevel(lvl string) (Level, error) {
	switch strings.ToLower(lvl) {
	case "fatal":
		return FatalLevel, nil
	case "error":
		return ErrorLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "info":
		return InfoLevel, nil
	case "debug":
		return DebugLevel, nil
	}

	return InfoLevel, errInvalidLevel(lvl)
}

type errInvalidLevel string

func (e errInvalidLevel) Error() string { return "not a valid log level: " + string(e) }

// NoneLogger discards everything; it backs contexts that never received a
// configured logger so call sites never need a nil check.
type NoneLogger struct{}

func (l *NoneLogger) Info(args ...any)                  {}
func (l *NoneLogger) Infof(format string, args ...any)  {}
func (l *NoneLogger) Error(args ...any)                 {}
func (l *NoneLogger) Errorf(format string, args ...any) {}
func (l *NoneLogger) Warn(args ...any)                  {}
func (l *NoneLogger) Warnf(format string, args ...any)  {}
func (l *NoneLogger) Debug(args ...any)                 {}
func (l *NoneLogger) Debugf(format string, args ...any) {}
func (l *NoneLogger) Fatal(args ...any)                 {}
func (l *NoneLogger) Fatalf(format string, args ...any) {}
func (l *NoneLogger) Sync() error                       { return nil }

func (l *NoneLogger) WithFields(fields ...any) Logger { return l }
