package logging

import (
	"fmt"
	"io"
	"log"
)

// Logger is the leveled key/value interface the deletion packages log through
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

// stdLogger wraps standard log.Logger to implement Logger interface
type stdLogger struct {
	*log.Logger
	debug bool
}

// Wrap adapts a *log.Logger. Debug lines are dropped unless debug is set.
// A nil logger falls back to log.Default().
func Wrap(logger *log.Logger, debug bool) Logger {
	if logger == nil {
		logger = log.Default()
	}
	return &stdLogger{Logger: logger, debug: debug}
}

// Discard returns a Logger that prints nothing
func Discard() Logger {
	return &stdLogger{Logger: log.New(io.Discard, "", 0)}
}

func (l *stdLogger) Info(msg string, args ...interface{}) {
	l.logWithLevel("INFO", msg, args...)
}

func (l *stdLogger) Warn(msg string, args ...interface{}) {
	l.logWithLevel("WARN", msg, args...)
}

func (l *stdLogger) Error(msg string, args ...interface{}) {
	l.logWithLevel("ERROR", msg, args...)
}

func (l *stdLogger) Debug(msg string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.logWithLevel("DEBUG", msg, args...)
}

func (l *stdLogger) logWithLevel(level, msg string, args ...interface{}) {
	var parts []interface{}
	parts = append(parts, fmt.Sprintf("[%s]", level), msg)
	parts = append(parts, args...)
	l.Logger.Println(parts...)
}
