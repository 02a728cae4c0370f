package logging

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Logger provides structured logging for the analyzer
type Logger struct {
	prefix string
	logger zerolog.Logger
}

// NewConsoleLogger creates a human-readable logger for development
func NewConsoleLogger(prefix string, w io.Writer) *Logger {
	return NewLoggerWithWriter(prefix, zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true})
}

// NewLoggerWithWriter creates a logger writing to w
func NewLoggerWithWriter(prefix string, w io.Writer) *Logger {
	return &Logger{
		prefix: prefix,
		logger: zerolog.New(w).With().Timestamp().Str("component", prefix).Logger(),
	}
}

// Named returns a child logger for a sub-component
func (l *Logger) Named(prefix string) *Logger {
	return &Logger{
		prefix: prefix,
		logger: l.logger.With().Str("component", prefix).Logger(),
	}
}

// With returns a child logger that always carries the given key-value pairs
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	ctx := l.logger.With()
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		ctx = ctx.Interface(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1])
	}
	return &Logger{prefix: l.prefix, logger: ctx.Logger()}
}

// Zerolog exposes the underlying logger for middleware
func (l *Logger) Zerolog() zerolog.Logger {
	return l.logger
}

// Info logs an informational message with key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.logWithKV(l.logger.Info(), msg, keysAndValues...)
}

// Warn logs a warning message with key-value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.logWithKV(l.logger.Warn(), msg, keysAndValues...)
}

// Error logs an error message with key-value pairs
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.logWithKV(l.logger.Error(), msg, keysAndValues...)
}

// Debug logs a debug message with key-value pairs
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.logWithKV(l.logger.Debug(), msg, keysAndValues...)
}

func (l *Logger) logWithKV(evt *zerolog.Event, msg string, keysAndValues ...interface{}) {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		switch v := keysAndValues[i+1].(type) {
		case error:
			evt = evt.AnErr(key, v)
		case time.Duration:
			evt = evt.Dur(key, v)
		default:
			evt = evt.Interface(key, v)
		}
	}
	evt.Msg(msg)
}

// Nop returns a logger that discards everything, for tests
func Nop() *Logger {
	return &Logger{prefix: "nop", logger: zerolog.Nop()}
}
