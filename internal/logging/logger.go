// Package logging provides the leveled logger the instrumentation core
// writes its lifecycle and registration diagnostics to. Emit never
// logs; only the slow control-plane paths do.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
)

// Level is a logging severity threshold.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Config holds logging configuration.
type Config struct {
	Level  Level
	Output io.Writer
}

// Logger is a leveled logger over the stdlib log package. The level is
// atomic so it can be raised or lowered while other goroutines log.
type Logger struct {
	out   *log.Logger
	level atomic.Int32
}

// NewLogger returns a logger writing to config.Output (stderr when nil)
// at config.Level.
func NewLogger(config *Config) *Logger {
	var level Level = LevelInfo
	var output io.Writer = os.Stderr
	if config != nil {
		level = config.Level
		if config.Output != nil {
			output = config.Output
		}
	}
	l := &Logger{out: log.New(output, "", log.LstdFlags)}
	l.level.Store(int32(level))
	return l
}

// SetLevel changes the minimum severity that gets written.
func (l *Logger) SetLevel(v Level) { l.level.Store(int32(v)) }

func (l *Logger) logf(v Level, format string, args ...any) {
	if int32(v) < l.level.Load() {
		return
	}
	l.out.Printf("[%s] side: %s", v, fmt.Sprintf(format, args...))
}

func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }

// Printf logs at info level, satisfying the core's Logger contract.
func (l *Logger) Printf(format string, args ...any) { l.Infof(format, args...) }

var (
	mu            sync.RWMutex
	defaultLogger *Logger
)

// Default returns the default logger, creating it if necessary.
func Default() *Logger {
	mu.RLock()
	if defaultLogger != nil {
		defer mu.RUnlock()
		return defaultLogger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault sets the default logger.
func SetDefault(logger *Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
}
