// Package logging wraps the standard library's log package with level
// filtering. It deliberately stays on stdlib log rather than pulling in
// a structured logger, matching every logging call site across this
// server's internal packages.
package logging

import (
	"log"
	"os"
	"strings"
)

// Level is a logging severity, ordered least to most severe.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel parses a config string ("debug", "info", "warn", "error")
// into a Level, defaulting to LevelInfo on an unrecognized value.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger filters plain-text log lines by severity and prefixes them with
// a component tag.
type Logger struct {
	component string
	min       Level
	std       *log.Logger
}

// New returns a Logger for component that drops messages below min.
func New(component string, min Level) *Logger {
	return &Logger{
		component: component,
		min:       min,
		std:       log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (l *Logger) logf(level Level, tag, format string, args ...interface{}) {
	if level < l.min {
		return
	}
	l.std.Printf("["+tag+"] "+l.component+": "+format, args...)
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.logf(LevelDebug, "DEBUG", format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.logf(LevelInfo, "INFO", format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.logf(LevelWarn, "WARN", format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.logf(LevelError, "ERROR", format, args...) }

// Fatalf logs at error severity regardless of the configured minimum and
// terminates the process, for unrecoverable startup failures.
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.std.Fatalf("[FATAL] "+l.component+": "+format, args...)
}
