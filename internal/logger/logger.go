// Package logger provides the leveled logger injected into pdfkb services.
// A Logger is built once by the CLI root and passed to every constructor;
// there is no package-level state.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Level is a logging threshold.
type Level int

// Log levels, lowest first.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	levelOff
)

// ParseLevel maps a name such as "debug" or "WARN" to a Level.
// Unknown names map to LevelInfo.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

// Logger writes prefixed log lines to an io.Writer.
// It is safe for concurrent use.
type Logger struct {
	mu    sync.Mutex
	out   io.Writer
	level Level
}

// New creates a logger writing to w at the given level.
// A nil writer defaults to os.Stderr.
func New(w io.Writer, level Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{out: w, level: level}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{out: io.Discard, level: levelOff}
}

// SetLevel changes the threshold.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level Level) bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return level >= l.level
}

// Debug prints a diagnostic message.
func (l *Logger) Debug(format string, args ...any) {
	l.logf(LevelDebug, "[DEBUG] ", format, args...)
}

// Info prints an informational message.
func (l *Logger) Info(format string, args ...any) {
	l.logf(LevelInfo, "[INFO] ", format, args...)
}

// Warn prints a warning.
func (l *Logger) Warn(format string, args ...any) {
	l.logf(LevelWarn, "[WARN] ", format, args...)
}

// Error prints an error.
func (l *Logger) Error(format string, args ...any) {
	l.logf(LevelError, "[ERROR] ", format, args...)
}

// Section prints a section header at debug level.
func (l *Logger) Section(name string) {
	if !l.Enabled(LevelDebug) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "\n=== %s ===\n", name)
}

func (l *Logger) logf(level Level, prefix, format string, args ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}
	fmt.Fprintf(l.out, prefix+format+"\n", args...)
}
