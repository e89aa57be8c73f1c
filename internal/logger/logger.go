// Package logger provides levelled logging for classmate.
// Debug messages are printed only in verbose mode (--verbose or
// log.verbose); info, warnings and errors are always printed to stderr.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level is a logging threshold.
type Level int

// Levels in increasing severity.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

var (
	mu        sync.RWMutex
	threshold           = LevelInfo
	output    io.Writer = os.Stderr
	now                 = time.Now
)

// SetVerbose enables or disables debug logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	if v {
		threshold = LevelDebug
	} else {
		threshold = LevelInfo
	}
}

// IsVerbose returns true if debug logging is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return threshold == LevelDebug
}

// SetLevel sets the minimum level that is printed.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	threshold = l
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// SetClock replaces the timestamp source. Pass nil to restore time.Now.
func SetClock(fn func() time.Time) {
	mu.Lock()
	defer mu.Unlock()
	if fn == nil {
		fn = time.Now
	}
	now = fn
}

func logf(l Level, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if l < threshold {
		return
	}
	ts := now().UTC().Format(time.RFC3339)
	fmt.Fprintf(output, "%s [%s] "+format+"\n", append([]any{ts, levelNames[l]}, args...)...)
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	logf(LevelDebug, format, args...)
}

// Info prints an informational message.
func Info(format string, args ...any) {
	logf(LevelInfo, format, args...)
}

// Warn prints a warning message.
func Warn(format string, args ...any) {
	logf(LevelWarn, format, args...)
}

// Error prints an error message.
func Error(format string, args ...any) {
	logf(LevelError, format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if threshold == LevelDebug {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}
