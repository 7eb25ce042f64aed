// Package logger provides verbose logging for the docusearch CLI.
// When verbose mode is enabled via the --verbose flag, debug messages
// are printed to stderr to help users understand the indexing and query
// pipeline. Errors are always printed.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

var (
	mu      sync.RWMutex
	verbose bool
	format  = FormatText
	output  io.Writer = os.Stderr
	jsonLog *slog.Logger
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	jsonLog = newJSONLogger(w)
}

// SetFormat selects text or json output. Unknown formats fall back to text.
func SetFormat(f string) {
	mu.Lock()
	defer mu.Unlock()
	switch strings.ToLower(strings.TrimSpace(f)) {
	case FormatJSON:
		format = FormatJSON
		jsonLog = newJSONLogger(output)
	default:
		format = FormatText
	}
}

// Format returns the current output format.
func Format() string {
	mu.RLock()
	defer mu.RUnlock()
	return format
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	logf(slog.LevelDebug, "[DEBUG] ", format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if !verbose {
		return
	}
	if format == FormatJSON {
		jsonLog.Info("section", "section", name)
		return
	}
	fmt.Fprintf(output, "\n=== %s ===\n", name)
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	logf(slog.LevelInfo, "[INFO] ", format, args...)
}

// Warn prints a warning message if verbose mode is enabled.
func Warn(format string, args ...any) {
	logf(slog.LevelWarn, "[WARN] ", format, args...)
}

// Error prints an error message regardless of verbose mode.
func Error(format string, args ...any) {
	logf(slog.LevelError, "[ERROR] ", format, args...)
}

func logf(level slog.Level, prefix, msgFormat string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if !verbose && level < slog.LevelError {
		return
	}
	if format == FormatJSON {
		jsonLog.Log(context.Background(), level, fmt.Sprintf(msgFormat, args...))
		return
	}
	fmt.Fprintf(output, prefix+msgFormat+"\n", args...)
}

func newJSONLogger(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	return slog.New(handler).With("service", "docusearch")
}

func init() {
	jsonLog = newJSONLogger(output)
}
