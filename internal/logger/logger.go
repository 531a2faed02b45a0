// Package logger provides verbose logging for Mirae.
// When verbose mode is enabled via the --verbose flag, debug messages
// are printed to stderr to trace loads, optimistic mutations, autosave
// commits and navigation decisions.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
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

// SetOutput sets the output writer for verbose logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "[DEBUG] "+format+"\n", args...)
	}
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "[INFO] "+format+"\n", args...)
	}
}

// Warn prints a warning message. Warnings are printed even when
// verbose mode is disabled, since they mark fail-safe paths.
func Warn(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	fmt.Fprintf(output, "[WARN] "+format+"\n", args...)
}

// Scope prefixes every message with a component name.
type Scope string

// Debug prints a component message if verbose mode is enabled.
func (s Scope) Debug(format string, args ...any) {
	Debug(string(s)+": "+format, args...)
}

// Info prints a component message if verbose mode is enabled.
func (s Scope) Info(format string, args ...any) {
	Info(string(s)+": "+format, args...)
}

// Warn prints a component warning.
func (s Scope) Warn(format string, args ...any) {
	Warn(string(s)+": "+format, args...)
}
