// Package trace provides leveled debug tracing for the HAL and the
// sample applications, backed by log/slog.
package trace

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// Component identifies a subsystem for log filtering.
type Component string

// HAL component identifiers.
const (
	ComponentCore  Component = "core"
	ComponentModem Component = "modem"
	ComponentRadio Component = "radio"
	ComponentStack Component = "stack"
	ComponentGPS   Component = "gps"
	ComponentApp   Component = "app"
)

var (
	// DefaultLogger is the logger used by all HAL components.
	DefaultLogger *slog.Logger

	// logLevel controls the minimum log level.
	logLevel = new(slog.LevelVar)

	// logMutex protects logger configuration.
	logMutex sync.RWMutex
)

func init() {
	logLevel.Set(slog.LevelInfo)
	DefaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

// SetLevel sets the minimum log level for all HAL logging.
func SetLevel(level slog.Level) {
	logMutex.Lock()
	defer logMutex.Unlock()
	logLevel.Set(level)
}

// SetOutput redirects all HAL logging to w.
func SetOutput(w io.Writer) {
	logMutex.Lock()
	defer logMutex.Unlock()
	DefaultLogger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

// Logger returns a logger tagged with the given component.
func Logger(c Component) *slog.Logger {
	logMutex.RLock()
	defer logMutex.RUnlock()
	return DefaultLogger.With("component", string(c))
}
