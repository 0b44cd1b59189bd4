// Package logging builds the charmbracelet logger handed to the engine.
// Level, prefix and file output come from the environment.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	EnvLevel  = "PERFASM_LOG_LEVEL"
	EnvPrefix = "PERFASM_LOG_PREFIX"
	EnvToFile = "PERFASM_LOG_TO_FILE"
)

// LoggerCloser wraps a logger and provides a Close method for cleanup
type LoggerCloser struct {
	*log.Logger
	closer io.Closer
	// Path is the log file, empty when logging to a plain writer.
	Path string
}

// Close closes the underlying writer if it's closeable
func (lc *LoggerCloser) Close() error {
	if lc.closer != nil {
		return lc.closer.Close()
	}
	return nil
}

// ParseLevel maps a PERFASM_LOG_LEVEL value onto a level, defaulting to info.
func ParseLevel(s string) log.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	}
	return log.InfoLevel
}

// NewLoggerWithWriter creates a new logger with the provided writer
func NewLoggerWithWriter(w io.Writer) *LoggerCloser {
	lg := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})
	lg.SetLevel(ParseLevel(os.Getenv(EnvLevel)))

	prefix := os.Getenv(EnvPrefix)
	if prefix == "" {
		prefix = "perfasm "
	}

	var closer io.Closer
	if c, ok := w.(io.Closer); ok && w != os.Stderr && w != os.Stdout {
		closer = c
	}

	return &LoggerCloser{
		Logger: lg.WithPrefix(prefix),
		closer: closer,
	}
}

// NewLogger creates a new logger based on environment variables
// PERFASM_LOG_LEVEL: debug, info, warn, error (default: info)
// PERFASM_LOG_PREFIX: prefix for log messages (default: "perfasm ")
// PERFASM_LOG_TO_FILE: when set to "1", logs to a timestamped file instead of stderr
//
// The TUI owns the terminal, so it always logs to a file or discards.
func NewLogger(tui bool) *LoggerCloser {
	var output io.Writer = os.Stderr
	var path string

	if os.Getenv(EnvToFile) == "1" {
		timestamp := time.Now().Format("20060102-150405")
		logFile := fmt.Sprintf("perfasm-%s-debug.log", timestamp)

		f, err := os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err == nil {
			output, path = f, logFile
		}
		// If file creation fails, fall back to stderr
	}
	if tui && path == "" {
		output = io.Discard
	}

	lc := NewLoggerWithWriter(output)
	lc.Path = path
	return lc
}

// IsDebug returns true if debug logging is enabled
func IsDebug() bool {
	return ParseLevel(os.Getenv(EnvLevel)) == log.DebugLevel
}
