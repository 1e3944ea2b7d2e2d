// Package logging builds the process-wide structured logger that other
// packages accept by value (e.g. bus.NewConsoleSink, httpapi.NewServer)
// rather than reaching for a package-level global.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the root logger. An empty Options builds a sane
// default: info level, JSON output to stderr, RFC3339 timestamps.
type Options struct {
	// Writer is where log lines are written. Defaults to os.Stderr.
	Writer io.Writer
	// Level is one of zerolog's level names ("debug", "info", "warn",
	// "error"); an empty or unrecognized value defaults to "info".
	Level string
	// Console renders human-readable colored output via
	// zerolog.ConsoleWriter instead of one-line JSON, for local CLI use
	// (cmd/flowgraph enables it when the config's log.console is true).
	Console bool
	// Component, if set, is attached to every line the returned logger
	// emits ("component": value).
	Component string
}

// New builds a root zerolog.Logger from opts.
func New(opts Options) zerolog.Logger {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}
	if opts.Console {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339}
	}

	level := parseLevel(opts.Level)
	logger := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	if opts.Component != "" {
		logger = logger.With().Str("component", opts.Component).Logger()
	}
	return logger
}

func parseLevel(name string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// ForNode derives a child logger scoped to a single run and node, the
// pairing (run_id, node_id) every scheduler log line needs for
// correlation with the event bus's own per-run sequencing.
func ForNode(base zerolog.Logger, runID, nodeID string) zerolog.Logger {
	return base.With().Str("run_id", runID).Str("node_id", nodeID).Logger()
}
