// Package logging configures the zerolog logger shared by the launcher
// components. Launcher diagnostics go to stderr so that stdout stays
// reserved for the served process's teed output and for --json results.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// base is the root logger. Components derive child loggers from it via
// Component, so a single Init call controls level and output for all of them.
var base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
	With().Timestamp().Logger().
	Level(zerolog.InfoLevel)

// Init sets the global log level. With verbose true, debug-level events
// (per-port probe results, signal sends) are emitted; otherwise only
// info and above.
func Init(verbose bool) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	base = base.Level(level)
}

// Component returns a child logger tagged with the given component name
// (e.g. "probe", "reaper", "guard", "launcher").
func Component(name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}
