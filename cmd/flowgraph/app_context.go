package main

import (
	"github.com/rs/zerolog"

	"github.com/flowforge/flowgraph/config"
)

// AppContext carries the dependencies every subcommand needs: the
// process-wide config (queue depth, default timeouts, server settings)
// and the root logger each command derives its own scoped logger from.
type AppContext struct {
	Config *config.Config
	Logger zerolog.Logger
}

// loggerFor returns app's logger, dropped to debug level when the
// caller passed --verbose, regardless of the configured log level.
func loggerFor(app *AppContext, verbose bool) zerolog.Logger {
	if verbose {
		return app.Logger.Level(zerolog.DebugLevel)
	}
	return app.Logger
}
