// Command flowgraph compiles and runs flowgraph documents: validate a
// document without running it, run it once against a JSON inputs file
// and stream events to stdout, or serve the HTTP run API for a single
// document.
package main

import (
	"fmt"
	"os"

	"github.com/flowforge/flowgraph/config"
	"github.com/flowforge/flowgraph/logging"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "flowgraph: loading config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logging.New(logging.Options{
		Level:     cfg.Log.Level,
		Console:   cfg.Log.Console,
		Component: "cli",
	})

	app := &AppContext{Config: cfg, Logger: appLogger}

	rootCmd := newRootCmd(app)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
