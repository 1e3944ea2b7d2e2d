package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowforge/flowgraph/httpapi"
	"github.com/flowforge/flowgraph/internal/engine"
)

func newServeCmd(app *AppContext, root *rootFlags) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a document's HTTP run API (POST /runs, GET /runs/{id}/events)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(app, root, path)
		},
	}

	cmd.Flags().StringVarP(&path, "file", "f", "", "Path to the document to serve")
	cmd.MarkFlagRequired("file") //nolint:errcheck

	return cmd
}

func runServe(app *AppContext, root *rootFlags, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	compiled, err := engine.Compile(path, data)
	if err != nil {
		return err
	}

	logger := loggerFor(app, root.verbose)
	srv := httpapi.NewServerFromCompiled(compiled, logger)
	defer srv.Close()

	addr := app.Config.Server.Host + ":" + app.Config.Server.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info().Str("addr", addr).Str("file", path).Msg("serving flowgraph run API")
	return httpServer.ListenAndServe()
}
