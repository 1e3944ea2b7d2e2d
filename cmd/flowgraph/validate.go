package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowforge/flowgraph/internal/engine"
)

func newValidateCmd(app *AppContext, root *rootFlags) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Compile a document and report warnings without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(path, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&path, "file", "f", "", "Path to the document to validate")
	cmd.MarkFlagRequired("file") //nolint:errcheck

	return cmd
}

func runValidate(path string, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	compiled, err := engine.Compile(path, data)
	if err != nil {
		return err
	}
	defer compiled.Close()

	if len(compiled.Warnings) == 0 {
		fmt.Fprintln(out, "ok: no warnings")
		return nil
	}
	for _, w := range compiled.Warnings {
		fmt.Fprintln(out, w.String())
	}
	return nil
}
