package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	verbose bool
}

func newRootCmd(app *AppContext) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "flowgraph",
		Short:         "Compile and run flowgraph workflow documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newValidateCmd(app, flags))
	cmd.AddCommand(newRunCmd(app, flags))
	cmd.AddCommand(newServeCmd(app, flags))

	return cmd
}
