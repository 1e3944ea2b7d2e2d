package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/flowforge/flowgraph/bus"
	"github.com/flowforge/flowgraph/internal/engine"
)

func newRunCmd(app *AppContext, root *rootFlags) *cobra.Command {
	var (
		path           string
		inputsPath     string
		runID          string
		timeoutSeconds int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compile and execute a document once, streaming events to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(app, root, path, inputsPath, runID, timeoutSeconds)
		},
	}

	cmd.Flags().StringVarP(&path, "file", "f", "", "Path to the document to run")
	cmd.MarkFlagRequired("file") //nolint:errcheck
	cmd.Flags().StringVarP(&inputsPath, "inputs", "i", "", "Path to a JSON file of graph inputs (defaults to {})")
	cmd.Flags().StringVar(&runID, "run-id", "", "Run id to use (generated if omitted)")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout", 0, "Wall-clock run budget in seconds (0 uses the config default)")

	return cmd
}

func runRun(app *AppContext, root *rootFlags, path, inputsPath, runID string, timeoutSeconds int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	inputs := map[string]interface{}{}
	if inputsPath != "" {
		raw, err := os.ReadFile(inputsPath)
		if err != nil {
			return fmt.Errorf("reading %s: %w", inputsPath, err)
		}
		if err := json.Unmarshal(raw, &inputs); err != nil {
			return fmt.Errorf("parsing %s: %w", inputsPath, err)
		}
	}

	compiled, err := engine.Compile(path, data)
	if err != nil {
		return err
	}

	logger := loggerFor(app, root.verbose)
	sched := compiled.Scheduler(bus.NewConsoleSink(logger))
	defer sched.Close()

	if runID == "" {
		runID = uuid.NewString()
	}

	var deadline time.Time
	budget := time.Duration(timeoutSeconds) * time.Second
	if budget <= 0 {
		budget = time.Duration(app.Config.Engine.RunBudgetSeconds) * time.Second
	}
	if budget > 0 {
		deadline = time.Now().Add(budget)
	}

	outputs, err := sched.Run(context.Background(), runID, inputs, deadline)
	if err != nil {
		return fmt.Errorf("run %s failed: %w", runID, err)
	}

	encoded, err := json.MarshalIndent(outputs, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
