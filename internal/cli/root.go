// Copyright (c) 2025, Wesley Brown
// All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// RootCmd is the base command, a single "run" invocation. flowgen has no
// subcommands beyond this one; running the binary without --flow or
// --flow-path prints an error line to stderr and exits without a run.
var RootCmd = &cobra.Command{
	Use:     "flowgen",
	Short:   "A programmable HTTP load generator",
	Version: version,
	Long: `flowgen drives a configurable population of virtual users that each
execute a declarative sequence of steps, producing HTTP traffic against a
target service and collecting per-request timing metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFlow(cmd, args)
	},
}

// Execute runs the root command, printing any error to stderr.
func Execute() error {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

// ExecuteWithExit runs Execute and terminates the process with a non-zero
// exit code on error.
func ExecuteWithExit() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	RootCmd.Flags().String("flow", "", "inline JSON flow")
	RootCmd.Flags().String("flow-path", "", "path to a JSON flow file")
	RootCmd.Flags().String("flow_path", "", "alias of --flow-path")
	RootCmd.Flags().String("output-path", "metrics_output", "destination for collected metrics")
	RootCmd.Flags().String("output_path", "", "alias of --output-path")
	RootCmd.Flags().String("runner-config", "", "path to an optional YAML runner config")
}
