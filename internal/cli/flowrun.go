// Copyright (c) 2025, Wesley Brown
// All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/flowgen/internal/flowgen/config"
	"github.com/wesleyorama2/flowgen/internal/flowgen/console"
	"github.com/wesleyorama2/flowgen/internal/flowgen/flow"
	"github.com/wesleyorama2/flowgen/internal/flowgen/httpclient"
	"github.com/wesleyorama2/flowgen/internal/flowgen/kv"
	"github.com/wesleyorama2/flowgen/internal/flowgen/runner"
	"github.com/wesleyorama2/flowgen/internal/flowgen/script"
)

// runFlow is RootCmd's action: load a flow from --flow or --flow-path,
// validate it, and run it to completion.
func runFlow(cmd *cobra.Command, args []string) error {
	inline, _ := cmd.Flags().GetString("flow")
	path := firstNonEmpty(cmd, "flow-path", "flow_path")
	outputPath := firstNonEmptyOr(cmd, "metrics_output", "output_path", "output-path")
	runnerConfigPath, _ := cmd.Flags().GetString("runner-config")

	if inline == "" && path == "" {
		fmt.Fprintln(os.Stderr, "flowgen: one of --flow or --flow-path/--flow_path must be provided")
		return nil
	}

	raw, err := loadFlowBytes(inline, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "flowgen: %v\n", err)
		return nil
	}

	if errs, err := config.ValidateFlow(raw); err != nil {
		fmt.Fprintf(os.Stderr, "flowgen: validating flow: %v\n", err)
		return nil
	} else if len(errs) > 0 {
		fmt.Fprintf(os.Stderr, "flowgen: flow failed schema validation: %v\n", errs)
		return nil
	}

	var f flow.Flow
	if err := json.Unmarshal(raw, &f); err != nil {
		fmt.Fprintf(os.Stderr, "flowgen: parsing flow: %v\n", err)
		return nil
	}

	var runnerConfig *config.RunnerConfig
	if runnerConfigPath != "" {
		runnerConfig, err = config.LoadRunnerConfig(runnerConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "flowgen: loading runner config: %v\n", err)
			return nil
		}
	}

	ctx := context.Background()
	globalKV := kv.New()
	defer globalKV.Close()

	if err := globalKV.Set(ctx, "metrics_output_path", outputPath); err != nil {
		return fmt.Errorf("flowgen: initializing output path: %w", err)
	}

	host := script.NewHost()
	client := httpclient.New(transportOptions(runnerConfig))
	report := console.New(consoleOptions(runnerConfig))

	status, err := runner.Run(ctx, host, client, &f, globalKV, report)
	if err != nil {
		return fmt.Errorf("flowgen: %w", err)
	}
	if status == flow.Failed {
		os.Exit(1)
	}
	return nil
}

func loadFlowBytes(inline, path string) ([]byte, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading flow file %q: %w", path, err)
		}
		return data, nil
	}
	return []byte(inline), nil
}

// firstNonEmpty returns the first of the named string flags with a
// non-empty value, supporting the dash/underscore alias pairs the CLI
// contract documents.
func firstNonEmpty(cmd *cobra.Command, names ...string) string {
	for _, name := range names {
		if v, _ := cmd.Flags().GetString(name); v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmptyOr(cmd *cobra.Command, fallback string, names ...string) string {
	if v := firstNonEmpty(cmd, names...); v != "" {
		return v
	}
	return fallback
}

// transportOptions maps an optional RunnerConfig's HTTP tuning onto the
// httpclient's own options type. A nil cfg reproduces net/http's defaults.
func transportOptions(cfg *config.RunnerConfig) httpclient.TransportOptions {
	if cfg == nil {
		return httpclient.TransportOptions{}
	}
	return httpclient.TransportOptions{
		MaxIdleConns:        cfg.HTTP.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.HTTP.MaxIdleConnsPerHost,
		IdleConnTimeout:     time.Duration(cfg.HTTP.IdleConnTimeout),
	}
}

// consoleOptions maps an optional RunnerConfig's console verbosity onto the
// console package's own options type. A nil cfg prints everything.
func consoleOptions(cfg *config.RunnerConfig) console.Options {
	if cfg == nil {
		return console.Options{}
	}
	return console.Options{
		Quiet:           cfg.Console.Quiet,
		DisableProgress: cfg.Console.DisableProgress,
	}
}
