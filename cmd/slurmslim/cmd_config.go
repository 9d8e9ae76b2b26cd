package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JianYang-Lab/SlurmSlim/internal/config"
)

func newConfigCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Get or set slurmslim configuration",
		Long: `View or modify slurmslim settings.

Use 'slurmslim config get <key>' to read the effective value (file,
environment, and defaults combined).
Use 'slurmslim config set <key> <value>' to persist a value to the
config file.

Supported keys:
  base_url         OpenAI-compatible endpoint base URL
  api_key          API key (prefer SLURMSLIM_API_KEY for secrets)
  model            Chat model asked for estimates
  server_command   Tool server command line
  timeout_seconds  Per-run deadline in seconds
  headroom         Safety margin on the suggestion (e.g. 0.10)
  mem_step_mib     Round the suggestion up to this many MiB
  max_files        Cap on discovered files sized per run
  sentry_dsn       Crash reporting DSN (empty disables)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(
		newConfigGetCmd(stdout, stderr),
		newConfigSetCmd(stdout, stderr),
	)

	return cmd
}

func newConfigGetCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runConfigGet(stdout, stderr, args[0])
		},
	}
}

func newConfigSetCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return runConfigSet(stdout, stderr, args[0], args[1])
		},
	}
}

// validConfigKeys lists the keys that can be read/written via
// slurmslim config.
var validConfigKeys = map[string]bool{
	"base_url":        true,
	"api_key":         true,
	"model":           true,
	"server_command":  true,
	"timeout_seconds": true,
	"headroom":        true,
	"mem_step_mib":    true,
	"max_files":       true,
	"sentry_dsn":      true,
}

func runConfigGet(stdout, _ io.Writer, key string) error {
	if !validConfigKeys[key] {
		return fmt.Errorf("unknown config key %q (see 'slurmslim config --help')", key)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	switch key {
	case "base_url":
		fmt.Fprintln(stdout, cfg.BaseURL)
	case "api_key":
		fmt.Fprintln(stdout, cfg.APIKey)
	case "model":
		fmt.Fprintln(stdout, cfg.Model)
	case "server_command":
		fmt.Fprintln(stdout, cfg.ServerCommand)
	case "timeout_seconds":
		fmt.Fprintln(stdout, cfg.TimeoutSeconds)
	case "headroom":
		fmt.Fprintln(stdout, cfg.SlurmOptions().Headroom)
	case "mem_step_mib":
		fmt.Fprintln(stdout, cfg.SlurmOptions().StepMiB)
	case "max_files":
		fmt.Fprintln(stdout, cfg.MaxFiles)
	case "sentry_dsn":
		fmt.Fprintln(stdout, cfg.SentryDSN)
	}
	return nil
}

func runConfigSet(stdout, _ io.Writer, key, value string) error {
	if !validConfigKeys[key] {
		return fmt.Errorf("unknown config key %q (see 'slurmslim config --help')", key)
	}

	// Edit the file view so environment overrides are never baked in.
	cfg, err := config.LoadFile()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	switch key {
	case "base_url":
		cfg.BaseURL = value
	case "api_key":
		cfg.APIKey = value
	case "model":
		cfg.Model = value
	case "server_command":
		cfg.ServerCommand = value
	case "timeout_seconds":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid timeout_seconds %q: want a positive integer", value)
		}
		cfg.TimeoutSeconds = n
	case "headroom":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("invalid headroom %q: want a non-negative fraction like 0.10", value)
		}
		cfg.Headroom = f
	case "mem_step_mib":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil || n == 0 {
			return fmt.Errorf("invalid mem_step_mib %q: want a positive integer", value)
		}
		cfg.MemStepMiB = n
	case "max_files":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid max_files %q: want a positive integer", value)
		}
		cfg.MaxFiles = n
	case "sentry_dsn":
		cfg.SentryDSN = value
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Fprintf(stdout, "%s = %s\n", key, value)
	return nil
}
