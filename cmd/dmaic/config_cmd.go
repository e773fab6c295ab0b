// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ManuGH/dmaic/internal/config"
	"github.com/ManuGH/dmaic/internal/version"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate or print the effective configuration",
	}
	cmd.AddCommand(newConfigValidateCmd(opts), newConfigDumpCmd(opts))
	return cmd
}

func newConfigValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration (file, then DMAIC_* env) and validate it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := opts.resolveConfigPath()
			if _, err := config.NewLoader(path, version.Version).Load(); err != nil {
				return &exitError{code: 1, err: fmt.Errorf("configuration error in %s: %w", describeSource(path), err)}
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid\n", describeSource(path))
			return nil
		},
	}
}

func newConfigDumpCmd(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewLoader(opts.resolveConfigPath(), version.Version).Load()
			if err != nil {
				return err
			}
			switch strings.ToLower(format) {
			case "yaml", "yml":
				return config.Dump(cmd.OutOrStdout(), cfg)
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			default:
				return &exitError{code: 2, err: fmt.Errorf("invalid format %q, use yaml or json", format)}
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "output format: yaml or json")
	return cmd
}

func describeSource(path string) string {
	if path == "" {
		return "environment and defaults"
	}
	return path
}
