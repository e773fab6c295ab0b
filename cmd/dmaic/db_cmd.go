// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ManuGH/dmaic/internal/persistence/sqlite"
)

var errIntegrity = errors.New("database integrity check failed")

func newDBCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance",
	}
	cmd.AddCommand(newDBVerifyCmd(opts))
	return cmd
}

func newDBVerifyCmd(opts *rootOptions) *cobra.Command {
	var (
		full bool
		path string
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the integrity of the catalog and project databases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode := "quick"
			if full {
				mode = "full"
			}
			dbs := []string{path}
			if path == "" {
				cfg, err := opts.load()
				if err != nil {
					return err
				}
				paths := cfg.Paths()
				dbs = []string{paths.CatalogDB(), paths.ProjectsDB()}
			}

			checked := 0
			var failed bool
			for _, db := range dbs {
				if _, err := os.Stat(db); errors.Is(err, os.ErrNotExist) && path == "" {
					continue
				}
				checked++
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "🔍 Verifying integrity of %s (mode: %s)...\n", db, mode)
				issues, err := sqlite.VerifyIntegrity(db, mode)
				if err != nil {
					return &exitError{code: 1, err: fmt.Errorf("verify %s: %w", db, err)}
				}
				if issues != nil {
					failed = true
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "🚨 CORRUPTION DETECTED in %s\n", db)
					for _, issue := range issues {
						_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", issue)
					}
					continue
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✅ %s: ok\n", db)
			}
			if checked == 0 {
				return &exitError{code: 2, err: fmt.Errorf("no databases found")}
			}
			if failed {
				return &exitError{code: 1, err: errIntegrity}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "run the full integrity_check instead of quick_check")
	cmd.Flags().StringVar(&path, "path", "", "verify a single database file")
	return cmd
}
