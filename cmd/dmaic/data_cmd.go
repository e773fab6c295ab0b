// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ManuGH/dmaic/internal/analysis"
	"github.com/ManuGH/dmaic/internal/catalog"
	"github.com/ManuGH/dmaic/internal/ingest"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// withServices loads the config, opens the stores and runs fn.
func withServices(ctx context.Context, opts *rootOptions, fn func(*services) error) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	svc, err := openServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()
	return fn(svc)
}

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var purpose, notes string
	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Store files in the repository and register them in the catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), opts, func(svc *services) error {
				out := make([]ingest.Result, 0, len(args))
				for _, path := range args {
					res, err := ingestFile(cmd.Context(), svc.files, path, ingest.SaveOptions{
						Purpose: catalog.Purpose(purpose),
						Notes:   notes,
					})
					if err != nil {
						return fmt.Errorf("ingest %s: %w", path, err)
					}
					out = append(out, res)
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().StringVar(&purpose, "purpose", string(catalog.PurposeData), "file purpose: data or document")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes stored with the file")
	return cmd
}

func ingestFile(ctx context.Context, repo *ingest.Repository, path string, opts ingest.SaveOptions) (ingest.Result, error) {
	// #nosec G304 -- operator-supplied path
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return ingest.Result{}, err
	}
	defer func() { _ = f.Close() }()
	return repo.Save(ctx, filepath.Base(path), f, opts)
}

func newCurateCmd(opts *rootOptions) *cobra.Command {
	var profileOnly bool
	cmd := &cobra.Command{
		Use:   "curate FILE_ID [NAME]",
		Short: "Clean a stored file into a new dataset version",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !profileOnly && len(args) != 2 {
				return fmt.Errorf("dataset NAME is required unless --profile is set")
			}
			return withServices(cmd.Context(), opts, func(svc *services) error {
				if profileOnly {
					prof, err := svc.curator.ProfileFile(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), prof)
				}
				res, err := svc.curator.Curate(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().BoolVar(&profileOnly, "profile", false, "only print the data quality profile of the raw file")
	return cmd
}

func newDatasetsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "datasets [NAME]",
		Short: "List curated datasets, or the versions of one dataset",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), opts, func(svc *services) error {
				var (
					list []catalog.DatasetVersion
					err  error
				)
				if len(args) == 1 {
					list, err = svc.catalog.DatasetVersions(cmd.Context(), args[0])
				} else {
					list, err = svc.catalog.ListDatasets(cmd.Context())
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), list)
			})
		},
	}
}

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var (
		version int64
		params  []string
	)
	cmd := &cobra.Command{
		Use:   "analyze KIND[,KIND...] DATASET",
		Short: "Run one or more analyses on a dataset version",
		Long: `Runs analyses against a curated dataset. Comma separated kinds run
concurrently and share the same parameters. Use "dmaic analyze --list" for
the kinds.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if list, _ := cmd.Flags().GetBool("list"); list {
				return nil
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if list, _ := cmd.Flags().GetBool("list"); list {
				for _, k := range analysis.Kinds() {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s\n", k, k.Phase())
				}
				return nil
			}
			p, err := analysis.ParseParamPairs(params)
			if err != nil {
				return err
			}
			var reqs []analysis.Request
			for _, k := range strings.Split(args[0], ",") {
				kind, err := analysis.ParseKind(strings.TrimSpace(k))
				if err != nil {
					return err
				}
				reqs = append(reqs, analysis.Request{Kind: kind, Dataset: args[1], Version: version, Params: p})
			}
			return withServices(cmd.Context(), opts, func(svc *services) error {
				results, err := svc.analysis.RunBatch(cmd.Context(), reqs)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), results)
			})
		},
	}
	cmd.Flags().Int64Var(&version, "version", 0, "dataset version (0 selects the latest)")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "analysis parameter as key=value (repeatable)")
	cmd.Flags().Bool("list", false, "list the supported analysis kinds")
	return cmd
}
