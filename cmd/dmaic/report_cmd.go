// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ManuGH/dmaic/internal/report"
)

func newReportCmd(opts *rootOptions) *cobra.Command {
	var (
		formats     string
		datasetName string
		version     int64
	)
	cmd := &cobra.Command{
		Use:   "report PROJECT_ID KIND",
		Short: "Generate a project report (charter, measure, analyze or final)",
		Long: `Generates a report into the results directory and records it against
the project. The measure report needs --dataset; the analyze report lists
all analysis runs unless --dataset narrows it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := report.ParseKind(args[1])
			if err != nil {
				return err
			}
			fs, err := report.ParseFormats(formats)
			if err != nil {
				return err
			}
			return withServices(cmd.Context(), opts, func(svc *services) error {
				gen, err := svc.reports.Generate(cmd.Context(), report.Request{
					ProjectID: args[0],
					Kind:      kind,
					Formats:   fs,
					Dataset:   datasetName,
					Version:   version,
				})
				if err != nil {
					return err
				}
				for _, out := range gen.Outputs {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), out.Path)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&formats, "format", "f", string(report.FormatHTML), "comma separated output formats: html, pdf")
	cmd.Flags().StringVar(&datasetName, "dataset", "", "dataset for measure and analyze reports")
	cmd.Flags().Int64Var(&version, "version", 0, "dataset version (0 selects the latest)")
	return cmd
}
