// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command dmaic runs the DMAIC analytics server and its maintenance CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ManuGH/dmaic/internal/config"
	xglog "github.com/ManuGH/dmaic/internal/log"
	"github.com/ManuGH/dmaic/internal/version"
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "dmaic",
		Short:         "DMAIC data analysis server and toolkit",
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file (YAML)")

	root.AddCommand(
		newServeCmd(opts),
		newIngestCmd(opts),
		newCurateCmd(opts),
		newDatasetsCmd(opts),
		newAnalyzeCmd(opts),
		newReportCmd(opts),
		newConfigCmd(opts),
		newDBCmd(opts),
		newHealthcheckCmd(),
		newVersionCmd(),
	)
	return root
}

// resolveConfigPath returns the explicit --config path, or
// ${DMAIC_DATA_DIR}/config.yaml when that file exists.
func (o *rootOptions) resolveConfigPath() string {
	if p := strings.TrimSpace(o.configPath); p != "" {
		return p
	}
	dataDir := strings.TrimSpace(os.Getenv(config.EnvPrefix + "DATA_DIR"))
	if dataDir == "" {
		return ""
	}
	auto := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(auto); err == nil {
		return auto
	}
	return ""
}

// load reads the configuration and reconfigures the global logger with it.
func (o *rootOptions) load() (config.AppConfig, error) {
	cfg, err := config.NewLoader(o.resolveConfigPath(), version.Version).Load()
	if err != nil {
		return cfg, err
	}
	xglog.Configure(xglog.Config{
		Level:   cfg.Log.Level,
		Output:  os.Stderr,
		Service: cfg.Log.Service,
		Version: cfg.Version,
	})
	return cfg, nil
}

func main() {
	xglog.Configure(xglog.Config{
		Level:   "info",
		Output:  os.Stderr,
		Service: "dmaic",
		Version: version.Version,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	var ee *exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	os.Exit(1)
}
