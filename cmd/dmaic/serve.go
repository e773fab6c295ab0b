// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ManuGH/dmaic/internal/api"
	"github.com/ManuGH/dmaic/internal/config"
	"github.com/ManuGH/dmaic/internal/daemon"
	"github.com/ManuGH/dmaic/internal/health"
	"github.com/ManuGH/dmaic/internal/inbox"
	xglog "github.com/ManuGH/dmaic/internal/log"
	"github.com/ManuGH/dmaic/internal/telemetry"
	"github.com/ManuGH/dmaic/internal/version"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg config.AppConfig) error {
	logger := xglog.WithComponent("daemon")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Error().
			Err(err).
			Str("event", "startup.check_failed").
			Msg("startup checks failed, verify configuration and permissions")
		return err
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.ExporterType,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	svc, err := openServices(ctx, cfg)
	if err != nil {
		_ = tp.Shutdown(context.WithoutCancel(ctx))
		return err
	}

	hm := health.NewManager(cfg.Version)
	svc.registerHealth(hm)

	srv, err := api.New(api.ConfigFrom(cfg), api.Deps{
		Catalog:  svc.catalog,
		Files:    svc.files,
		Curator:  svc.curator,
		Analysis: svc.analysis,
		Projects: svc.projects,
		Reports:  svc.reports,
		Results:  svc.results,
		Health:   hm,
	})
	if err != nil {
		_ = svc.Close()
		_ = tp.Shutdown(context.WithoutCancel(ctx))
		return err
	}

	mgr, err := daemon.NewManager(daemon.ServerConfigFrom(cfg), daemon.Deps{
		Logger:         logger,
		APIHandler:     srv.Handler(),
		MetricsHandler: promhttp.Handler(),
	})
	if err != nil {
		_ = svc.Close()
		_ = tp.Shutdown(context.WithoutCancel(ctx))
		return fmt.Errorf("create daemon manager: %w", err)
	}
	// Hooks run in reverse order: stores close after telemetry flushed.
	mgr.RegisterShutdownHook("stores", func(context.Context) error { return svc.Close() })
	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)

	var tasks []daemon.Task
	if cfg.Inbox.Enabled {
		w := inbox.New(inbox.Config{Dir: cfg.Paths().Inbox, Debounce: cfg.Inbox.Debounce}, svc.files)
		tasks = append(tasks, daemon.Task{Name: "inbox", Run: w.Run})
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.API.ListenAddr).
		Str("data_dir", cfg.DataDir).
		Str("cache", cfg.Cache.Backend).
		Bool("inbox", cfg.Inbox.Enabled).
		Bool("tracing", cfg.Telemetry.Enabled).
		Msg("starting dmaic")

	if err := daemon.NewApp(logger, mgr, tasks...).Run(ctx); err != nil {
		return fmt.Errorf("daemon app failed: %w", err)
	}
	logger.Info().Msg("server exiting")
	return nil
}
