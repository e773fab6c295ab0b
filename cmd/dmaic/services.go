// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuGH/dmaic/internal/analysis"
	"github.com/ManuGH/dmaic/internal/cache"
	"github.com/ManuGH/dmaic/internal/catalog"
	"github.com/ManuGH/dmaic/internal/config"
	"github.com/ManuGH/dmaic/internal/dataset"
	"github.com/ManuGH/dmaic/internal/health"
	"github.com/ManuGH/dmaic/internal/ingest"
	"github.com/ManuGH/dmaic/internal/log"
	"github.com/ManuGH/dmaic/internal/project"
	"github.com/ManuGH/dmaic/internal/report"
	"github.com/ManuGH/dmaic/internal/stats"
)

// services are the stores and domain services shared by serve and the
// one-shot commands.
type services struct {
	cfg      config.AppConfig
	catalog  *catalog.Store
	projects *project.Store
	files    *ingest.Repository
	curator  *dataset.Curator
	cache    cache.Cache
	analysis *analysis.Service
	results  *report.Writer
	reports  *report.Generator
}

// openServices opens both databases and wires the services on top of them.
func openServices(ctx context.Context, cfg config.AppConfig) (*services, error) {
	paths := cfg.Paths()
	s := &services{cfg: cfg}

	var err error
	if s.catalog, err = catalog.Open(ctx, paths.CatalogDB()); err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if s.projects, err = project.Open(ctx, paths.ProjectsDB()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("open projects: %w", err)
	}
	s.files, err = ingest.NewRepository(ingest.Config{
		Dir:                paths.Files,
		MaxBytes:           cfg.Upload.MaxBytes,
		DataExtensions:     cfg.Upload.DataExtensions,
		DocumentExtensions: cfg.Upload.DocumentExtensions,
	}, s.catalog)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.cache, err = cache.New(ctx, cache.Options{
		Backend:   cfg.Cache.Backend,
		RedisAddr: cfg.Cache.RedisAddr,
		RedisDB:   cfg.Cache.RedisDB,
	}, log.WithComponent("cache"))
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("open cache: %w", err)
	}

	s.curator = dataset.NewCurator(s.files, s.catalog, paths.Curated)
	s.results = report.NewWriter(paths.Results)
	s.analysis = analysis.NewService(s.catalog, s.catalog, s.results, s.cache, analysis.Config{
		Stats: stats.Config{
			Alpha:         cfg.Analysis.Alpha,
			MinSample:     cfg.Analysis.MinSample,
			CapabilityMin: cfg.Analysis.CapabilityMin,
		},
		CacheTTL: cfg.Analysis.CacheTTL,
	})
	builder := report.NewBuilder(cfg.Report.Organization, cfg.Report.Author, cfg.Report.Locale)
	s.reports = report.NewGenerator(s.projects, s.catalog, s.curator, builder, s.results)
	return s, nil
}

// registerHealth adds the storage, database and cache checkers.
func (s *services) registerHealth(hm *health.Manager) {
	paths := s.cfg.Paths()
	hm.RegisterChecker(health.NewDirChecker(paths.Files, paths.Curated, paths.Results))
	hm.RegisterChecker(health.NewSQLiteChecker("catalog", s.catalog.DB()))
	hm.RegisterChecker(health.NewSQLiteChecker("projects", s.projects.DB()))
	var pinger health.Pinger
	if rc, ok := s.cache.(*cache.RedisCache); ok {
		pinger = rc
	}
	hm.RegisterChecker(health.NewCacheChecker(s.cfg.Cache.Backend, pinger))
}

// Close releases the cache and both databases.
func (s *services) Close() error {
	var errs []error
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	if s.projects != nil {
		errs = append(errs, s.projects.Close())
	}
	if s.catalog != nil {
		errs = append(errs, s.catalog.Close())
	}
	return errors.Join(errs...)
}
