// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package analysis runs statistical analyses against curated datasets,
// caching results and recording every fresh run in the catalog.
package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/dmaic/internal/cache"
	"github.com/ManuGH/dmaic/internal/catalog"
	"github.com/ManuGH/dmaic/internal/dataset"
	"github.com/ManuGH/dmaic/internal/log"
	"github.com/ManuGH/dmaic/internal/metrics"
	"github.com/ManuGH/dmaic/internal/report"
	"github.com/ManuGH/dmaic/internal/spc"
	"github.com/ManuGH/dmaic/internal/stats"
	"github.com/ManuGH/dmaic/internal/telemetry"
)

var (
	// ErrUnknownKind is returned for analysis names outside Kinds().
	ErrUnknownKind = errors.New("unknown analysis kind")
	// ErrInvalidParams is returned for missing or malformed parameters.
	ErrInvalidParams = errors.New("invalid analysis parameters")
	// ErrColumnNotFound is returned when a parameter names a missing column.
	ErrColumnNotFound = dataset.ErrColumnNotFound
	// ErrNotNumeric is returned when a numeric column is required.
	ErrNotNumeric = errors.New("column is not numeric")
)

// batchLimit bounds concurrent runs in RunBatch.
const batchLimit = 4

// Request selects an analysis. Version 0 means the latest version.
type Request struct {
	Kind    Kind   `json:"kind"`
	Dataset string `json:"dataset"`
	Version int64  `json:"version,omitempty"`
	Params  Params `json:"params,omitempty"`
}

// Result is the outcome of a run. Cached results keep the run id of the
// run that produced them.
type Result struct {
	RunID     string          `json:"run_id"`
	Kind      Kind            `json:"kind"`
	Phase     string          `json:"phase"`
	Dataset   string          `json:"dataset"`
	Version   int64           `json:"version"`
	Params    Params          `json:"params"`
	CreatedAt time.Time       `json:"created_at"`
	Cached    bool            `json:"cached"`
	Output    json.RawMessage `json:"output"`
}

// DatasetResolver finds curated versions.
type DatasetResolver interface {
	ResolveDataset(ctx context.Context, name string, version int64) (catalog.DatasetVersion, error)
}

// RunRecorder persists run metadata.
type RunRecorder interface {
	RecordRun(ctx context.Context, r catalog.Run) error
}

// ManifestSaver writes run manifests.
type ManifestSaver interface {
	SaveManifest(m report.Manifest) (report.Manifest, string, error)
}

// Config holds the thresholds and cache TTL of a Service.
type Config struct {
	Stats    stats.Config
	CacheTTL time.Duration
}

// Service executes analyses.
type Service struct {
	datasets  DatasetResolver
	runs      RunRecorder
	manifests ManifestSaver
	cache     cache.Cache
	cfg       Config
	sf        singleflight.Group
	load      func(path string) (*dataset.Frame, error)
	now       func() time.Time
}

// NewService wires a Service. A nil cache disables caching.
func NewService(datasets DatasetResolver, runs RunRecorder, manifests ManifestSaver, c cache.Cache, cfg Config) *Service {
	if c == nil {
		c = cache.NewNoOpCache()
	}
	if cfg.Stats == (stats.Config{}) {
		cfg.Stats = stats.DefaultConfig()
	}
	return &Service{
		datasets:  datasets,
		runs:      runs,
		manifests: manifests,
		cache:     c,
		cfg:       cfg,
		load:      dataset.ReadParquet,
		now:       time.Now,
	}
}

// Config returns the effective configuration.
func (s *Service) Config() Config { return s.cfg }

func cacheKey(kind Kind, name string, version int64, p Params) string {
	sum := sha256.Sum256([]byte(p.Canonical()))
	return "analysis:" + string(kind) + ":" + name + ":" + strconv.FormatInt(version, 10) + ":" + hex.EncodeToString(sum[:8])
}

// Run executes req, serving identical requests from the cache while the
// entry lives. Concurrent identical requests share one computation.
func (s *Service) Run(ctx context.Context, req Request) (res Result, err error) {
	ctx, span := telemetry.Tracer("dmaic/analysis").Start(ctx, "analysis.run")
	span.SetAttributes(telemetry.AnalysisAttributes(string(req.Kind), req.Dataset, req.Version)...)
	defer func() {
		if err != nil {
			telemetry.RecordError(span, err, "analysis")
		} else {
			span.SetAttributes(
				attribute.String(telemetry.AnalysisRunIDKey, res.RunID),
				attribute.Bool(telemetry.AnalysisCachedKey, res.Cached),
			)
		}
		span.End()
	}()

	if _, err := ParseKind(string(req.Kind)); err != nil {
		return Result{}, err
	}
	if req.Params == nil {
		req.Params = Params{}
	}
	v, err := s.datasets.ResolveDataset(ctx, req.Dataset, req.Version)
	if err != nil {
		return Result{}, err
	}
	key := cacheKey(req.Kind, v.Name, v.Version, req.Params)

	if res, ok := s.cached(ctx, key); ok {
		return res, nil
	}

	// The shared computation must outlive a single caller's cancellation.
	shared := context.WithoutCancel(ctx)
	out, err, _ := s.sf.Do(key, func() (any, error) {
		if res, ok := s.cached(shared, key); ok {
			return res, nil
		}
		res, err := s.execute(shared, req, v)
		if err != nil {
			return Result{}, err
		}
		if s.cfg.CacheTTL > 0 {
			if data, err := json.Marshal(res); err == nil {
				s.cache.Set(shared, key, data, s.cfg.CacheTTL)
			}
		}
		return res, nil
	})
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	if err != nil {
		return Result{}, err
	}
	return out.(Result), nil
}

func (s *Service) cached(ctx context.Context, key string) (Result, bool) {
	if s.cfg.CacheTTL <= 0 {
		return Result{}, false
	}
	data, ok := s.cache.Get(ctx, key)
	metrics.RecordCacheLookup(ok)
	if !ok {
		return Result{}, false
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		s.cache.Delete(ctx, key)
		return Result{}, false
	}
	res.Cached = true
	return res, true
}

func (s *Service) execute(ctx context.Context, req Request, v catalog.DatasetVersion) (res Result, err error) {
	spec := kinds[req.Kind]
	logger := log.WithComponentFromContext(ctx, "analysis")
	start := s.now()
	defer func() {
		outcome := "success"
		switch {
		case err == nil:
		case isInputError(err):
			outcome = "rejected"
		default:
			outcome = "error"
		}
		metrics.RecordAnalysis(string(req.Kind), outcome, time.Since(start))
	}()

	f, err := s.load(v.ParquetPath)
	if err != nil {
		return Result{}, fmt.Errorf("load dataset %s v%d: %w", v.Name, v.Version, err)
	}
	output, err := spec.run(f, req.Params, s.cfg.Stats)
	if err != nil {
		logger.Info().
			Err(err).
			Str(log.FieldKind, string(req.Kind)).
			Str(log.FieldDataset, v.Name).
			Msg("analysis rejected")
		return Result{}, err
	}
	raw, err := json.Marshal(output)
	if err != nil {
		return Result{}, fmt.Errorf("encode %s result: %w", req.Kind, err)
	}
	params, err := json.Marshal(req.Params)
	if err != nil {
		return Result{}, fmt.Errorf("encode parameters: %w", err)
	}

	now := s.now().UTC()
	runID := report.NewRunID(spec.phase, now) + "_" + uuid.NewString()[:8]
	_, manifestPath, err := s.manifests.SaveManifest(report.Manifest{
		RunID:      runID,
		Phase:      spec.phase,
		DatasetID:  v.Name + "@" + strconv.FormatInt(v.Version, 10),
		Timestamp:  now,
		Parameters: params,
		Results:    raw,
	})
	if err != nil {
		return Result{}, fmt.Errorf("save manifest: %w", err)
	}
	run := catalog.Run{
		ID:             runID,
		Phase:          spec.phase,
		Kind:           string(req.Kind),
		DatasetName:    v.Name,
		DatasetVersion: v.Version,
		Parameters:     params,
		ResultPath:     manifestPath,
		CreatedAt:      now,
	}
	if err := s.runs.RecordRun(ctx, run); err != nil {
		return Result{}, err
	}

	logger.Info().
		Str(log.FieldEvent, "analysis.completed").
		Str(log.FieldRunID, runID).
		Str(log.FieldKind, string(req.Kind)).
		Str(log.FieldDataset, v.Name).
		Int64(log.FieldVersion, v.Version).
		Dur(log.FieldDuration, time.Since(start)).
		Msg("analysis run recorded")

	return Result{
		RunID:     runID,
		Kind:      req.Kind,
		Phase:     spec.phase,
		Dataset:   v.Name,
		Version:   v.Version,
		Params:    req.Params,
		CreatedAt: now,
		Output:    raw,
	}, nil
}

// RunBatch runs several requests concurrently and returns results in
// request order. The first failure cancels the remaining runs.
func (s *Service) RunBatch(ctx context.Context, reqs []Request) ([]Result, error) {
	out := make([]Result, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchLimit)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := s.Run(gctx, req)
			if err != nil {
				return fmt.Errorf("%s on %s: %w", req.Kind, req.Dataset, err)
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// IsInputError reports whether err stems from the request or the data
// rather than from the service.
func IsInputError(err error) bool { return isInputError(err) }

func isInputError(err error) bool {
	return errors.Is(err, ErrUnknownKind) ||
		errors.Is(err, ErrInvalidParams) ||
		errors.Is(err, ErrColumnNotFound) ||
		errors.Is(err, ErrNotNumeric) ||
		errors.Is(err, spc.ErrInsufficientData) ||
		errors.Is(err, spc.ErrEmptyPareto) ||
		errors.Is(err, spc.ErrTooManyBins) ||
		stats.IsInputError(err)
}
