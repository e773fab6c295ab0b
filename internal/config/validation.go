// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"strings"

	"github.com/ManuGH/dmaic/internal/validate"
)

// Validate validates an AppConfig using the centralized validation package.
// It creates DataDir when missing.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.Directory("dataDir", cfg.DataDir, false)

	v.ListenAddr("api.listenAddr", cfg.API.ListenAddr)
	if cfg.Metrics.ListenAddr != "" {
		v.ListenAddr("metrics.listenAddr", cfg.Metrics.ListenAddr)
		if cfg.Metrics.ListenAddr == cfg.API.ListenAddr {
			v.AddError("metrics.listenAddr", "must differ from api.listenAddr", cfg.Metrics.ListenAddr)
		}
	}
	if cfg.API.ReadTimeout <= 0 {
		v.AddError("api.readTimeout", "must be positive", cfg.API.ReadTimeout)
	}
	if cfg.API.WriteTimeout <= 0 {
		v.AddError("api.writeTimeout", "must be positive", cfg.API.WriteTimeout)
	}
	v.NonNegative("api.rateLimitRPM", float64(cfg.API.RateLimitRPM))

	if cfg.Log.Level != "" {
		v.OneOf("log.level", strings.ToLower(cfg.Log.Level),
			[]string{"trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled"})
	}

	v.Range64("upload.maxBytes", cfg.Upload.MaxBytes, 1, 2<<30)
	if len(cfg.Upload.DataExtensions) == 0 {
		v.AddError("upload.dataExtensions", "at least one extension required", cfg.Upload.DataExtensions)
	}

	v.OpenInterval("analysis.alpha", cfg.Analysis.Alpha, 0, 1)
	if cfg.Analysis.MinSample < 2 {
		v.AddError("analysis.minSample", "must be at least 2", cfg.Analysis.MinSample)
	}
	v.PositiveFloat("analysis.capabilityMin", cfg.Analysis.CapabilityMin)
	if cfg.Analysis.CacheTTL < 0 {
		v.AddError("analysis.cacheTTL", "cannot be negative", cfg.Analysis.CacheTTL)
	}

	v.OneOf("cache.backend", cfg.Cache.Backend, []string{"memory", "redis", "none"})
	if cfg.Cache.Backend == "redis" {
		v.NotEmpty("cache.redisAddr", cfg.Cache.RedisAddr)
	}

	if cfg.Inbox.Enabled && cfg.Inbox.Debounce <= 0 {
		v.AddError("inbox.debounce", "must be positive", cfg.Inbox.Debounce)
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporterType", cfg.Telemetry.ExporterType, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			v.AddError("telemetry.samplingRate", "must be between 0 and 1", cfg.Telemetry.SamplingRate)
		}
	}

	return v.Err()
}
