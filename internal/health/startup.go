// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ManuGH/dmaic/internal/config"
	"github.com/ManuGH/dmaic/internal/log"
)

// PerformStartupChecks prepares the storage layout and validates runtime
// dependencies before the server starts.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	paths := cfg.Paths()
	for _, dir := range []string{paths.DB, paths.Files, paths.Curated, paths.Results} {
		if err := checkDir(dir); err != nil {
			return fmt.Errorf("storage check failed: %w", err)
		}
	}
	if cfg.Inbox.Enabled {
		if err := checkDir(paths.Inbox); err != nil {
			return fmt.Errorf("inbox check failed: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkCache(cfg.Cache); err != nil {
		return fmt.Errorf("cache check failed: %w", err)
	}
	warnTempDataDir(logger, cfg.DataDir)

	logger.Info().Str(log.FieldPath, cfg.DataDir).Msg("all startup checks passed")
	return nil
}

func checkDir(path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}
	if err := writable(path); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	return nil
}

func checkCache(cfg config.CacheConfig) error {
	if cfg.Backend != "redis" {
		return nil
	}
	if _, _, err := net.SplitHostPort(cfg.RedisAddr); err != nil {
		return fmt.Errorf("invalid redis address %q: %w", cfg.RedisAddr, err)
	}
	return nil
}

func warnTempDataDir(logger zerolog.Logger, dataDir string) {
	tempDir := filepath.Clean(os.TempDir())
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		return
	}
	if tempDir != "." && (abs == tempDir || strings.HasPrefix(abs, tempDir+string(filepath.Separator))) {
		logger.Warn().
			Str("data_dir", dataDir).
			Msg("data directory is under temp; datasets and reports may be lost on reboot")
	}
}
