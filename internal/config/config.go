// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config provides configuration management for dmaic.
package config

import (
	"path/filepath"
	"time"
)

// AppConfig is the fully merged runtime configuration.
// Field tags describe both the YAML key and the DMAIC_* environment variable.
type AppConfig struct {
	Version string `yaml:"-"`

	DataDir   string          `yaml:"dataDir" env:"DATA_DIR"`
	API       APIConfig       `yaml:"api" envPrefix:"API_"`
	Metrics   MetricsConfig   `yaml:"metrics" envPrefix:"METRICS_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Upload    UploadConfig    `yaml:"upload" envPrefix:"UPLOAD_"`
	Analysis  AnalysisConfig  `yaml:"analysis" envPrefix:"ANALYSIS_"`
	Cache     CacheConfig     `yaml:"cache" envPrefix:"CACHE_"`
	Inbox     InboxConfig     `yaml:"inbox" envPrefix:"INBOX_"`
	Report    ReportConfig    `yaml:"report" envPrefix:"REPORT_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"TELEMETRY_"`
}

// APIConfig configures the HTTP API listener.
type APIConfig struct {
	ListenAddr      string        `yaml:"listenAddr" env:"LISTEN_ADDR"`
	ReadTimeout     time.Duration `yaml:"readTimeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"SHUTDOWN_TIMEOUT"`
	RateLimitRPM    int           `yaml:"rateLimitRPM" env:"RATE_LIMIT_RPM"`
	AllowedOrigins  []string      `yaml:"allowedOrigins" env:"ALLOWED_ORIGINS"`
}

// MetricsConfig configures the Prometheus listener. Empty disables it.
type MetricsConfig struct {
	ListenAddr string `yaml:"listenAddr" env:"LISTEN_ADDR"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level   string `yaml:"level" env:"LEVEL"`
	Service string `yaml:"service" env:"SERVICE"`
}

// UploadConfig bounds what the file repository accepts.
type UploadConfig struct {
	MaxBytes           int64    `yaml:"maxBytes" env:"MAX_BYTES"`
	DataExtensions     []string `yaml:"dataExtensions" env:"DATA_EXTENSIONS"`
	DocumentExtensions []string `yaml:"documentExtensions" env:"DOCUMENT_EXTENSIONS"`
}

// AnalysisConfig holds statistical thresholds.
type AnalysisConfig struct {
	Alpha         float64       `yaml:"alpha" env:"ALPHA"`
	MinSample     int           `yaml:"minSample" env:"MIN_SAMPLE"`
	CapabilityMin float64       `yaml:"capabilityMin" env:"CAPABILITY_MIN"`
	CacheTTL      time.Duration `yaml:"cacheTTL" env:"CACHE_TTL"`
}

// CacheConfig selects the analysis result cache backend.
type CacheConfig struct {
	Backend   string `yaml:"backend" env:"BACKEND"`
	RedisAddr string `yaml:"redisAddr" env:"REDIS_ADDR"`
	RedisDB   int    `yaml:"redisDB" env:"REDIS_DB"`
}

// InboxConfig configures the drop-folder watcher.
type InboxConfig struct {
	Enabled  bool          `yaml:"enabled" env:"ENABLED"`
	Dir      string        `yaml:"dir" env:"DIR"`
	Debounce time.Duration `yaml:"debounce" env:"DEBOUNCE"`
}

// ReportConfig holds report defaults.
type ReportConfig struct {
	Organization string `yaml:"organization" env:"ORGANIZATION"`
	Author       string `yaml:"author" env:"AUTHOR"`
	Locale       string `yaml:"locale" env:"LOCALE"`
}

// TelemetryConfig mirrors telemetry.Config.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	ServiceName  string  `yaml:"serviceName" env:"SERVICE_NAME"`
	Environment  string  `yaml:"environment" env:"ENVIRONMENT"`
	ExporterType string  `yaml:"exporterType" env:"EXPORTER_TYPE"`
	Endpoint     string  `yaml:"endpoint" env:"ENDPOINT"`
	SamplingRate float64 `yaml:"samplingRate" env:"SAMPLING_RATE"`
}

// Paths are the directories derived from DataDir.
type Paths struct {
	DB      string
	Files   string
	Curated string
	Results string
	Inbox   string
}

// CatalogDB is the SQLite database holding files, datasets and runs.
func (p Paths) CatalogDB() string {
	return filepath.Join(p.DB, "catalog.sqlite")
}

// ProjectsDB is the SQLite database holding DMAIC projects.
func (p Paths) ProjectsDB() string {
	return filepath.Join(p.DB, "projects.sqlite")
}

// Paths derives the storage layout under DataDir.
func (c AppConfig) Paths() Paths {
	inbox := c.Inbox.Dir
	if inbox == "" {
		inbox = filepath.Join(c.DataDir, "inbox")
	}
	return Paths{
		DB:      filepath.Join(c.DataDir, "db"),
		Files:   filepath.Join(c.DataDir, "files"),
		Curated: filepath.Join(c.DataDir, "curated"),
		Results: filepath.Join(c.DataDir, "results"),
		Inbox:   inbox,
	}
}

// Defaults returns the baseline configuration applied before file and env.
func Defaults() AppConfig {
	return AppConfig{
		DataDir: "data",
		API: APIConfig{
			ListenAddr:      ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			RateLimitRPM:    600,
		},
		Metrics: MetricsConfig{ListenAddr: ":9090"},
		Log:     LogConfig{Level: "info", Service: "dmaic"},
		Upload: UploadConfig{
			MaxBytes:           200 << 20,
			DataExtensions:     []string{".csv", ".xlsx", ".xls"},
			DocumentExtensions: []string{".pdf", ".docx", ".xlsx", ".csv"},
		},
		Analysis: AnalysisConfig{
			Alpha:         0.05,
			MinSample:     3,
			CapabilityMin: 1.33,
			CacheTTL:      10 * time.Minute,
		},
		Cache: CacheConfig{Backend: "memory"},
		Inbox: InboxConfig{Debounce: 500 * time.Millisecond},
		Report: ReportConfig{
			Organization: "Greenpeace",
			Author:       "Equipe DMAIC",
			Locale:       "pt-BR",
		},
		Telemetry: TelemetryConfig{
			ServiceName:  "dmaic",
			Environment:  "production",
			ExporterType: "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}
