// Package config provides unified configuration loading for pdf-fidelity.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for pdf-fidelity.
type Config struct {
	Registry      RegistryConfig      `yaml:"registry"`
	Baseline      BaselineConfig      `yaml:"baseline"`
	Database      DatabaseConfig      `yaml:"database"`
	Cache         CacheConfig         `yaml:"cache"`
	Extraction    ExtractionConfig    `yaml:"extraction"`
	Comparison    ComparisonConfig    `yaml:"comparison"`
	Run           RunConfig           `yaml:"run"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// RegistryConfig locates the document catalog.
type RegistryConfig struct {
	Path string `yaml:"path"`
}

// BaselineConfig locates persisted reference artifacts.
type BaselineConfig struct {
	Dir string `yaml:"dir"`
}

// DatabaseConfig holds manifest store connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	JournalMode  string `yaml:"journal_mode"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig holds settings for the regenerated-raster cache.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// ExtractionConfig holds worker and raster settings.
type ExtractionConfig struct {
	Workers      int           `yaml:"workers"`
	DPI          float64       `yaml:"dpi"`
	JPEGQuality  int           `yaml:"jpeg_quality"`
	PageTimeout  time.Duration `yaml:"page_timeout"`
	FullMetadata bool          `yaml:"full_metadata"`
}

// ComparisonConfig holds tolerance settings.
type ComparisonConfig struct {
	MetadataEpsilon  float64 `yaml:"metadata_epsilon"`
	SimilarityPass   float64 `yaml:"similarity_pass"`
	SimilarityReview float64 `yaml:"similarity_review"`
	RegionPixelDelta int     `yaml:"region_pixel_delta"`
}

// RunConfig holds batch orchestration settings.
type RunConfig struct {
	DocumentConcurrency       int    `yaml:"document_concurrency"`
	AbortOnInvariantViolation bool   `yaml:"abort_on_invariant_violation"`
	OutputDir                 string `yaml:"output_dir"`
	KeepArtifacts             bool   `yaml:"keep_artifacts"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for local runs.
func DefaultConfig() *Config {
	return &Config{
		Registry: RegistryConfig{
			Path: "testdata/documents.yaml",
		},
		Baseline: BaselineConfig{
			Dir: "testdata/baseline",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path:         "testdata/manifest.db",
				MaxOpenConns: 1,
				JournalMode:  "WAL",
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        30 * time.Minute,
			MaxEntries: 512,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
			},
		},
		Extraction: ExtractionConfig{
			Workers:     4,
			DPI:         72,
			JPEGQuality: 85,
			PageTimeout: 30 * time.Second,
		},
		Comparison: ComparisonConfig{
			MetadataEpsilon:  1e-4,
			SimilarityPass:   0.99,
			SimilarityReview: 0.95,
			RegionPixelDelta: 8,
		},
		Run: RunConfig{
			DocumentConcurrency:       1,
			AbortOnInvariantViolation: true,
			OutputDir:                 "out",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}

	if c.Database.Driver == "postgres" && c.Database.Postgres.DSN == "" {
		return fmt.Errorf("postgres driver requires a dsn")
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Extraction.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Extraction.Workers)
	}

	if c.Extraction.DPI <= 0 {
		return fmt.Errorf("dpi must be positive, got %v", c.Extraction.DPI)
	}

	if c.Extraction.JPEGQuality < 1 || c.Extraction.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be between 1 and 100, got %d", c.Extraction.JPEGQuality)
	}

	if c.Extraction.PageTimeout <= 0 {
		return fmt.Errorf("page_timeout must be positive")
	}

	if c.Comparison.MetadataEpsilon < 0 {
		return fmt.Errorf("metadata_epsilon must not be negative")
	}

	if c.Comparison.SimilarityPass <= 0 || c.Comparison.SimilarityPass > 1 {
		return fmt.Errorf("similarity_pass must be in (0, 1]")
	}

	if c.Comparison.SimilarityReview < 0 || c.Comparison.SimilarityReview > c.Comparison.SimilarityPass {
		return fmt.Errorf("similarity_review must be in [0, similarity_pass]")
	}

	if c.Run.DocumentConcurrency < 1 {
		return fmt.Errorf("document_concurrency must be at least 1")
	}

	return nil
}

// DatabaseDSN returns the appropriate database connection string.
func (c *Config) DatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLite.Path
	}
	return c.Database.Postgres.DSN
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PDF_FIDELITY_REGISTRY"); v != "" {
		cfg.Registry.Path = v
	}

	if v := os.Getenv("PDF_FIDELITY_BASELINE_DIR"); v != "" {
		cfg.Baseline.Dir = v
	}

	if v := os.Getenv("PDF_FIDELITY_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Extraction.Workers = n
		}
	}

	if v := os.Getenv("PDF_FIDELITY_PAGE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Extraction.PageTimeout = d
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.Postgres.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
