package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 85, cfg.Extraction.JPEGQuality)
	assert.Equal(t, 0.99, cfg.Comparison.SimilarityPass)
	assert.True(t, cfg.Run.AbortOnInvariantViolation)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
extraction:
  workers: 8
  page_timeout: 5s
  full_metadata: true
comparison:
  metadata_epsilon: 0.001
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Extraction.Workers)
	assert.Equal(t, 5*time.Second, cfg.Extraction.PageTimeout)
	assert.True(t, cfg.Extraction.FullMetadata)
	assert.Equal(t, 0.001, cfg.Comparison.MetadataEpsilon)
	// untouched defaults survive
	assert.Equal(t, 72.0, cfg.Extraction.DPI)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/fidelity?sslmode=disable")
	t.Setenv("REDIS_URL", "redis://cache:6379")
	t.Setenv("PDF_FIDELITY_WORKERS", "3")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://u:p@localhost:5432/fidelity?sslmode=disable", cfg.DatabaseDSN())
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, "cache:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, 3, cfg.Extraction.Workers)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Extraction.Workers = 0 }},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }},
		{"bad cache", func(c *Config) { c.Cache.Driver = "memcached" }},
		{"jpeg quality", func(c *Config) { c.Extraction.JPEGQuality = 101 }},
		{"review above pass", func(c *Config) { c.Comparison.SimilarityReview = 0.999 }},
		{"no timeout", func(c *Config) { c.Extraction.PageTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
