// Package cache stores regenerated baseline rasters so repeated runs do not
// re-render unchanged reference pages.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spherical/pdf-fidelity/internal/config"
	"github.com/spherical/pdf-fidelity/internal/domain"
)

// ErrCacheMiss indicates a cache miss.
var ErrCacheMiss = errors.New("cache miss")

// Client defines the cache interface.
type Client interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Close() error
}

// New builds the client selected by cfg.Driver
func New(cfg config.CacheConfig) (Client, error) {
	switch cfg.Driver {
	case "memory", "":
		return NewMemoryClient(cfg.MaxEntries), nil
	case "redis":
		c, err := NewRedisClient(RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unsupported cache driver %q", cfg.Driver), nil)
	}
}

// Key generates a cache key from components.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// RasterKey addresses one baseline raster. The document checksum is part of
// the key so an edited source never hits a stale entry.
func RasterKey(engine domain.EngineIdentity, documentChecksum string, page int, kind domain.ArtifactKind) string {
	return Key("raster", engine.Slug(), documentChecksum, fmt.Sprintf("%d", page), string(kind))
}

// DocumentPrefix is the key prefix of every raster of one document
func DocumentPrefix(engine domain.EngineIdentity, documentChecksum string) string {
	return Key("raster", engine.Slug(), documentChecksum) + ":"
}
