package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spherical/pdf-fidelity/internal/domain"
	"github.com/spherical/pdf-fidelity/internal/retry"
)

const (
	defaultRedisPrefix = "pdf-fidelity:"
	scanBatch          = 256
)

// RedisClient stores rasters in Redis under a shared key prefix.
type RedisClient struct {
	client *redis.Client
	prefix string
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	Prefix   string
}

// NewRedisClient connects and pings, retrying while the server comes up.
func NewRedisClient(cfg RedisConfig) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ping := func(ctx context.Context) error {
		pctx, pcancel := context.WithTimeout(ctx, 5*time.Second)
		defer pcancel()
		return client.Ping(pctx).Err()
	}
	if err := retry.Do(ctx, retry.DefaultConfig(), nil, "redis ping", ping); err != nil {
		client.Close()
		return nil, domain.IOError("redis unavailable at "+cfg.Addr, err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisClient{client: client, prefix: prefix}, nil
}

func (c *RedisClient) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrCacheMiss
	case err != nil:
		return nil, domain.IOError("redis get "+key, err)
	}
	return val, nil
}

// Set stores a value with a TTL; zero keeps it until evicted.
func (c *RedisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return domain.IOError("redis set "+key, err)
	}
	return nil
}

func (c *RedisClient) Delete(ctx context.Context, key string) error {
	if err := c.client.Unlink(ctx, c.prefix+key).Err(); err != nil {
		return domain.IOError("redis delete "+key, err)
	}
	return nil
}

// DeleteByPrefix unlinks every key under prefix in SCAN-sized batches, so a
// re-baseline of a large document does not block the server.
func (c *RedisClient) DeleteByPrefix(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, c.prefix+prefix+"*", scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := c.client.Unlink(ctx, batch...).Err()
		batch = batch[:0]
		return err
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return domain.IOError("redis delete prefix "+prefix, err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return domain.IOError("redis scan "+prefix, err)
	}
	if err := flush(); err != nil {
		return domain.IOError("redis delete prefix "+prefix, err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	return c.client.Close()
}
