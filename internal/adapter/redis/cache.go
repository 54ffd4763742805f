package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/arso-air-quality-etl/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// Cache stores the latest snapshot under a fixed key so the serving layer
// can read it without touching Postgres.
type Cache struct {
	client *goredis.Client
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

// Options configures the cache connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Key      string
	TTL      time.Duration
}

// NewCache connects to Redis and verifies the connection with a ping.
func NewCache(ctx context.Context, opts Options, logger *slog.Logger) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return newCache(client, opts.Key, opts.TTL, logger), nil
}

func newCache(client *goredis.Client, key string, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{client: client, key: key, ttl: ttl, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (c *Cache) Name() string { return "redis" }

// Publish stores the snapshot as JSON under the configured key.
func (c *Cache) Publish(ctx context.Context, snap domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("serialize snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", c.key, err)
	}
	c.logger.Debug("snapshot cached", "key", c.key, "stations", len(snap.Stations), "bytes", len(data))
	return nil
}

// Snapshot reads the cached snapshot. It returns domain.ErrNoSnapshot when
// the key is absent or expired.
func (c *Cache) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.Snapshot{}, domain.ErrNoSnapshot
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("redis get %s: %w", c.key, err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode cached snapshot: %w", err)
	}
	return snap, nil
}

// Invalidate removes the cached snapshot.
func (c *Cache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}

// CheckReadiness pings Redis.
func (c *Cache) CheckReadiness(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
