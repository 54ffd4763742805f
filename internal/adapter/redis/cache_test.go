package redis

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/arso-air-quality-etl/internal/domain"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableCache points at a closed port so every command fails fast.
func unreachableCache(t *testing.T) *Cache {
	t.Helper()
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return newCache(client, "arso:test", time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCache_ErrorsAreWrapped(t *testing.T) {
	c := unreachableCache(t)
	ctx := context.Background()

	err := c.Publish(ctx, domain.Snapshot{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis set arso:test")

	_, err = c.Snapshot(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNoSnapshot, "an outage is not an empty cache")
	assert.Contains(t, err.Error(), "redis get arso:test")
}

func TestNewCache_PingFailure(t *testing.T) {
	_, err := NewCache(context.Background(), Options{Addr: "127.0.0.1:1", Key: "k", TTL: time.Minute},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect redis")
}
