package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/config"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	c, err := NewClient(config.RedisConfig{Addr: addr, PoolSize: 2})
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestGetSet(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	key := "test:" + uuid.NewString()
	t.Cleanup(func() { c.Del(context.Background(), key) })

	_, err := c.Get(ctx, key)
	assert.True(t, IsNilError(err))

	require.NoError(t, c.Set(ctx, key, "value", time.Minute))
	v, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "value", v)
}

func TestLock(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	key := "test-lock:" + uuid.NewString()

	release, err := c.Lock(ctx, key, time.Minute)
	require.NoError(t, err)

	_, err = c.Lock(ctx, key, time.Minute)
	assert.True(t, errors.Is(err, ErrLockHeld))

	require.NoError(t, release(ctx))
	release2, err := c.Lock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.NoError(t, release2(ctx))
}

func TestIsNilError(t *testing.T) {
	assert.False(t, IsNilError(errors.New("connection refused")))
	assert.False(t, IsNilError(nil))
}
