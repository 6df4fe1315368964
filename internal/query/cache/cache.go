// Package cache stores query expansions in Redis. Concurrent misses for the
// same question share one computation.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	pkgredis "github.com/Adithya-Monish-Kumar-K/docqa/pkg/redis"
)

const keyPrefix = "expand:"

// KV is the subset of the Redis client the cache needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type ExpansionCache struct {
	client KV
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func New(client KV, ttl time.Duration) *ExpansionCache {
	return &ExpansionCache{
		client: client,
		ttl:    ttl,
		logger: slog.Default().With("component", "expansion-cache"),
	}
}

// Get returns the cached expansion. Redis errors count as misses.
func (c *ExpansionCache) Get(ctx context.Context, model, text string) (string, bool) {
	key := BuildKey(model, text)
	val, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return "", false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", key)
	return val, true
}

func (c *ExpansionCache) Set(ctx context.Context, model, text, expansion string) {
	key := BuildKey(model, text)
	if err := c.client.Set(ctx, key, expansion, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached expansion or runs compute once per key
// across concurrent callers. Empty results are not cached.
func (c *ExpansionCache) GetOrCompute(ctx context.Context, model, text string, compute func() (string, error)) (string, bool, error) {
	if val, ok := c.Get(ctx, model, text); ok {
		return val, true, nil
	}
	key := BuildKey(model, text)
	val, err, _ := c.group.Do(key, func() (any, error) {
		if val, ok := c.Get(ctx, model, text); ok {
			return val, nil
		}
		val, err := compute()
		if err != nil {
			return "", err
		}
		if val != "" {
			c.Set(ctx, model, text, val)
		}
		return val, nil
	})
	if err != nil {
		return "", false, err
	}
	return val.(string), false, nil
}

func (c *ExpansionCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// BuildKey hashes the model and the whitespace- and case-normalised text.
func BuildKey(model, text string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	hash := sha256.Sum256([]byte(model + "\x00" + normalized))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
