package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cachePrefix = "cerebro:emb:"

// Cached wraps a Provider with a Redis cache keyed by model and content hash.
// Redis failures are logged and the inner provider is used directly.
type Cached struct {
	inner  Provider
	rdb    *redis.Client
	model  string
	ttl    time.Duration
	logger *zap.Logger
}

// NewCached connects to redisURL and returns a caching decorator for inner.
func NewCached(ctx context.Context, inner Provider, redisURL, model string, ttl time.Duration, logger *zap.Logger) (*Cached, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Cached{inner: inner, rdb: rdb, model: model, ttl: ttl, logger: logger}, nil
}

func (c *Cached) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return cachePrefix + c.model + ":" + hex.EncodeToString(sum[:])
}

// Embed serves hits from Redis and embeds only the misses.
func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.key(t)
	}

	out := make([][]float32, len(texts))
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warn("embedding cache read failed", zap.Error(err))
		vals = nil
	}
	var missIdx []int
	var missTexts []string
	for i := range texts {
		if i < len(vals) {
			if s, ok := vals[i].(string); ok {
				var vec []float32
				if json.Unmarshal([]byte(s), &vec) == nil && len(vec) > 0 {
					out[i] = vec
					continue
				}
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, texts[i])
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedding: got %d vectors for %d inputs", len(fresh), len(missTexts))
	}

	pipe := c.rdb.Pipeline()
	for j, i := range missIdx {
		out[i] = fresh[j]
		data, err := json.Marshal(fresh[j])
		if err != nil {
			continue
		}
		pipe.Set(ctx, keys[i], data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("embedding cache write failed", zap.Error(err))
	}

	c.logger.Debug("embedded texts",
		zap.Int("cached", len(texts)-len(missTexts)),
		zap.Int("fresh", len(missTexts)))
	return out, nil
}

func (c *Cached) Dimension() int {
	return c.inner.Dimension()
}

// Close closes the Redis connection.
func (c *Cached) Close() error {
	return c.rdb.Close()
}
