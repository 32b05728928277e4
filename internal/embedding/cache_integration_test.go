//go:build integration

package embedding

import (
	"context"
	"sync"
	"testing"
	"time"

	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"
)

// countingProvider returns a vector derived from each text's length and
// counts how many texts it was asked to embed.
type countingProvider struct {
	mu    sync.Mutex
	texts int
}

func (p *countingProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	p.texts += len(texts)
	p.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (p *countingProvider) Dimension() int { return 2 }

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })
	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("redis endpoint: %v", err)
	}
	return "redis://" + endpoint
}

func TestCachedEmbedsOnlyMisses(t *testing.T) {
	ctx := context.Background()
	url := startRedis(t)
	inner := &countingProvider{}
	c, err := NewCached(ctx, inner, url, "test-model", time.Minute, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	first, err := c.Embed(ctx, []string{"alpha", "beta"})
	if err != nil {
		t.Fatal(err)
	}
	if inner.texts != 2 || first[0][0] != 5 || first[1][0] != 4 {
		t.Fatalf("first = %v, inner = %d", first, inner.texts)
	}

	second, err := c.Embed(ctx, []string{"beta", "gamma!", "alpha"})
	if err != nil {
		t.Fatal(err)
	}
	if inner.texts != 3 {
		t.Errorf("inner embedded %d texts, want 3", inner.texts)
	}
	if second[0][0] != 4 || second[1][0] != 6 || second[2][0] != 5 {
		t.Errorf("second = %v", second)
	}
	if c.Dimension() != 2 {
		t.Errorf("dimension = %d", c.Dimension())
	}

	ttl, err := c.rdb.TTL(ctx, c.key("alpha")).Result()
	if err != nil || ttl <= 0 || ttl > time.Minute {
		t.Errorf("ttl = %v, %v", ttl, err)
	}
}

func TestCachedKeysByModel(t *testing.T) {
	ctx := context.Background()
	url := startRedis(t)
	inner := &countingProvider{}
	a, err := NewCached(ctx, inner, url, "model-a", time.Minute, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := NewCached(ctx, inner, url, "model-b", time.Minute, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	a.Embed(ctx, []string{"shared text"})
	b.Embed(ctx, []string{"shared text"})
	if inner.texts != 2 {
		t.Errorf("models should not share cache entries, inner = %d", inner.texts)
	}
}
