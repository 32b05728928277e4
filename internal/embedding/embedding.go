package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Provider generates vector embeddings from text.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Config holds embedding provider configuration.
type Config struct {
	Provider     string `json:"provider" yaml:"provider"` // "api", "local" or "" (disabled)
	Endpoint     string `json:"endpoint" yaml:"endpoint"`
	Model        string `json:"model" yaml:"model"`
	APIKey       string `json:"api_key" yaml:"api_key"`
	Dimension    int    `json:"dimension" yaml:"dimension"`
	TimeoutMS    int    `json:"timeout_ms" yaml:"timeout_ms"`
	CacheTTLSecs int    `json:"cache_ttl_s" yaml:"cache_ttl_s"`
	MaxRetries   uint64 `json:"max_retries" yaml:"max_retries"`
}

// New builds the provider named by cfg.Provider. It returns (nil, nil) when
// embeddings are disabled.
func New(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "api":
		return NewAPIProvider(cfg), nil
	case "local":
		return NewLocalProvider(cfg), nil
	default:
		return nil, fmt.Errorf("embedding: unknown provider %q", cfg.Provider)
	}
}

// statusError is a non-2xx reply from an embedding endpoint.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("embedding: API returned status %d: %s", e.code, e.body)
}

// retry runs op with exponential backoff bounded by ctx and maxRetries.
// Client errors other than 429 are not retried.
func retry[T any](ctx context.Context, maxRetries uint64, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second

	return backoff.RetryWithData(func() (T, error) {
		v, err := op()
		if err == nil {
			return v, nil
		}
		if se, ok := err.(*statusError); ok && se.code >= 400 && se.code < 500 && se.code != http.StatusTooManyRequests {
			return v, backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx))
}

// newHTTPClient bounds every request by cfg.TimeoutMS. Retries get a fresh
// budget each; the caller's context bounds the whole call.
func newHTTPClient(cfg Config) *http.Client {
	c := &http.Client{}
	if cfg.TimeoutMS > 0 {
		c.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	return c
}

// postJSON posts in as JSON and decodes a 200 reply into out. Any other
// status is a *statusError.
func postJSON(ctx context.Context, client *http.Client, url string, header http.Header, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("embedding: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("embedding: create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("embedding: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{code: resp.StatusCode, body: string(respBody)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("embedding: decode response: %w", err)
	}
	return nil
}

// dimension reports the vector size seen in the first non-empty reply, or
// the configured size before that.
type dimension struct {
	configured int
	observed   atomic.Int64
}

func (d *dimension) observe(vecs [][]float32) {
	if len(vecs) > 0 && len(vecs[0]) > 0 {
		d.observed.CompareAndSwap(0, int64(len(vecs[0])))
	}
}

func (d *dimension) get() int {
	if n := d.observed.Load(); n > 0 {
		return int(n)
	}
	return d.configured
}
