package embedding

import (
	"context"
	"fmt"
	"net/http"
)

// LocalProvider embeds through an Ollama server's batch endpoint, one
// request per Embed call.
type LocalProvider struct {
	url        string
	model      string
	maxRetries uint64
	client     *http.Client
	dim        dimension
}

func NewLocalProvider(cfg Config) *LocalProvider {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	return &LocalProvider{
		url:        endpoint + "/api/embed",
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		client:     newHTTPClient(cfg),
		dim:        dimension{configured: cfg.Dimension},
	}
}

// ollamaEmbedRequest is the body of POST /api/embed. Truncate lets the
// server cut inputs longer than the model's context.
type ollamaEmbedRequest struct {
	Model    string   `json:"model"`
	Input    []string `json:"input"`
	Truncate bool     `json:"truncate"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

func (p *LocalProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	in := ollamaEmbedRequest{Model: p.model, Input: texts, Truncate: true}
	out, err := retry(ctx, p.maxRetries, func() (*ollamaEmbedResponse, error) {
		var r ollamaEmbedResponse
		return &r, postJSON(ctx, p.client, p.url, nil, in, &r)
	})
	if err != nil {
		return nil, err
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding: ollama returned %d vectors for %d inputs", len(out.Embeddings), len(texts))
	}
	p.dim.observe(out.Embeddings)
	return out.Embeddings, nil
}

func (p *LocalProvider) Dimension() int {
	return p.dim.get()
}
