// Package cortex is the associative memory service: it gates, enriches and
// stores memories, and recalls them by fusing vector similarity, spreading
// activation and strength signals.
package cortex

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/cerebro-cortex/internal/embedding"
	"github.com/nidhogg/cerebro-cortex/internal/memory"
)

// Weights fuses recall signals into one score.
type Weights struct {
	Vector         float64 `json:"vector" yaml:"vector"`
	Activation     float64 `json:"activation" yaml:"activation"`
	Retrievability float64 `json:"retrievability" yaml:"retrievability"`
	Salience       float64 `json:"salience" yaml:"salience"`
	BaseLevel      float64 `json:"base_level" yaml:"base_level"`
}

// DefaultWeights returns 0.35/0.30/0.20/0.15 with base-level unweighted.
func DefaultWeights() Weights {
	return Weights{Vector: 0.35, Activation: 0.30, Retrievability: 0.20, Salience: 0.15}
}

// Config holds engine tunables.
type Config struct {
	Weights    Weights               `json:"weights" yaml:"weights"`
	Activation memory.ActivationOpts `json:"activation" yaml:"activation"`
	Gate       memory.GateConfig     `json:"gate" yaml:"gate"`
	Strength   memory.StrengthConfig `json:"strength" yaml:"strength"`

	ReinforceTopN     int     `json:"reinforce_top_n" yaml:"reinforce_top_n"`
	HebbianBoost      float64 `json:"hebbian_boost" yaml:"hebbian_boost"`
	MaxContextIDs     int     `json:"max_context_ids" yaml:"max_context_ids"`
	ContextLinkWeight float64 `json:"context_link_weight" yaml:"context_link_weight"`
	SessionLinkWeight float64 `json:"session_link_weight" yaml:"session_link_weight"`
	EmbedSliceRunes   int     `json:"embed_slice_runes" yaml:"embed_slice_runes"`
	PreviewRunes      int     `json:"preview_runes" yaml:"preview_runes"`
	DefaultTopK       int     `json:"default_top_k" yaml:"default_top_k"`

	EmbedTimeout     time.Duration `json:"embed_timeout" yaml:"embed_timeout"`
	ReinforceTimeout time.Duration `json:"reinforce_timeout" yaml:"reinforce_timeout"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Weights:           DefaultWeights(),
		Activation:        memory.DefaultActivationOpts(),
		Gate:              memory.DefaultGateConfig(),
		Strength:          memory.DefaultStrengthConfig(),
		ReinforceTopN:     5,
		HebbianBoost:      0.05,
		MaxContextIDs:     10,
		ContextLinkWeight: 0.5,
		SessionLinkWeight: 0.5,
		EmbedSliceRunes:   2000,
		PreviewRunes:      120,
		DefaultTopK:       10,
		EmbedTimeout:      5 * time.Second,
		ReinforceTimeout:  10 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultConfig. Weights are taken as a
// whole: an all-zero Weights means defaults.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Weights == (Weights{}) {
		c.Weights = d.Weights
	}
	if c.Activation.MaxHops == 0 {
		c.Activation = d.Activation
	}
	if c.Activation.TypeWeights == nil {
		c.Activation.TypeWeights = memory.DefaultLinkTypeWeights()
	}
	if c.Gate.MinLength == 0 {
		c.Gate = d.Gate
	}
	if c.Strength.ActivationDecay == 0 {
		c.Strength = d.Strength
	}
	if c.ReinforceTopN == 0 {
		c.ReinforceTopN = d.ReinforceTopN
	}
	if c.HebbianBoost == 0 {
		c.HebbianBoost = d.HebbianBoost
	}
	if c.MaxContextIDs == 0 {
		c.MaxContextIDs = d.MaxContextIDs
	}
	if c.ContextLinkWeight == 0 {
		c.ContextLinkWeight = d.ContextLinkWeight
	}
	if c.SessionLinkWeight == 0 {
		c.SessionLinkWeight = d.SessionLinkWeight
	}
	if c.EmbedSliceRunes == 0 {
		c.EmbedSliceRunes = d.EmbedSliceRunes
	}
	if c.PreviewRunes == 0 {
		c.PreviewRunes = d.PreviewRunes
	}
	if c.DefaultTopK == 0 {
		c.DefaultTopK = d.DefaultTopK
	}
	if c.EmbedTimeout == 0 {
		c.EmbedTimeout = d.EmbedTimeout
	}
	if c.ReinforceTimeout == 0 {
		c.ReinforceTimeout = d.ReinforceTimeout
	}
	return c
}

var errNoEmbedder = errors.New("no embedding provider configured")

// Service is the memory engine. It holds configuration and collaborators
// only; every call names its tenant.
type Service struct {
	store    GraphStore
	embedder embedding.Provider
	cfg      Config
	logger   *zap.Logger

	gate     *memory.Gate
	strength *memory.StrengthModel
	semantic *memory.SemanticEngine
	affect   *memory.AffectEngine
	spreader *memory.Spreader

	now func() time.Time
	bg  sync.WaitGroup
}

// New creates a Service. embedder may be nil, in which case nodes are stored
// without embeddings and recall runs in degraded mode.
func New(store GraphStore, embedder embedding.Provider, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	strength := memory.NewStrengthModel(cfg.Strength)
	return &Service{
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
		gate:     memory.NewGate(cfg.Gate, strength),
		strength: strength,
		semantic: memory.NewSemanticEngine(),
		affect:   memory.NewAffectEngine(),
		spreader: memory.NewSpreader(store, logger),
		now:      time.Now,
	}
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// Wait blocks until background reinforcement has finished.
func (s *Service) Wait() {
	s.bg.Wait()
}

// embed returns the embedding of a bounded prefix of text, within
// EmbedTimeout.
func (s *Service) embed(ctx context.Context, text string) ([]float32, error) {
	if s.embedder == nil {
		return nil, errNoEmbedder
	}
	if r := []rune(text); len(r) > s.cfg.EmbedSliceRunes {
		text = string(r[:s.cfg.EmbedSliceRunes])
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	defer cancel()

	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("embedding: empty vector")
	}
	return vecs[0], nil
}

func requireTenant(tenantID string) error {
	if tenantID == "" {
		return &ValidationError{Field: "tenant_id", Message: "tenant id is required"}
	}
	return nil
}
