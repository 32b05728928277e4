package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/cerebro-cortex/internal/config"
	"github.com/nidhogg/cerebro-cortex/internal/cortex"
	"github.com/nidhogg/cerebro-cortex/internal/embedding"
	"github.com/nidhogg/cerebro-cortex/internal/graph"
	"github.com/nidhogg/cerebro-cortex/internal/store"
	"github.com/nidhogg/cerebro-cortex/internal/store/memstore"
	"github.com/nidhogg/cerebro-cortex/internal/vectorstore"
)

// app is one wired service plus the handles it must release.
type app struct {
	cfg     *config.Config
	svc     *cortex.Service
	logger  *zap.Logger
	closers []func()
}

func newLogger(c config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if c.Format == "json" {
		zc = zap.NewProductionConfig()
	}
	if c.Level != "" {
		lvl, err := zap.ParseAtomicLevel(c.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		zc.Level = lvl
	}
	return zc.Build()
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// openApp connects whatever backends the config names. Only PostgreSQL is
// required to be reachable once configured; the rest degrade with a warning.
func openApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	if embedder == nil {
		logger.Warn("No embedding provider configured, recall will rank by recency")
	} else if cfg.Database.Redis.URL != "" {
		ttl := time.Duration(cfg.Embedding.CacheTTLSecs) * time.Second
		cached, cErr := embedding.NewCached(ctx, embedder, cfg.Database.Redis.URL, cfg.Embedding.Model, ttl, logger)
		if cErr != nil {
			logger.Warn("Redis unavailable, running without embedding cache", zap.Error(cErr))
		} else {
			a.closers = append(a.closers, func() { _ = cached.Close() })
			embedder = cached
		}
	}

	var gs cortex.GraphStore
	if cfg.Database.Postgres.DSN != "" {
		pg, pgErr := store.New(ctx, cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			a.Close()
			return nil, pgErr
		}
		a.closers = append(a.closers, pg.Close)
		if cfg.Database.Qdrant.Host != "" {
			a.attachIndex(ctx, pg, embedder)
		}
		gs = pg
	} else {
		logger.Warn("PostgreSQL not configured, running without persistence")
		gs = memstore.New()
	}

	if n := cfg.Database.Neo4j; n.URI != "" {
		g, gErr := graph.NewStore(n.URI, n.User, n.Password, logger)
		if gErr == nil {
			gErr = g.Ping(ctx)
			if gErr == nil {
				gErr = g.EnsureSchema(ctx)
			}
			if gErr != nil {
				_ = g.Close(ctx)
			}
		}
		if gErr != nil {
			logger.Warn("Neo4j unavailable, keeping links in the primary store", zap.Error(gErr))
		} else {
			a.closers = append(a.closers, func() { _ = g.Close(context.Background()) })
			gs = cortex.WithLinks(gs, g)
		}
	}

	a.svc = cortex.New(gs, embedder, cfg.Engine, logger)
	return a, nil
}

func (a *app) attachIndex(ctx context.Context, pg *store.Store, embedder embedding.Provider) {
	qc := a.cfg.Database.Qdrant
	dim := qc.Dimension
	if dim == 0 && embedder != nil {
		dim = uint64(embedder.Dimension())
	}
	if dim == 0 {
		a.logger.Warn("Qdrant configured without a vector dimension, skipping index")
		return
	}
	client, err := vectorstore.NewClient(qc)
	if err != nil {
		a.logger.Warn("Qdrant unavailable, searching vectors in PostgreSQL", zap.Error(err))
		return
	}
	idx, err := vectorstore.NewIndex(ctx, client, qc.Collection, dim)
	if err != nil {
		_ = client.Close()
		a.logger.Warn("Qdrant collection unavailable, searching vectors in PostgreSQL", zap.Error(err))
		return
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	pg.SetVectorIndex(idx)
	a.logger.Info("Qdrant vector index attached", zap.String("collection", qc.Collection))
}

// Close waits for background reinforcement, then releases every backend.
func (a *app) Close() {
	if a.svc != nil {
		a.svc.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}
