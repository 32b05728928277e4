package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/nidhogg/cerebro-cortex/internal/memory"
	"github.com/nidhogg/cerebro-cortex/internal/vectorstore"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// VectorIndex is an optional ANN index kept alongside the embedding column.
type VectorIndex interface {
	Upsert(ctx context.Context, n *memory.Node) error
	Search(ctx context.Context, tenantID string, query []float32, topK int, f memory.SearchFilter) ([]vectorstore.Hit, error)
}

// Store is the PostgreSQL GraphStore.
type Store struct {
	db     *pgxpool.Pool
	index  VectorIndex
	logger *zap.Logger
}

// New creates a Store with a pgx connection pool.
func New(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("PostgreSQL connected")
	return &Store{db: pool, logger: logger}, nil
}

// SetVectorIndex routes vector search through idx. The embedding column stays
// authoritative; index failures fall back to an in-database scan.
func (s *Store) SetVectorIndex(idx VectorIndex) {
	s.index = idx
}

// Migrate applies the embedded migrations. dsn must be a postgres:// URL.
func Migrate(dsn string, logger *zap.Logger) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(dsn))
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	logger.Info("Running database migrations")
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("Database is already up to date")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info("Database migrations applied")
	return nil
}

func migrateURL(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.db.Close()
}

func psql() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}
