package store

import (
	"context"
	"fmt"
	"time"

	"github.com/nidhogg/cerebro-cortex/internal/memory"
)

// UpsertAgent inserts or updates an agent profile. created_at is kept on update.
func (s *Store) UpsertAgent(ctx context.Context, a *memory.AgentProfile) error {
	now := time.Now()
	err := s.db.QueryRow(ctx, `
		INSERT INTO agent_profiles (tenant_id, id, display_name, generation, lineage, specialization, color, symbol, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			generation = EXCLUDED.generation,
			lineage = EXCLUDED.lineage,
			specialization = EXCLUDED.specialization,
			color = EXCLUDED.color,
			symbol = EXCLUDED.symbol,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at`,
		a.TenantID, a.ID, a.DisplayName, a.Generation, a.Lineage,
		a.Specialization, a.Color, a.Symbol, now,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert agent %s: %w", a.ID, err)
	}
	return nil
}

// ListAgents returns the tenant's agents ordered by id.
func (s *Store) ListAgents(ctx context.Context, tenantID string) ([]*memory.AgentProfile, error) {
	rows, err := s.db.Query(ctx, `
		SELECT tenant_id, id, display_name, generation, lineage, specialization, color, symbol, created_at, updated_at
		FROM agent_profiles WHERE tenant_id = $1
		ORDER BY id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []*memory.AgentProfile
	for rows.Next() {
		var a memory.AgentProfile
		if err := rows.Scan(
			&a.TenantID, &a.ID, &a.DisplayName, &a.Generation, &a.Lineage,
			&a.Specialization, &a.Color, &a.Symbol, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, &a)
	}
	return agents, rows.Err()
}
