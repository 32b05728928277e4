package store

import (
	"context"
	"fmt"

	"github.com/nidhogg/cerebro-cortex/internal/memory"
)

// NodeStats aggregates node counts in one pass. GROUPING() returns a bitmask
// over (memory_type, layer, visibility, agent_id) telling which grouping set
// produced each row.
func (s *Store) NodeStats(ctx context.Context, tenantID string) (*memory.Stats, error) {
	rows, err := s.db.Query(ctx, `
		SELECT GROUPING(memory_type, layer, visibility, agent_id),
		       COALESCE(memory_type, ''), COALESCE(layer, ''),
		       COALESCE(visibility, ''), COALESCE(agent_id, ''), COUNT(*)
		FROM memory_nodes WHERE tenant_id = $1
		GROUP BY GROUPING SETS ((memory_type), (layer), (visibility), (agent_id), ())`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("node stats: %w", err)
	}
	defer rows.Close()

	st := memory.NewStats()
	for rows.Next() {
		var set int
		var memType, layer, visibility, agentID string
		var n int
		if err := rows.Scan(&set, &memType, &layer, &visibility, &agentID, &n); err != nil {
			return nil, fmt.Errorf("scan node stats: %w", err)
		}
		switch set {
		case 7: // memory_type
			st.ByType[memory.MemoryType(memType)] = n
		case 11: // layer
			st.ByLayer[memory.Layer(layer)] = n
		case 13: // visibility
			st.ByVisibility[memory.Visibility(visibility)] = n
		case 14: // agent_id
			if agentID != "" {
				st.ByAgent[agentID] = n
			}
		case 15:
			st.Nodes = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.db.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM episodes WHERE tenant_id = $1),
		       (SELECT COUNT(*) FROM agent_profiles WHERE tenant_id = $1)`,
		tenantID).Scan(&st.Episodes, &st.Agents)
	if err != nil {
		return nil, fmt.Errorf("episode and agent counts: %w", err)
	}
	return st, nil
}
