package store

import (
	"context"
	"fmt"
	"math"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"

	"github.com/nidhogg/cerebro-cortex/internal/memory"
)

const linkColumns = `id, tenant_id, source_id, target_id, link_type, weight,
	activation_count, created_at, last_activated, origin, evidence`

func scanLink(row pgx.Row) (memory.Link, error) {
	var l memory.Link
	var linkType, origin string
	err := row.Scan(&l.ID, &l.TenantID, &l.SourceID, &l.TargetID, &linkType, &l.Weight,
		&l.ActivationCount, &l.CreatedAt, &l.LastActivated, &origin, &l.Evidence)
	if err != nil {
		return l, err
	}
	l.Type = memory.LinkType(linkType)
	l.Origin = memory.ParseLinkOriginOr(origin, memory.OriginSystem)
	return l, nil
}

// AddLink upserts on (tenant, source, target, type). The existing weight is
// only ever raised.
func (s *Store) AddLink(ctx context.Context, l *memory.Link) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	now := time.Now()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	if l.LastActivated.IsZero() {
		l.LastActivated = now
	}
	if l.Origin == "" {
		l.Origin = memory.OriginSystem
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO memory_links (`+linkColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9, $10)
		ON CONFLICT (tenant_id, source_id, target_id, link_type) DO UPDATE SET
			weight = GREATEST(memory_links.weight, EXCLUDED.weight),
			activation_count = memory_links.activation_count + 1,
			last_activated = EXCLUDED.last_activated,
			evidence = CASE WHEN EXCLUDED.evidence <> '' THEN EXCLUDED.evidence ELSE memory_links.evidence END
		RETURNING `+linkColumns,
		l.ID, l.TenantID, l.SourceID, l.TargetID, string(l.Type), l.Weight,
		l.CreatedAt, l.LastActivated, string(l.Origin), l.Evidence,
	)
	stored, err := scanLink(row)
	if err != nil {
		return fmt.Errorf("upsert link %s->%s: %w", l.SourceID, l.TargetID, err)
	}
	*l = stored
	return nil
}

func (s *Store) EnsureLink(ctx context.Context, tenantID, sourceID, targetID string, t memory.LinkType, weight float64, origin memory.LinkOrigin, evidence string) (*memory.Link, error) {
	l := &memory.Link{
		TenantID: tenantID,
		SourceID: sourceID,
		TargetID: targetID,
		Type:     t,
		Weight:   math.Min(math.Max(weight, 0), 1),
		Origin:   origin,
		Evidence: evidence,
	}
	if err := s.AddLink(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Store) StrengthenLink(ctx context.Context, tenantID, sourceID, targetID string, boost float64) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE memory_links SET
			weight = LEAST(weight + $4, 1.0),
			activation_count = activation_count + 1,
			last_activated = now()
		WHERE tenant_id = $1 AND source_id = $2 AND target_id = $3`,
		tenantID, sourceID, targetID, boost)
	if err != nil {
		return false, fmt.Errorf("strengthen link %s->%s: %w", sourceID, targetID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// LinksTouching returns every link with either endpoint in nodeIDs.
func (s *Store) LinksTouching(ctx context.Context, tenantID string, nodeIDs []string) ([]memory.Link, error) {
	if len(nodeIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+linkColumns+` FROM memory_links
		WHERE tenant_id = $1 AND (source_id = ANY($2) OR target_id = ANY($2))
		ORDER BY id`, tenantID, lo.Uniq(nodeIDs))
	if err != nil {
		return nil, fmt.Errorf("links touching: %w", err)
	}
	defer rows.Close()

	var links []memory.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (s *Store) GetNeighbors(ctx context.Context, tenantID, nodeID string, types []memory.LinkType, minWeight float64) ([]memory.Neighbor, error) {
	q := psql().Select().
		Column(sq.Expr("CASE WHEN source_id = ? THEN target_id ELSE source_id END AS neighbor", nodeID)).
		Columns("weight", "link_type").
		From("memory_links").
		Where(sq.Eq{"tenant_id": tenantID}).
		Where(sq.Or{sq.Eq{"source_id": nodeID}, sq.Eq{"target_id": nodeID}}).
		Where(sq.GtOrEq{"weight": minWeight}).
		OrderBy("weight DESC", "neighbor ASC")
	if len(types) > 0 {
		q = q.Where(sq.Eq{"link_type": lo.Map(types, func(t memory.LinkType, _ int) string { return string(t) })})
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build neighbors: %w", err)
	}
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("neighbors of %s: %w", nodeID, err)
	}
	defer rows.Close()

	var out []memory.Neighbor
	for rows.Next() {
		var n memory.Neighbor
		var linkType string
		if err := rows.Scan(&n.ID, &n.Weight, &linkType); err != nil {
			return nil, fmt.Errorf("scan neighbor: %w", err)
		}
		n.Type = memory.LinkType(linkType)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) GetDegree(ctx context.Context, tenantID, nodeID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM memory_links
		WHERE tenant_id = $1 AND (source_id = $2 OR target_id = $2)`,
		tenantID, nodeID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("degree of %s: %w", nodeID, err)
	}
	return n, nil
}

func (s *Store) LinkStats(ctx context.Context, tenantID string) (int, map[memory.LinkType]int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT link_type, COUNT(*) FROM memory_links
		WHERE tenant_id = $1 GROUP BY link_type`, tenantID)
	if err != nil {
		return 0, nil, fmt.Errorf("link stats: %w", err)
	}
	defer rows.Close()

	byType := make(map[memory.LinkType]int)
	total := 0
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return 0, nil, fmt.Errorf("scan link stats: %w", err)
		}
		byType[memory.LinkType(t)] = n
		total += n
	}
	return total, byType, rows.Err()
}
