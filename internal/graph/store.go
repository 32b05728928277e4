// Package graph keeps associative links in Neo4j.
package graph

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/nidhogg/cerebro-cortex/internal/memory"
)

// Store is a LinkStore backed by Neo4j. Nodes are stubs keyed by
// (tenant_id, id); the content lives in the primary store.
type Store struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewStore creates a Neo4j link store.
func NewStore(uri, user, password string, logger *zap.Logger) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	return &Store{driver: driver, logger: logger}, nil
}

// Close shuts down the Neo4j driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// Ping verifies the Neo4j connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

// EnsureSchema creates the uniqueness constraint on memory stubs.
func (s *Store) EnsureSchema(ctx context.Context) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`CREATE CONSTRAINT memory_key IF NOT EXISTS
		 FOR (m:Memory) REQUIRE (m.tenant_id, m.id) IS UNIQUE`, nil)
	if err == nil {
		_, err = result.Consume(ctx)
	}
	if err != nil {
		return fmt.Errorf("create constraint: %w", err)
	}
	s.logger.Info("Neo4j schema ready")
	return nil
}

const linkReturn = `RETURN r.id AS id, a.id AS source, b.id AS target, r.link_type AS link_type,
	r.weight AS weight, r.activation_count AS activation_count,
	r.created_at AS created_at, r.last_activated AS last_activated,
	r.origin AS origin, r.evidence AS evidence`

func recordToLink(tenantID string, rec *neo4j.Record) memory.Link {
	l := memory.Link{TenantID: tenantID}
	m := rec.AsMap()
	l.ID, _ = m["id"].(string)
	l.SourceID, _ = m["source"].(string)
	l.TargetID, _ = m["target"].(string)
	if t, ok := m["link_type"].(string); ok {
		l.Type = memory.LinkType(t)
	}
	l.Weight, _ = m["weight"].(float64)
	if n, ok := m["activation_count"].(int64); ok {
		l.ActivationCount = int(n)
	}
	l.CreatedAt, _ = m["created_at"].(time.Time)
	l.LastActivated, _ = m["last_activated"].(time.Time)
	origin, _ := m["origin"].(string)
	l.Origin = memory.ParseLinkOriginOr(origin, memory.OriginSystem)
	l.Evidence, _ = m["evidence"].(string)
	return l
}

// AddLink merges the relationship for (tenant, source, target, type). On
// match the weight is raised to max(old, new) and activation_count bumped.
func (s *Store) AddLink(ctx context.Context, l *memory.Link) error {
	now := time.Now()
	if l.Origin == "" {
		l.Origin = memory.OriginSystem
	}
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	res, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			MERGE (a:Memory {tenant_id: $tenant, id: $source})
			MERGE (b:Memory {tenant_id: $tenant, id: $target})
			MERGE (a)-[r:LINK {link_type: $type}]->(b)
			ON CREATE SET r.id = $id, r.weight = $weight, r.activation_count = 0,
				r.created_at = $now, r.last_activated = $now,
				r.origin = $origin, r.evidence = $evidence
			ON MATCH SET r.weight = CASE WHEN $weight > r.weight THEN $weight ELSE r.weight END,
				r.activation_count = r.activation_count + 1,
				r.last_activated = $now,
				r.evidence = CASE WHEN $evidence <> '' THEN $evidence ELSE r.evidence END
			`+linkReturn,
			map[string]any{
				"tenant":   l.TenantID,
				"source":   l.SourceID,
				"target":   l.TargetID,
				"type":     string(l.Type),
				"id":       uuid.New().String(),
				"weight":   l.Weight,
				"now":      now,
				"origin":   string(l.Origin),
				"evidence": l.Evidence,
			})
		if err != nil {
			return nil, err
		}
		rec, err := result.Single(ctx)
		if err != nil {
			return nil, err
		}
		return recordToLink(l.TenantID, rec), nil
	})
	if err != nil {
		return fmt.Errorf("merge link %s->%s: %w", l.SourceID, l.TargetID, err)
	}
	*l = res.(memory.Link)
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
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	res, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			MATCH (a:Memory {tenant_id: $tenant, id: $source})-[r:LINK]->(b:Memory {tenant_id: $tenant, id: $target})
			SET r.weight = CASE WHEN r.weight + $boost > 1.0 THEN 1.0 ELSE r.weight + $boost END,
				r.activation_count = r.activation_count + 1,
				r.last_activated = $now
			RETURN count(r) AS n`,
			map[string]any{
				"tenant": tenantID,
				"source": sourceID,
				"target": targetID,
				"boost":  boost,
				"now":    time.Now(),
			})
		if err != nil {
			return nil, err
		}
		rec, err := result.Single(ctx)
		if err != nil {
			return nil, err
		}
		n, _ := rec.Get("n")
		return n, nil
	})
	if err != nil {
		return false, fmt.Errorf("strengthen link %s->%s: %w", sourceID, targetID, err)
	}
	n, _ := res.(int64)
	return n > 0, nil
}

func (s *Store) read(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	res, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return res.([]*neo4j.Record), nil
}

// LinksTouching returns every link with either endpoint in nodeIDs.
func (s *Store) LinksTouching(ctx context.Context, tenantID string, nodeIDs []string) ([]memory.Link, error) {
	if len(nodeIDs) == 0 {
		return nil, nil
	}
	records, err := s.read(ctx, `
		MATCH (a:Memory {tenant_id: $tenant})-[r:LINK]->(b:Memory {tenant_id: $tenant})
		WHERE a.id IN $ids OR b.id IN $ids
		`+linkReturn+` ORDER BY id`,
		map[string]any{"tenant": tenantID, "ids": nodeIDs})
	if err != nil {
		return nil, fmt.Errorf("links touching: %w", err)
	}
	links := make([]memory.Link, 0, len(records))
	for _, rec := range records {
		links = append(links, recordToLink(tenantID, rec))
	}
	return links, nil
}

func (s *Store) GetNeighbors(ctx context.Context, tenantID, nodeID string, types []memory.LinkType, minWeight float64) ([]memory.Neighbor, error) {
	typeNames := make([]string, 0, len(types))
	for _, t := range types {
		typeNames = append(typeNames, string(t))
	}
	records, err := s.read(ctx, `
		MATCH (a:Memory {tenant_id: $tenant, id: $id})-[r:LINK]-(b:Memory)
		WHERE r.weight >= $minWeight AND (size($types) = 0 OR r.link_type IN $types)
		RETURN b.id AS id, r.weight AS weight, r.link_type AS link_type
		ORDER BY weight DESC, id ASC`,
		map[string]any{"tenant": tenantID, "id": nodeID, "minWeight": minWeight, "types": typeNames})
	if err != nil {
		return nil, fmt.Errorf("neighbors of %s: %w", nodeID, err)
	}
	out := make([]memory.Neighbor, 0, len(records))
	for _, rec := range records {
		m := rec.AsMap()
		n := memory.Neighbor{}
		n.ID, _ = m["id"].(string)
		n.Weight, _ = m["weight"].(float64)
		if t, ok := m["link_type"].(string); ok {
			n.Type = memory.LinkType(t)
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *Store) GetDegree(ctx context.Context, tenantID, nodeID string) (int, error) {
	records, err := s.read(ctx, `
		MATCH (a:Memory {tenant_id: $tenant, id: $id})-[r:LINK]-()
		RETURN count(r) AS n`,
		map[string]any{"tenant": tenantID, "id": nodeID})
	if err != nil {
		return 0, fmt.Errorf("degree of %s: %w", nodeID, err)
	}
	if len(records) == 0 {
		return 0, nil
	}
	n, _ := records[0].Get("n")
	count, _ := n.(int64)
	return int(count), nil
}

func (s *Store) LinkStats(ctx context.Context, tenantID string) (int, map[memory.LinkType]int, error) {
	records, err := s.read(ctx, `
		MATCH (:Memory {tenant_id: $tenant})-[r:LINK]->()
		RETURN r.link_type AS link_type, count(r) AS n`,
		map[string]any{"tenant": tenantID})
	if err != nil {
		return 0, nil, fmt.Errorf("link stats: %w", err)
	}
	byType := make(map[memory.LinkType]int)
	total := 0
	for _, rec := range records {
		m := rec.AsMap()
		t, _ := m["link_type"].(string)
		n, _ := m["n"].(int64)
		byType[memory.LinkType(t)] = int(n)
		total += int(n)
	}
	return total, byType, nil
}
