package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/nidhogg/cerebro-cortex/internal/memory"
	"github.com/nidhogg/cerebro-cortex/internal/vectorstore"
)

var nodeColumns = []string{
	"id", "tenant_id", "content_hash", "content", "embedding",
	"memory_type", "layer", "visibility",
	"agent_id", "session_id", "conversation_thread", "episode_id", "source", "derived_from",
	"valence", "arousal", "salience",
	"tags", "concepts", "responding_to", "related_agents",
	"stability", "difficulty", "access_count", "access_timestamps",
	"compressed_count", "compressed_avg_interval",
	"last_retrievability", "last_activation", "last_computed_at",
	"created_at", "last_accessed_at", "promoted_at",
}

func scanNode(row pgx.Row) (*memory.Node, error) {
	var n memory.Node
	var memType, layer, visibility, valence string
	err := row.Scan(
		&n.ID, &n.TenantID, &n.ContentHash, &n.Content, &n.Embedding,
		&memType, &layer, &visibility,
		&n.AgentID, &n.SessionID, &n.ConversationThread, &n.EpisodeID, &n.Source, &n.DerivedFrom,
		&valence, &n.Arousal, &n.Salience,
		&n.Tags, &n.Concepts, &n.RespondingTo, &n.RelatedAgents,
		&n.Strength.Stability, &n.Strength.Difficulty, &n.Strength.AccessCount, &n.Strength.AccessTimestamps,
		&n.Strength.CompressedCount, &n.Strength.CompressedAvgInterval,
		&n.Strength.LastRetrievability, &n.Strength.LastActivation, &n.Strength.LastComputedAt,
		&n.CreatedAt, &n.LastAccessedAt, &n.PromotedAt,
	)
	if err != nil {
		return nil, err
	}
	n.Type = memory.ParseMemoryTypeOr(memType, memory.TypeSemantic)
	n.Layer = memory.ParseLayerOr(layer, memory.LayerSensory)
	n.Visibility = memory.ParseVisibilityOr(visibility, memory.VisibilityShared)
	n.Valence = memory.ParseValenceOr(valence, memory.ValenceNeutral)
	return &n, nil
}

func (s *Store) queryNodes(ctx context.Context, q sq.SelectBuilder) ([]*memory.Node, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build node query: %w", err)
	}
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*memory.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// AddNode inserts a node. Its embedding is also pushed to the vector index
// when one is configured; index failures are logged.
func (s *Store) AddNode(ctx context.Context, n *memory.Node) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.ContentHash == "" {
		n.ContentHash = memory.ContentHash(n.Content)
	}
	st := n.Strength
	timestamps := st.AccessTimestamps
	if timestamps == nil {
		timestamps = []time.Time{}
	}
	var embedding []float32
	if len(n.Embedding) > 0 {
		embedding = n.Embedding
	}

	sql, args, err := psql().Insert("memory_nodes").Columns(nodeColumns...).Values(
		n.ID, n.TenantID, n.ContentHash, n.Content, embedding,
		string(n.Type), string(n.Layer), string(n.Visibility),
		n.AgentID, n.SessionID, n.ConversationThread, n.EpisodeID, n.Source, nonNil(n.DerivedFrom),
		string(n.Valence), n.Arousal, n.Salience,
		nonNil(n.Tags), nonNil(n.Concepts), nonNil(n.RespondingTo), nonNil(n.RelatedAgents),
		st.Stability, st.Difficulty, st.AccessCount, timestamps,
		st.CompressedCount, st.CompressedAvgInterval,
		st.LastRetrievability, st.LastActivation, st.LastComputedAt,
		n.CreatedAt, n.LastAccessedAt, n.PromotedAt,
	).ToSql()
	if err != nil {
		return fmt.Errorf("build insert node: %w", err)
	}
	if _, err := s.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert node %s: %w", n.ID, err)
	}

	if s.index != nil && len(n.Embedding) > 0 {
		if err := s.index.Upsert(ctx, n); err != nil {
			s.logger.Warn("vector index upsert failed",
				zap.String("tenant", n.TenantID),
				zap.String("node", n.ID),
				zap.Error(err))
		}
	}
	return nil
}

// GetNode returns (nil, nil) when the node does not exist for tenantID.
func (s *Store) GetNode(ctx context.Context, tenantID, id string) (*memory.Node, error) {
	sql, args, err := psql().Select(nodeColumns...).From("memory_nodes").
		Where(sq.Eq{"tenant_id": tenantID, "id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get node: %w", err)
	}
	n, err := scanNode(s.db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get node %s: %w", id, err)
	}
	return n, nil
}

func (s *Store) GetNodes(ctx context.Context, tenantID string, ids []string) ([]*memory.Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.queryNodes(ctx, psql().Select(nodeColumns...).From("memory_nodes").
		Where(sq.Eq{"tenant_id": tenantID}).
		Where("id = ANY(?)", lo.Uniq(ids)))
}

func (s *Store) FindDuplicateContent(ctx context.Context, tenantID, contentHash string) (string, error) {
	var id string
	err := s.db.QueryRow(ctx, `
		SELECT id FROM memory_nodes
		WHERE tenant_id = $1 AND content_hash = $2
		ORDER BY created_at ASC LIMIT 1`, tenantID, contentHash).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find duplicate: %w", err)
	}
	return id, nil
}

func (s *Store) UpdateNodeStrength(ctx context.Context, tenantID, id string, st memory.Strength, accessedAt time.Time) (bool, error) {
	timestamps := st.AccessTimestamps
	if timestamps == nil {
		timestamps = []time.Time{}
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE memory_nodes SET
			stability = $3, difficulty = $4, access_count = $5, access_timestamps = $6,
			compressed_count = $7, compressed_avg_interval = $8,
			last_retrievability = $9, last_activation = $10, last_computed_at = $11,
			last_accessed_at = $12
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
		st.Stability, st.Difficulty, st.AccessCount, timestamps,
		st.CompressedCount, st.CompressedAvgInterval,
		st.LastRetrievability, st.LastActivation, st.LastComputedAt,
		accessedAt,
	)
	if err != nil {
		return false, fmt.Errorf("update strength %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateNodeMetadata applies the non-nil fields of u. A layer change to a
// higher tier stamps promoted_at.
func (s *Store) UpdateNodeMetadata(ctx context.Context, tenantID, id string, u memory.MetadataUpdate) (bool, error) {
	q := psql().Update("memory_nodes").Where(sq.Eq{"tenant_id": tenantID, "id": id})
	changed := false
	set := func(col string, v any) {
		q = q.Set(col, v)
		changed = true
	}
	if u.Tags != nil {
		set("tags", nonNil(*u.Tags))
	}
	if u.Concepts != nil {
		set("concepts", nonNil(*u.Concepts))
	}
	if u.Salience != nil {
		set("salience", *u.Salience)
	}
	if u.Visibility != nil {
		set("visibility", string(*u.Visibility))
	}
	if u.Layer != nil {
		set("promoted_at", sq.Expr(`CASE WHEN array_position(ARRAY['sensory','working','long_term','cortex'], ?::text)
			> array_position(ARRAY['sensory','working','long_term','cortex'], layer) THEN now() ELSE promoted_at END`, string(*u.Layer)))
		set("layer", string(*u.Layer))
	}
	if u.Valence != nil {
		set("valence", string(*u.Valence))
	}
	if u.Arousal != nil {
		set("arousal", *u.Arousal)
	}
	if u.RelatedAgents != nil {
		set("related_agents", nonNil(*u.RelatedAgents))
	}
	if u.EpisodeID != nil {
		set("episode_id", *u.EpisodeID)
	}
	if !changed {
		n, err := s.GetNode(ctx, tenantID, id)
		return n != nil, err
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build metadata update: %w", err)
	}
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("update metadata %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func applyFilter(q sq.SelectBuilder, f memory.SearchFilter) sq.SelectBuilder {
	if len(f.Types) > 0 {
		q = q.Where(sq.Eq{"memory_type": lo.Map(f.Types, func(t memory.MemoryType, _ int) string { return string(t) })})
	}
	if f.MinSalience > 0 {
		q = q.Where(sq.GtOrEq{"salience": f.MinSalience})
	}
	if f.Visibility != "" {
		q = q.Where(sq.Eq{"visibility": string(f.Visibility)})
	}
	if f.AgentID != "" {
		q = q.Where(sq.Or{
			sq.NotEq{"visibility": string(memory.VisibilityPrivate)},
			sq.Eq{"agent_id": f.AgentID},
		})
	}
	if f.ConversationThread != "" {
		q = q.Where(sq.Or{
			sq.NotEq{"visibility": string(memory.VisibilityThread)},
			sq.Eq{"conversation_thread": f.ConversationThread},
		})
	}
	return q
}

// VectorSearch ranks embedded nodes by cosine similarity to query.
func (s *Store) VectorSearch(ctx context.Context, tenantID string, query []float32, topK int, f memory.SearchFilter) ([]memory.ScoredNode, error) {
	if s.index != nil {
		results, err := s.indexSearch(ctx, tenantID, query, topK, f)
		if err == nil {
			return results, nil
		}
		s.logger.Warn("vector index search failed, scanning embeddings",
			zap.String("tenant", tenantID), zap.Error(err))
	}

	nodes, err := s.queryNodes(ctx, applyFilter(
		psql().Select(nodeColumns...).From("memory_nodes").
			Where(sq.Eq{"tenant_id": tenantID}).
			Where("embedding IS NOT NULL AND cardinality(embedding) > 0"), f))
	if err != nil {
		return nil, err
	}
	results := make([]memory.ScoredNode, 0, len(nodes))
	for _, n := range nodes {
		results = append(results, memory.ScoredNode{Node: n, Similarity: memory.CosineSimilarity(query, n.Embedding)})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *Store) indexSearch(ctx context.Context, tenantID string, query []float32, topK int, f memory.SearchFilter) ([]memory.ScoredNode, error) {
	hits, err := s.index.Search(ctx, tenantID, query, topK, f)
	if err != nil {
		return nil, err
	}
	nodes, err := s.GetNodes(ctx, tenantID, lo.Map(hits, func(h vectorstore.Hit, _ int) string { return h.ID }))
	if err != nil {
		return nil, err
	}
	byID := lo.KeyBy(nodes, func(n *memory.Node) string { return n.ID })
	results := make([]memory.ScoredNode, 0, len(hits))
	for _, h := range hits {
		if n, ok := byID[h.ID]; ok && f.Match(n) {
			results = append(results, memory.ScoredNode{Node: n, Similarity: float64(h.Score)})
		}
	}
	return results, nil
}

func (s *Store) RecentNodes(ctx context.Context, tenantID string, limit int, f memory.SearchFilter) ([]*memory.Node, error) {
	q := applyFilter(psql().Select(nodeColumns...).From("memory_nodes").
		Where(sq.Eq{"tenant_id": tenantID}), f).
		OrderBy("created_at DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return s.queryNodes(ctx, q)
}

func (s *Store) LatestInSession(ctx context.Context, tenantID, sessionID string, before time.Time) (*memory.Node, error) {
	nodes, err := s.queryNodes(ctx, psql().Select(nodeColumns...).From("memory_nodes").
		Where(sq.Eq{"tenant_id": tenantID, "session_id": sessionID}).
		Where(sq.Lt{"created_at": before}).
		OrderBy("created_at DESC").Limit(1))
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return nodes[0], nil
}
