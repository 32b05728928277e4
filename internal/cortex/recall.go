package cortex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/nidhogg/cerebro-cortex/internal/memory"
)

// RecallRequest is the input to Recall.
type RecallRequest struct {
	Query              string   `json:"query"`
	TopK               int      `json:"top_k,omitempty"`
	MemoryTypes        []string `json:"memory_types,omitempty"`
	MinSalience        float64  `json:"min_salience,omitempty"`
	Visibility         string   `json:"visibility,omitempty"`
	AgentID            string   `json:"agent_id,omitempty"`
	ConversationThread string   `json:"conversation_thread,omitempty"`
	ContextIDs         []string `json:"context_ids,omitempty"`
}

// RecallResult is one ranked memory with the signals behind its score.
type RecallResult struct {
	MemoryID         string            `json:"memory_id"`
	Content          string            `json:"content"`
	MemoryType       memory.MemoryType `json:"memory_type"`
	Layer            memory.Layer      `json:"layer"`
	AgentID          string            `json:"agent_id,omitempty"`
	Tags             []string          `json:"tags,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	Score            float64           `json:"score"`
	VectorSimilarity float64           `json:"vector_similarity"`
	Activation       float64           `json:"activation"`
	Retrievability   float64           `json:"retrievability"`
	BaseLevel        float64           `json:"base_level"`
	Salience         float64           `json:"salience"`
	Degraded         bool              `json:"degraded,omitempty"`

	via *memory.Link
}

func (s *Service) recallFilter(req RecallRequest) (memory.SearchFilter, error) {
	f := memory.SearchFilter{
		MinSalience:        req.MinSalience,
		AgentID:            req.AgentID,
		ConversationThread: req.ConversationThread,
	}
	for _, raw := range req.MemoryTypes {
		t, err := memory.ParseMemoryType(raw)
		if err != nil {
			return f, &ValidationError{Field: "memory_type", Value: raw, Message: "unknown memory type", Err: err}
		}
		f.Types = append(f.Types, t)
	}
	if req.Visibility != "" {
		f.Visibility = memory.ParseVisibilityOr(req.Visibility, memory.VisibilityShared)
	}
	return f, nil
}

// Recall ranks memories for query. When the query cannot be embedded it
// returns the most recent matching memories ranked by salience. Reinforcement
// of the top results runs in the background; see Wait.
func (s *Service) Recall(ctx context.Context, tenantID string, req RecallRequest) ([]RecallResult, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.cfg.DefaultTopK
	}
	filter, err := s.recallFilter(req)
	if err != nil {
		return nil, err
	}

	vec, err := s.embed(ctx, req.Query)
	if err != nil {
		s.logger.Warn("query embedding failed, recalling by recency",
			zap.String("tenant", tenantID), zap.Error(err))
		return s.recallRecent(ctx, tenantID, topK, filter)
	}

	seeds, err := s.store.VectorSearch(ctx, tenantID, vec, 2*topK, filter)
	if err != nil {
		s.logger.Warn("vector search failed, recalling by recency",
			zap.String("tenant", tenantID), zap.Error(err))
		return s.recallRecent(ctx, tenantID, topK, filter)
	}

	candidates := make(map[string]*memory.Node, len(seeds))
	similarity := make(map[string]float64, len(seeds))
	seedIDs := make([]string, 0, len(seeds))
	for _, sn := range seeds {
		candidates[sn.Node.ID] = sn.Node
		similarity[sn.Node.ID] = sn.Similarity
		seedIDs = append(seedIDs, sn.Node.ID)
	}
	contextIDs := lo.Uniq(lo.Compact(req.ContextIDs))
	if len(contextIDs) > s.cfg.MaxContextIDs {
		contextIDs = contextIDs[:s.cfg.MaxContextIDs]
	}

	activation, err := s.spreader.Spread(ctx, tenantID, append(seedIDs, contextIDs...), s.cfg.Activation)
	if err != nil {
		s.logger.Warn("spreading activation failed",
			zap.String("tenant", tenantID), zap.Error(err))
		activation = nil
	}

	if activation != nil {
		// Context nodes steer activation but are not results themselves.
		isContext := lo.SliceToMap(contextIDs, func(id string) (string, bool) { return id, true })
		var missing []string
		for id := range activation.Nodes {
			if _, ok := candidates[id]; !ok && !isContext[id] {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			nodes, err := s.store.GetNodes(ctx, tenantID, missing)
			if err != nil {
				s.logger.Warn("loading activated nodes failed", zap.Error(err))
			}
			for _, n := range nodes {
				if !filter.Match(n) {
					continue
				}
				candidates[n.ID] = n
				if len(n.Embedding) > 0 {
					similarity[n.ID] = memory.CosineSimilarity(vec, n.Embedding)
				}
			}
		}
	}

	now := s.now()
	results := make([]RecallResult, 0, len(candidates))
	for id, n := range candidates {
		r := s.score(n, similarity[id], now)
		if activation != nil {
			if a, ok := activation.Nodes[id]; ok {
				r.Activation = a.Value
				r.via = a.Via
			}
		}
		r.Score = s.fuse(r)
		results = append(results, r)
	}
	sortResults(results)
	if len(results) > topK {
		results = results[:topK]
	}

	s.reinforce(ctx, tenantID, results)

	s.logger.Debug("recall complete",
		zap.String("tenant", tenantID),
		zap.Int("seeds", len(seeds)),
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", len(results)))
	return results, nil
}

func (s *Service) recallRecent(ctx context.Context, tenantID string, topK int, f memory.SearchFilter) ([]RecallResult, error) {
	nodes, err := s.store.RecentNodes(ctx, tenantID, topK, f)
	if err != nil {
		return nil, fmt.Errorf("recent nodes: %w", err)
	}
	now := s.now()
	results := make([]RecallResult, 0, len(nodes))
	for _, n := range nodes {
		r := s.score(n, 0, now)
		r.Score = n.Salience
		r.Degraded = true
		results = append(results, r)
	}
	// Stable keeps recency order between equal salience.
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

func (s *Service) score(n *memory.Node, similarity float64, now time.Time) RecallResult {
	return RecallResult{
		MemoryID:         n.ID,
		Content:          n.Content,
		MemoryType:       n.Type,
		Layer:            n.Layer,
		AgentID:          n.AgentID,
		Tags:             n.Tags,
		CreatedAt:        n.CreatedAt,
		VectorSimilarity: similarity,
		Retrievability:   s.strength.Retrievability(n.Strength, now),
		BaseLevel:        s.strength.BaseLevel(n.Strength, now),
		Salience:         n.Salience,
	}
}

func (s *Service) fuse(r RecallResult) float64 {
	w := s.cfg.Weights
	return w.Vector*math.Max(r.VectorSimilarity, 0) +
		w.Activation*r.Activation +
		w.Retrievability*r.Retrievability +
		w.Salience*r.Salience +
		w.BaseLevel*r.BaseLevel
}

func sortResults(results []RecallResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].MemoryID < results[j].MemoryID
	})
}

// reinforce records an access on the top results and strengthens the links
// that carried activation to them. It never touches results.
func (s *Service) reinforce(ctx context.Context, tenantID string, results []RecallResult) {
	n := min(s.cfg.ReinforceTopN, len(results))
	if n == 0 {
		return
	}
	ids := make([]string, n)
	var links []memory.Link
	for i := 0; i < n; i++ {
		ids[i] = results[i].MemoryID
		if results[i].via != nil {
			links = append(links, *results[i].via)
		}
	}

	bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ReinforceTimeout)
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		defer cancel()

		for _, id := range ids {
			node, err := s.store.GetNode(bgCtx, tenantID, id)
			if err != nil || node == nil {
				if err != nil {
					s.logger.Warn("reinforce load failed", zap.String("id", id), zap.Error(err))
				}
				continue
			}
			now := s.now()
			st := s.strength.RecordAccess(node.Strength, now)
			if _, err := s.store.UpdateNodeStrength(bgCtx, tenantID, id, st, now); err != nil {
				s.logger.Warn("reinforce failed", zap.String("id", id), zap.Error(err))
			}
		}
		for _, l := range links {
			if _, err := s.store.StrengthenLink(bgCtx, tenantID, l.SourceID, l.TargetID, s.cfg.HebbianBoost); err != nil {
				s.logger.Warn("hebbian strengthen failed",
					zap.String("from", l.SourceID), zap.String("to", l.TargetID), zap.Error(err))
			}
		}
	}()
}
