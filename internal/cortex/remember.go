package cortex

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/nidhogg/cerebro-cortex/internal/memory"
)

const (
	ActionStored       = "stored"
	ActionStrengthened = "strengthened"
)

// RememberRequest is the input to Remember. MemoryType and Visibility are
// hints: unknown values fall back to classification and "shared".
type RememberRequest struct {
	Content            string   `json:"content"`
	MemoryType         string   `json:"memory_type,omitempty"`
	Tags               []string `json:"tags,omitempty"`
	Salience           *float64 `json:"salience,omitempty"`
	AgentID            string   `json:"agent_id"`
	Visibility         string   `json:"visibility,omitempty"`
	SessionID          string   `json:"session_id,omitempty"`
	ConversationThread string   `json:"conversation_thread,omitempty"`
	EpisodeID          string   `json:"episode_id,omitempty"`
	RespondingTo       []string `json:"responding_to,omitempty"`
	RelatedAgents      []string `json:"related_agents,omitempty"`
	Source             string   `json:"source,omitempty"`
	ContextIDs         []string `json:"context_ids,omitempty"`
}

// RememberResult describes what Remember did.
type RememberResult struct {
	ID          string            `json:"id"`
	Action      string            `json:"action"`
	MemoryType  memory.MemoryType `json:"memory_type,omitempty"`
	Layer       memory.Layer      `json:"layer,omitempty"`
	Salience    float64           `json:"salience,omitempty"`
	Valence     memory.Valence    `json:"valence,omitempty"`
	Concepts    []string          `json:"concepts,omitempty"`
	AccessCount int               `json:"access_count,omitempty"`
	Embedded    bool              `json:"embedded"`
}

// Remember gates, deduplicates, enriches and stores content. It returns
// (nil, nil) when the gate filters the input out. Only the primary node
// write is fatal; embedding and linking degrade with a warning.
func (s *Service) Remember(ctx context.Context, tenantID string, req RememberRequest) (*RememberResult, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	now := s.now()

	n := s.gate.Evaluate(memory.GateInput{
		Content:            req.Content,
		TypeHint:           req.MemoryType,
		Tags:               req.Tags,
		SalienceHint:       req.Salience,
		AgentID:            req.AgentID,
		Visibility:         req.Visibility,
		SessionID:          req.SessionID,
		ConversationThread: req.ConversationThread,
		EpisodeID:          req.EpisodeID,
		RespondingTo:       req.RespondingTo,
		RelatedAgents:      req.RelatedAgents,
		Source:             req.Source,
		Now:                now,
	})
	if n == nil {
		s.logger.Debug("input filtered by gate", zap.String("tenant", tenantID))
		return nil, nil
	}

	dupID, err := s.store.FindDuplicateContent(ctx, tenantID, n.ContentHash)
	if err != nil {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}
	if dupID != "" {
		res, err := s.strengthenDuplicate(ctx, tenantID, dupID)
		if err != nil || res != nil {
			return res, err
		}
	}

	n.ID = uuid.New().String()
	n.TenantID = tenantID
	s.semantic.Enrich(n)
	s.affect.ApplyEmotion(n)

	if vec, err := s.embed(ctx, n.Content); err != nil {
		s.logger.Warn("embedding failed, storing without vector",
			zap.String("tenant", tenantID), zap.Error(err))
	} else {
		n.Embedding = vec
	}

	if err := s.store.AddNode(ctx, n); err != nil {
		return nil, fmt.Errorf("store node: %w", err)
	}

	s.linkContext(ctx, tenantID, n.ID, req.ContextIDs)
	if n.SessionID != "" {
		s.linkSession(ctx, n)
	}
	if n.EpisodeID != "" {
		step := &memory.EpisodeStep{EpisodeID: n.EpisodeID, MemoryID: n.ID, Role: string(n.Type), CreatedAt: now}
		if err := s.store.AddEpisodeStep(ctx, tenantID, step); err != nil {
			s.logger.Warn("episode step failed",
				zap.String("episode", n.EpisodeID), zap.String("node", n.ID), zap.Error(err))
		}
	}

	s.logger.Info("memory stored",
		zap.String("tenant", tenantID),
		zap.String("id", n.ID),
		zap.String("type", string(n.Type)),
		zap.String("layer", string(n.Layer)),
		zap.Float64("salience", n.Salience))

	return &RememberResult{
		ID:         n.ID,
		Action:     ActionStored,
		MemoryType: n.Type,
		Layer:      n.Layer,
		Salience:   n.Salience,
		Valence:    n.Valence,
		Concepts:   n.Concepts,
		Embedded:   len(n.Embedding) > 0,
	}, nil
}

// strengthenDuplicate records an access on an existing node. It returns
// (nil, nil) if the node vanished since the hash lookup.
func (s *Service) strengthenDuplicate(ctx context.Context, tenantID, id string) (*RememberResult, error) {
	existing, err := s.store.GetNode(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("load duplicate %s: %w", id, err)
	}
	if existing == nil {
		return nil, nil
	}
	now := s.now()
	st := s.gate.StrengthenExisting(existing.Strength, now)
	ok, err := s.store.UpdateNodeStrength(ctx, tenantID, id, st, now)
	if err != nil {
		return nil, fmt.Errorf("strengthen duplicate %s: %w", id, err)
	}
	if !ok {
		return nil, nil
	}
	s.logger.Debug("duplicate strengthened",
		zap.String("tenant", tenantID), zap.String("id", id), zap.Int("access_count", st.AccessCount))
	return &RememberResult{
		ID:          id,
		Action:      ActionStrengthened,
		MemoryType:  existing.Type,
		Layer:       existing.Layer,
		Salience:    existing.Salience,
		Valence:     existing.Valence,
		AccessCount: st.AccessCount,
		Embedded:    len(existing.Embedding) > 0,
	}, nil
}

// linkContext links up to MaxContextIDs context nodes to id.
func (s *Service) linkContext(ctx context.Context, tenantID, id string, contextIDs []string) {
	ids := lo.Filter(lo.Uniq(contextIDs), func(c string, _ int) bool { return c != "" && c != id })
	if len(ids) > s.cfg.MaxContextIDs {
		ids = ids[:s.cfg.MaxContextIDs]
	}
	for _, cid := range ids {
		if _, err := s.store.EnsureLink(ctx, tenantID, cid, id, memory.LinkContextual,
			s.cfg.ContextLinkWeight, memory.OriginSystem, ""); err != nil {
			s.logger.Warn("context link failed",
				zap.String("tenant", tenantID), zap.String("from", cid), zap.String("to", id), zap.Error(err))
		}
	}
}

// linkSession chains n to the previous node of its session.
func (s *Service) linkSession(ctx context.Context, n *memory.Node) {
	prev, err := s.store.LatestInSession(ctx, n.TenantID, n.SessionID, n.CreatedAt)
	if err != nil {
		s.logger.Warn("session lookup failed", zap.String("session", n.SessionID), zap.Error(err))
		return
	}
	if prev == nil || prev.ID == n.ID {
		return
	}
	if _, err := s.store.EnsureLink(ctx, n.TenantID, prev.ID, n.ID, memory.LinkTemporal,
		s.cfg.SessionLinkWeight, memory.OriginSystem, "session:"+n.SessionID); err != nil {
		s.logger.Warn("session link failed",
			zap.String("from", prev.ID), zap.String("to", n.ID), zap.Error(err))
	}
}
