package cortex

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/nidhogg/cerebro-cortex/internal/memory"
)

// RegisterAgent creates or updates an agent profile.
func (s *Service) RegisterAgent(ctx context.Context, tenantID string, a memory.AgentProfile) (*memory.AgentProfile, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if a.ID == "" {
		return nil, &ValidationError{Field: "agent_id", Message: "agent id is required"}
	}
	a.TenantID = tenantID
	if a.DisplayName == "" {
		a.DisplayName = a.ID
	}
	if err := s.store.UpsertAgent(ctx, &a); err != nil {
		return nil, fmt.Errorf("register agent %s: %w", a.ID, err)
	}
	return &a, nil
}

func (s *Service) ListAgents(ctx context.Context, tenantID string) ([]*memory.AgentProfile, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	return s.store.ListAgents(ctx, tenantID)
}

// StartEpisode opens an episode. Memories remembered with its id are
// appended as steps.
func (s *Service) StartEpisode(ctx context.Context, tenantID, title, agentID, sessionID string) (*memory.Episode, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	e := &memory.Episode{
		TenantID:       tenantID,
		Title:          title,
		AgentID:        agentID,
		SessionID:      sessionID,
		OverallValence: memory.ValenceNeutral,
		StartedAt:      s.now(),
	}
	if err := s.store.CreateEpisode(ctx, e); err != nil {
		return nil, fmt.Errorf("start episode: %w", err)
	}
	return e, nil
}

// EndEpisode closes an episode and summarises the affect of its steps. It
// returns (nil, nil) for an unknown id.
func (s *Service) EndEpisode(ctx context.Context, tenantID, episodeID string) (*memory.Episode, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	e, err := s.store.GetEpisode(ctx, tenantID, episodeID)
	if err != nil {
		return nil, fmt.Errorf("load episode %s: %w", episodeID, err)
	}
	if e == nil {
		return nil, nil
	}

	nodes, err := s.store.GetNodes(ctx, tenantID, lo.Map(e.Steps, func(st memory.EpisodeStep, _ int) string { return st.MemoryID }))
	if err != nil {
		return nil, fmt.Errorf("load episode nodes: %w", err)
	}
	e.OverallValence, e.PeakArousal = summariseAffect(nodes)
	ended := s.now()
	e.EndedAt = &ended
	e.Consolidated = false

	ok, err := s.store.UpdateEpisode(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("end episode %s: %w", episodeID, err)
	}
	if !ok {
		return nil, nil
	}
	s.logger.Info("episode ended",
		zap.String("tenant", tenantID),
		zap.String("episode", episodeID),
		zap.Int("steps", len(e.Steps)),
		zap.String("valence", string(e.OverallValence)))
	return e, nil
}

// summariseAffect takes the majority polarity of nodes. Equal positive and
// negative counts give mixed; no polar nodes give neutral.
func summariseAffect(nodes []*memory.Node) (memory.Valence, float64) {
	var pos, neg int
	peak := 0.0
	for _, n := range nodes {
		switch n.Valence {
		case memory.ValencePositive:
			pos++
		case memory.ValenceNegative:
			neg++
		case memory.ValenceMixed:
			pos++
			neg++
		}
		peak = max(peak, n.Arousal)
	}
	switch {
	case pos == 0 && neg == 0:
		return memory.ValenceNeutral, peak
	case pos > neg:
		return memory.ValencePositive, peak
	case neg > pos:
		return memory.ValenceNegative, peak
	default:
		return memory.ValenceMixed, peak
	}
}

// Episode returns an episode with its steps, or nil.
func (s *Service) Episode(ctx context.Context, tenantID, episodeID string) (*memory.Episode, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	return s.store.GetEpisode(ctx, tenantID, episodeID)
}

func (s *Service) ListEpisodes(ctx context.Context, tenantID string, limit int) ([]*memory.Episode, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	return s.store.ListEpisodes(ctx, tenantID, limit)
}

// UpdateMetadata applies a partial edit. Salience and arousal are clamped;
// it returns false for an unknown id.
func (s *Service) UpdateMetadata(ctx context.Context, tenantID, id string, u memory.MetadataUpdate) (bool, error) {
	if err := requireTenant(tenantID); err != nil {
		return false, err
	}
	if u.Salience != nil {
		v := min(max(*u.Salience, 0.1), 1.0)
		u.Salience = &v
	}
	if u.Arousal != nil {
		v := min(max(*u.Arousal, 0), 1.0)
		u.Arousal = &v
	}
	ok, err := s.store.UpdateNodeMetadata(ctx, tenantID, id, u)
	if err != nil {
		return false, fmt.Errorf("update metadata %s: %w", id, err)
	}
	return ok, nil
}
