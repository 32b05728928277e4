package cortex

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/nidhogg/cerebro-cortex/internal/memory"
)

// AssociateRequest asks for a typed link between two memories.
type AssociateRequest struct {
	SourceID string  `json:"source_id"`
	TargetID string  `json:"target_id"`
	LinkType string  `json:"link_type"`
	Weight   float64 `json:"weight"`
	Evidence string  `json:"evidence,omitempty"`
}

// AssociateResult describes the persisted link.
type AssociateResult struct {
	LinkID          string          `json:"link_id"`
	SourceID        string          `json:"source_id"`
	TargetID        string          `json:"target_id"`
	LinkType        memory.LinkType `json:"link_type"`
	Weight          float64         `json:"weight"`
	ActivationCount int             `json:"activation_count"`
}

// Associate creates or strengthens a user link. An unknown link type or an
// out-of-range weight is a *ValidationError and nothing is written.
func (s *Service) Associate(ctx context.Context, tenantID string, req AssociateRequest) (*AssociateResult, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	linkType, err := memory.ParseLinkType(req.LinkType)
	if err != nil {
		return nil, &ValidationError{Field: "link_type", Value: req.LinkType, Message: "unknown link type", Err: err}
	}
	if req.Weight < 0 || req.Weight > 1 {
		return nil, &ValidationError{Field: "weight", Value: fmt.Sprint(req.Weight), Message: "must be within [0, 1]"}
	}
	if req.SourceID == "" || req.TargetID == "" {
		return nil, &ValidationError{Field: "source_id/target_id", Message: "both endpoints are required"}
	}
	if req.SourceID == req.TargetID {
		return nil, &ValidationError{Field: "target_id", Value: req.TargetID, Message: "cannot link a memory to itself"}
	}

	l, err := s.store.EnsureLink(ctx, tenantID, req.SourceID, req.TargetID, linkType, req.Weight, memory.OriginUser, req.Evidence)
	if err != nil {
		return nil, fmt.Errorf("associate %s->%s: %w", req.SourceID, req.TargetID, err)
	}
	s.logger.Info("link ensured",
		zap.String("tenant", tenantID),
		zap.String("link", l.ID),
		zap.String("type", string(l.Type)),
		zap.Float64("weight", l.Weight))
	return &AssociateResult{
		LinkID:          l.ID,
		SourceID:        l.SourceID,
		TargetID:        l.TargetID,
		LinkType:        l.Type,
		Weight:          l.Weight,
		ActivationCount: l.ActivationCount,
	}, nil
}

// NeighborView is one adjacent memory with a content preview.
type NeighborView struct {
	ID         string            `json:"id"`
	Preview    string            `json:"preview"`
	MemoryType memory.MemoryType `json:"memory_type,omitempty"`
	LinkType   memory.LinkType   `json:"link_type"`
	Weight     float64           `json:"weight"`
}

// Neighbors lists up to maxResults neighbors of nodeID, strongest first.
// Unknown ids yield an empty list.
func (s *Service) Neighbors(ctx context.Context, tenantID, nodeID string, maxResults int) ([]NeighborView, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	neighbors, err := s.store.GetNeighbors(ctx, tenantID, nodeID, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("neighbors of %s: %w", nodeID, err)
	}
	if maxResults > 0 && len(neighbors) > maxResults {
		neighbors = neighbors[:maxResults]
	}
	if len(neighbors) == 0 {
		return []NeighborView{}, nil
	}

	nodes, err := s.store.GetNodes(ctx, tenantID, lo.Map(neighbors, func(n memory.Neighbor, _ int) string { return n.ID }))
	if err != nil {
		return nil, fmt.Errorf("load neighbors: %w", err)
	}
	byID := lo.KeyBy(nodes, func(n *memory.Node) string { return n.ID })

	views := make([]NeighborView, 0, len(neighbors))
	for _, nb := range neighbors {
		v := NeighborView{ID: nb.ID, LinkType: nb.Type, Weight: nb.Weight}
		if n, ok := byID[nb.ID]; ok {
			v.Preview = memory.Preview(n.Content, s.cfg.PreviewRunes)
			v.MemoryType = n.Type
		}
		views = append(views, v)
	}
	return views, nil
}

// Stats returns aggregate counts for the tenant.
func (s *Service) Stats(ctx context.Context, tenantID string) (*memory.Stats, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	st, err := s.store.NodeStats(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("node stats: %w", err)
	}
	total, byType, err := s.store.LinkStats(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("link stats: %w", err)
	}
	st.Links = total
	for t, n := range byType {
		st.ByLinkType[t] = n
	}
	return st, nil
}
