package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nidhogg/cerebro-cortex/internal/memory"
)

func cloneEpisode(e *memory.Episode) *memory.Episode {
	c := *e
	c.Steps = append([]memory.EpisodeStep(nil), e.Steps...)
	if e.EndedAt != nil {
		t := *e.EndedAt
		c.EndedAt = &t
	}
	return &c
}

func (s *Store) CreateEpisode(_ context.Context, e *memory.Episode) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}
	if e.OverallValence == "" {
		e.OverallValence = memory.ValenceNeutral
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.episodes[e.ID] = cloneEpisode(e)
	return nil
}

func (s *Store) GetEpisode(_ context.Context, tenantID, id string) (*memory.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.episodes[id]
	if !ok || e.TenantID != tenantID {
		return nil, nil
	}
	return cloneEpisode(e), nil
}

// AddEpisodeStep appends step; a zero Position means "next".
func (s *Store) AddEpisodeStep(_ context.Context, tenantID string, step *memory.EpisodeStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.episodes[step.EpisodeID]
	if !ok || e.TenantID != tenantID {
		return memory.ErrNotFound
	}
	if step.Position == 0 {
		step.Position = len(e.Steps) + 1
	}
	if step.CreatedAt.IsZero() {
		step.CreatedAt = time.Now()
	}
	e.Steps = append(e.Steps, *step)
	sort.SliceStable(e.Steps, func(i, j int) bool { return e.Steps[i].Position < e.Steps[j].Position })
	return nil
}

func (s *Store) UpdateEpisode(_ context.Context, e *memory.Episode) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.episodes[e.ID]
	if !ok || cur.TenantID != e.TenantID {
		return false, nil
	}
	steps := cur.Steps
	*cur = *cloneEpisode(e)
	cur.Steps = steps
	return true, nil
}

func (s *Store) ListEpisodes(_ context.Context, tenantID string, limit int) ([]*memory.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*memory.Episode
	for _, e := range s.episodes {
		if e.TenantID == tenantID {
			c := cloneEpisode(e)
			c.Steps = nil
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UpsertAgent(_ context.Context, a *memory.AgentProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	key := a.TenantID + "/" + a.ID
	if cur, ok := s.agents[key]; ok {
		a.CreatedAt = cur.CreatedAt
	} else {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	c := *a
	s.agents[key] = &c
	return nil
}

func (s *Store) ListAgents(_ context.Context, tenantID string) ([]*memory.AgentProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*memory.AgentProfile
	for _, a := range s.agents {
		if a.TenantID == tenantID {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
