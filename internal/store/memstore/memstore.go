// Package memstore is an in-process GraphStore guarded by a single mutex.
// It backs the CLI when no database is configured and the service tests.
package memstore

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/nidhogg/cerebro-cortex/internal/memory"
)

type linkKey struct {
	tenant, source, target string
	typ                    memory.LinkType
}

// Store holds all tenants' data in maps.
type Store struct {
	mu       sync.RWMutex
	nodes    map[string]*memory.Node // by id
	links    map[linkKey]*memory.Link
	episodes map[string]*memory.Episode
	agents   map[string]*memory.AgentProfile // tenant + "/" + id

	// FailAddNode, when set, is returned by AddNode.
	FailAddNode error
	// FailLinks, when set, is returned by link writes.
	FailLinks error
	// FailStrength, when set, is returned by UpdateNodeStrength.
	FailStrength error
}

// SetFailures replaces the failure hooks under the store lock.
func (s *Store) SetFailures(addNode, links, strength error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FailAddNode, s.FailLinks, s.FailStrength = addNode, links, strength
}

func New() *Store {
	return &Store{
		nodes:    make(map[string]*memory.Node),
		links:    make(map[linkKey]*memory.Link),
		episodes: make(map[string]*memory.Episode),
		agents:   make(map[string]*memory.AgentProfile),
	}
}

func cloneNode(n *memory.Node) *memory.Node {
	c := *n
	c.Embedding = append([]float32(nil), n.Embedding...)
	c.Tags = append([]string(nil), n.Tags...)
	c.Concepts = append([]string(nil), n.Concepts...)
	c.RespondingTo = append([]string(nil), n.RespondingTo...)
	c.RelatedAgents = append([]string(nil), n.RelatedAgents...)
	c.DerivedFrom = append([]string(nil), n.DerivedFrom...)
	c.Strength.AccessTimestamps = append([]time.Time(nil), n.Strength.AccessTimestamps...)
	if n.PromotedAt != nil {
		t := *n.PromotedAt
		c.PromotedAt = &t
	}
	return &c
}

func (s *Store) AddNode(_ context.Context, n *memory.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAddNode != nil {
		return s.FailAddNode
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.ContentHash == "" {
		n.ContentHash = memory.ContentHash(n.Content)
	}
	s.nodes[n.ID] = cloneNode(n)
	return nil
}

func (s *Store) get(tenantID, id string) *memory.Node {
	n, ok := s.nodes[id]
	if !ok || n.TenantID != tenantID {
		return nil
	}
	return n
}

func (s *Store) GetNode(_ context.Context, tenantID, id string) (*memory.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n := s.get(tenantID, id); n != nil {
		return cloneNode(n), nil
	}
	return nil, nil
}

func (s *Store) GetNodes(_ context.Context, tenantID string, ids []string) ([]*memory.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*memory.Node
	for _, id := range lo.Uniq(ids) {
		if n := s.get(tenantID, id); n != nil {
			out = append(out, cloneNode(n))
		}
	}
	return out, nil
}

func (s *Store) FindDuplicateContent(_ context.Context, tenantID, contentHash string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *memory.Node
	for _, n := range s.nodes {
		if n.TenantID == tenantID && n.ContentHash == contentHash {
			if found == nil || n.CreatedAt.Before(found.CreatedAt) {
				found = n
			}
		}
	}
	if found == nil {
		return "", nil
	}
	return found.ID, nil
}

func (s *Store) UpdateNodeStrength(_ context.Context, tenantID, id string, st memory.Strength, accessedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailStrength != nil {
		return false, s.FailStrength
	}
	n := s.get(tenantID, id)
	if n == nil {
		return false, nil
	}
	st.AccessTimestamps = append([]time.Time(nil), st.AccessTimestamps...)
	n.Strength = st
	n.LastAccessedAt = accessedAt
	return true, nil
}

func (s *Store) UpdateNodeMetadata(_ context.Context, tenantID, id string, u memory.MetadataUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.get(tenantID, id)
	if n == nil {
		return false, nil
	}
	if u.Tags != nil {
		n.Tags = append([]string(nil), (*u.Tags)...)
	}
	if u.Concepts != nil {
		n.Concepts = append([]string(nil), (*u.Concepts)...)
	}
	if u.Salience != nil {
		n.Salience = *u.Salience
	}
	if u.Visibility != nil {
		n.Visibility = *u.Visibility
	}
	if u.Layer != nil && *u.Layer != n.Layer {
		if u.Layer.Rank() > n.Layer.Rank() {
			now := time.Now()
			n.PromotedAt = &now
		}
		n.Layer = *u.Layer
	}
	if u.Valence != nil {
		n.Valence = *u.Valence
	}
	if u.Arousal != nil {
		n.Arousal = *u.Arousal
	}
	if u.RelatedAgents != nil {
		n.RelatedAgents = append([]string(nil), (*u.RelatedAgents)...)
	}
	if u.EpisodeID != nil {
		n.EpisodeID = *u.EpisodeID
	}
	return true, nil
}

func (s *Store) VectorSearch(_ context.Context, tenantID string, query []float32, topK int, f memory.SearchFilter) ([]memory.ScoredNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []memory.ScoredNode
	for _, n := range s.nodes {
		if n.TenantID != tenantID || len(n.Embedding) == 0 || !f.Match(n) {
			continue
		}
		out = append(out, memory.ScoredNode{Node: cloneNode(n), Similarity: memory.CosineSimilarity(query, n.Embedding)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (s *Store) RecentNodes(_ context.Context, tenantID string, limit int, f memory.SearchFilter) ([]*memory.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*memory.Node
	for _, n := range s.nodes {
		if n.TenantID == tenantID && f.Match(n) {
			out = append(out, cloneNode(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) LatestInSession(_ context.Context, tenantID, sessionID string, before time.Time) (*memory.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *memory.Node
	for _, n := range s.nodes {
		if n.TenantID != tenantID || n.SessionID != sessionID || !n.CreatedAt.Before(before) {
			continue
		}
		if latest == nil || n.CreatedAt.After(latest.CreatedAt) {
			latest = n
		}
	}
	if latest == nil {
		return nil, nil
	}
	return cloneNode(latest), nil
}

func (s *Store) NodeStats(_ context.Context, tenantID string) (*memory.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := memory.NewStats()
	for _, n := range s.nodes {
		if n.TenantID != tenantID {
			continue
		}
		st.Nodes++
		st.ByType[n.Type]++
		st.ByLayer[n.Layer]++
		st.ByVisibility[n.Visibility]++
		if n.AgentID != "" {
			st.ByAgent[n.AgentID]++
		}
	}
	for _, e := range s.episodes {
		if e.TenantID == tenantID {
			st.Episodes++
		}
	}
	for _, a := range s.agents {
		if a.TenantID == tenantID {
			st.Agents++
		}
	}
	return st, nil
}

// Links

func (s *Store) AddLink(_ context.Context, l *memory.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailLinks != nil {
		return s.FailLinks
	}
	now := time.Now()
	key := linkKey{l.TenantID, l.SourceID, l.TargetID, l.Type}
	if existing, ok := s.links[key]; ok {
		existing.Weight = math.Max(existing.Weight, l.Weight)
		existing.ActivationCount++
		existing.LastActivated = now
		if l.Evidence != "" {
			existing.Evidence = l.Evidence
		}
		*l = *existing
		return nil
	}
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	if l.LastActivated.IsZero() {
		l.LastActivated = now
	}
	c := *l
	s.links[key] = &c
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

func (s *Store) StrengthenLink(_ context.Context, tenantID, sourceID, targetID string, boost float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailLinks != nil {
		return false, s.FailLinks
	}
	found := false
	for k, l := range s.links {
		if k.tenant == tenantID && k.source == sourceID && k.target == targetID {
			l.Weight = math.Min(l.Weight+boost, 1.0)
			l.ActivationCount++
			l.LastActivated = time.Now()
			found = true
		}
	}
	return found, nil
}

func (s *Store) LinksTouching(_ context.Context, tenantID string, nodeIDs []string) ([]memory.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := lo.SliceToMap(nodeIDs, func(id string) (string, bool) { return id, true })
	var out []memory.Link
	for k, l := range s.links {
		if k.tenant == tenantID && (want[k.source] || want[k.target]) {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Link returns the stored link for the key, for tests.
func (s *Store) Link(tenantID, sourceID, targetID string, t memory.LinkType) (memory.Link, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.links[linkKey{tenantID, sourceID, targetID, t}]
	if !ok {
		return memory.Link{}, false
	}
	return *l, true
}

func (s *Store) GetNeighbors(_ context.Context, tenantID, nodeID string, types []memory.LinkType, minWeight float64) ([]memory.Neighbor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []memory.Neighbor
	for k, l := range s.links {
		if k.tenant != tenantID || (k.source != nodeID && k.target != nodeID) {
			continue
		}
		if len(types) > 0 && !lo.Contains(types, l.Type) {
			continue
		}
		if l.Weight < minWeight {
			continue
		}
		out = append(out, memory.Neighbor{ID: l.Other(nodeID), Weight: l.Weight, Type: l.Type})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetDegree(_ context.Context, tenantID, nodeID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for k := range s.links {
		if k.tenant == tenantID && (k.source == nodeID || k.target == nodeID) {
			n++
		}
	}
	return n, nil
}

func (s *Store) LinkStats(_ context.Context, tenantID string) (int, map[memory.LinkType]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byType := make(map[memory.LinkType]int)
	total := 0
	for k := range s.links {
		if k.tenant == tenantID {
			total++
			byType[k.typ]++
		}
	}
	return total, byType, nil
}
