package cortex

import (
	"context"
	"time"

	"github.com/nidhogg/cerebro-cortex/internal/memory"
)

// NodeStore persists memory nodes. Every call is scoped by tenant.
type NodeStore interface {
	AddNode(ctx context.Context, n *memory.Node) error
	// GetNode returns (nil, nil) when the id is unknown.
	GetNode(ctx context.Context, tenantID, id string) (*memory.Node, error)
	GetNodes(ctx context.Context, tenantID string, ids []string) ([]*memory.Node, error)
	// FindDuplicateContent returns the id of the node with this content hash, or "".
	FindDuplicateContent(ctx context.Context, tenantID, contentHash string) (string, error)
	UpdateNodeStrength(ctx context.Context, tenantID, id string, s memory.Strength, accessedAt time.Time) (bool, error)
	UpdateNodeMetadata(ctx context.Context, tenantID, id string, u memory.MetadataUpdate) (bool, error)
	VectorSearch(ctx context.Context, tenantID string, query []float32, topK int, f memory.SearchFilter) ([]memory.ScoredNode, error)
	// RecentNodes returns the newest nodes matching f, newest first.
	RecentNodes(ctx context.Context, tenantID string, limit int, f memory.SearchFilter) ([]*memory.Node, error)
	// LatestInSession returns the newest node of a session created before the
	// given time, or nil.
	LatestInSession(ctx context.Context, tenantID, sessionID string, before time.Time) (*memory.Node, error)
	NodeStats(ctx context.Context, tenantID string) (*memory.Stats, error)
}

// LinkStore persists associative links. Upserts must be atomic.
type LinkStore interface {
	memory.LinkSource
	// AddLink inserts l or, if (tenant, source, target, type) exists, raises
	// its weight to max(old, new) and increments activation_count. l.ID is
	// set to the persisted link id.
	AddLink(ctx context.Context, l *memory.Link) error
	// EnsureLink is AddLink with defaults filled in.
	EnsureLink(ctx context.Context, tenantID, sourceID, targetID string, t memory.LinkType, weight float64, origin memory.LinkOrigin, evidence string) (*memory.Link, error)
	// StrengthenLink adds boost (capped at 1.0) to every source→target link.
	StrengthenLink(ctx context.Context, tenantID, sourceID, targetID string, boost float64) (bool, error)
	GetNeighbors(ctx context.Context, tenantID, nodeID string, types []memory.LinkType, minWeight float64) ([]memory.Neighbor, error)
	GetDegree(ctx context.Context, tenantID, nodeID string) (int, error)
	LinkStats(ctx context.Context, tenantID string) (total int, byType map[memory.LinkType]int, err error)
}

// EpisodeStore persists episodes and their ordered steps.
type EpisodeStore interface {
	CreateEpisode(ctx context.Context, e *memory.Episode) error
	GetEpisode(ctx context.Context, tenantID, id string) (*memory.Episode, error)
	AddEpisodeStep(ctx context.Context, tenantID string, step *memory.EpisodeStep) error
	UpdateEpisode(ctx context.Context, e *memory.Episode) (bool, error)
	ListEpisodes(ctx context.Context, tenantID string, limit int) ([]*memory.Episode, error)
}

// AgentStore persists agent profiles.
type AgentStore interface {
	UpsertAgent(ctx context.Context, a *memory.AgentProfile) error
	ListAgents(ctx context.Context, tenantID string) ([]*memory.AgentProfile, error)
}

// GraphStore is everything the service persists.
type GraphStore interface {
	NodeStore
	LinkStore
	EpisodeStore
	AgentStore
}

// SplitStore serves links from a dedicated backend and everything else from
// the primary store.
type SplitStore struct {
	NodeStore
	EpisodeStore
	AgentStore
	LinkStore
}

// WithLinks returns a GraphStore that keeps nodes, episodes and agents in
// primary and routes link operations to links.
func WithLinks(primary GraphStore, links LinkStore) GraphStore {
	return &SplitStore{NodeStore: primary, EpisodeStore: primary, AgentStore: primary, LinkStore: links}
}
