package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Node is a unit of remembered content.
type Node struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	ContentHash string `json:"content_hash"`
	Content     string `json:"content"`
	Embedding   []float32 `json:"-"`

	Type       MemoryType `json:"memory_type"`
	Layer      Layer      `json:"layer"`
	Visibility Visibility `json:"visibility"`

	AgentID            string   `json:"agent_id"`
	SessionID          string   `json:"session_id,omitempty"`
	ConversationThread string   `json:"conversation_thread,omitempty"`
	EpisodeID          string   `json:"episode_id,omitempty"`
	Source             string   `json:"source"`
	DerivedFrom        []string `json:"derived_from,omitempty"`

	Valence  Valence `json:"valence"`
	Arousal  float64 `json:"arousal"`
	Salience float64 `json:"salience"`

	Tags          []string `json:"tags,omitempty"`
	Concepts      []string `json:"concepts,omitempty"`
	RespondingTo  []string `json:"responding_to,omitempty"`
	RelatedAgents []string `json:"related_agents,omitempty"`

	Strength Strength `json:"strength"`

	CreatedAt      time.Time  `json:"created_at"`
	LastAccessedAt time.Time  `json:"last_accessed_at"`
	PromotedAt     *time.Time `json:"promoted_at,omitempty"`
}

// Strength is the decay-model snapshot stored with every node.
type Strength struct {
	Stability             float64     `json:"stability"`  // days
	Difficulty            float64     `json:"difficulty"` // 1..10
	AccessCount           int         `json:"access_count"`
	AccessTimestamps      []time.Time `json:"access_timestamps"`
	CompressedCount       int         `json:"compressed_count"`
	CompressedAvgInterval float64     `json:"compressed_avg_interval"` // seconds
	LastRetrievability    float64     `json:"last_retrievability"`
	LastActivation        float64     `json:"last_activation"`
	LastComputedAt        time.Time   `json:"last_computed_at"`
}

// Link is a directed, typed, weighted edge between two nodes.
type Link struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenant_id"`
	SourceID        string     `json:"source_id"`
	TargetID        string     `json:"target_id"`
	Type            LinkType   `json:"link_type"`
	Weight          float64    `json:"weight"`
	ActivationCount int        `json:"activation_count"`
	CreatedAt       time.Time  `json:"created_at"`
	LastActivated   time.Time  `json:"last_activated"`
	Origin          LinkOrigin `json:"source"`
	Evidence        string     `json:"evidence,omitempty"`
}

// Other returns the endpoint of l that is not id.
func (l Link) Other(id string) string {
	if l.SourceID == id {
		return l.TargetID
	}
	return l.SourceID
}

// Neighbor is one adjacent node as seen from a link query.
type Neighbor struct {
	ID     string   `json:"id"`
	Weight float64  `json:"weight"`
	Type   LinkType `json:"link_type"`
}

// Episode groups the nodes of one bounded interaction in order.
type Episode struct {
	ID             string        `json:"id"`
	TenantID       string        `json:"tenant_id"`
	Title          string        `json:"title,omitempty"`
	AgentID        string        `json:"agent_id,omitempty"`
	SessionID      string        `json:"session_id,omitempty"`
	OverallValence Valence       `json:"overall_valence"`
	PeakArousal    float64       `json:"peak_arousal"`
	Consolidated   bool          `json:"consolidated"`
	StartedAt      time.Time     `json:"started_at"`
	EndedAt        *time.Time    `json:"ended_at,omitempty"`
	Steps          []EpisodeStep `json:"steps,omitempty"`
}

type EpisodeStep struct {
	EpisodeID string    `json:"episode_id"`
	MemoryID  string    `json:"memory_id"`
	Position  int       `json:"position"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AgentProfile is a registered identity that nodes are attributed to.
type AgentProfile struct {
	TenantID       string    `json:"tenant_id"`
	ID             string    `json:"id"`
	DisplayName    string    `json:"display_name"`
	Generation     int       `json:"generation"`
	Lineage        string    `json:"lineage,omitempty"`
	Specialization string    `json:"specialization,omitempty"`
	Color          string    `json:"color,omitempty"`
	Symbol         string    `json:"symbol,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Stats holds aggregate counts for one tenant.
type Stats struct {
	Nodes        int                `json:"nodes"`
	Links        int                `json:"links"`
	Episodes     int                `json:"episodes"`
	Agents       int                `json:"agents"`
	ByType       map[MemoryType]int `json:"by_type"`
	ByLayer      map[Layer]int      `json:"by_layer"`
	ByVisibility map[Visibility]int `json:"by_visibility"`
	ByLinkType   map[LinkType]int   `json:"by_link_type"`
	ByAgent      map[string]int     `json:"by_agent"`
}

// NewStats returns a Stats with all maps allocated.
func NewStats() *Stats {
	return &Stats{
		ByType:       make(map[MemoryType]int),
		ByLayer:      make(map[Layer]int),
		ByVisibility: make(map[Visibility]int),
		ByLinkType:   make(map[LinkType]int),
		ByAgent:      make(map[string]int),
	}
}

// SearchFilter restricts vector search and recent-node queries.
//
// AgentID hides private nodes owned by other agents; ConversationThread hides
// thread-scoped nodes from other threads. Empty values disable the check.
type SearchFilter struct {
	Types              []MemoryType
	MinSalience        float64
	Visibility         Visibility
	AgentID            string
	ConversationThread string
}

// Match reports whether n passes the filter.
func (f SearchFilter) Match(n *Node) bool {
	if len(f.Types) > 0 {
		ok := false
		for _, t := range f.Types {
			if n.Type == t {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if n.Salience < f.MinSalience {
		return false
	}
	if f.Visibility != "" && n.Visibility != f.Visibility {
		return false
	}
	if f.AgentID != "" && n.Visibility == VisibilityPrivate && n.AgentID != f.AgentID {
		return false
	}
	if f.ConversationThread != "" && n.Visibility == VisibilityThread && n.ConversationThread != f.ConversationThread {
		return false
	}
	return true
}

// ScoredNode pairs a node with its vector similarity to a query.
type ScoredNode struct {
	Node       *Node
	Similarity float64
}

// MetadataUpdate carries a partial edit; nil fields are left unchanged.
type MetadataUpdate struct {
	Tags          *[]string
	Concepts      *[]string
	Salience      *float64
	Visibility    *Visibility
	Layer         *Layer
	Valence       *Valence
	Arousal       *float64
	RelatedAgents *[]string
	EpisodeID     *string
}

// ContentHash returns the exact-duplicate key for content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(content)))
	return hex.EncodeToString(sum[:])
}

// Preview truncates content to at most n runes.
func Preview(content string, n int) string {
	r := []rune(strings.TrimSpace(content))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "…"
}

func clamp(v, low, high float64) float64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}
