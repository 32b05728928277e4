package memory

import (
	"strings"
	"time"
	"unicode/utf8"
)

// GateConfig controls the input filter.
type GateConfig struct {
	MinLength       int `json:"min_length" yaml:"min_length"`               // trimmed runes, default 10
	MaxContentRunes int `json:"max_content_runes" yaml:"max_content_runes"` // default 10000
}

// DefaultGateConfig returns sensible defaults.
func DefaultGateConfig() GateConfig {
	return GateConfig{MinLength: 10, MaxContentRunes: 10000}
}

// GateInput is the raw material for a candidate node.
type GateInput struct {
	Content            string
	TypeHint           string
	Tags               []string
	SalienceHint       *float64
	AgentID            string
	Visibility         string
	SessionID          string
	ConversationThread string
	EpisodeID          string
	RespondingTo       []string
	RelatedAgents      []string
	DerivedFrom        []string
	Source             string
	Now                time.Time
}

var (
	proceduralMarkers = []string{
		"step", "steps", "step by step", "workflow", "procedure", "how to",
		"first", "then", "next", "finally", "install", "configure", "recipe",
		"instructions", "sequence",
	}
	affectiveMarkers = []string{
		"feel", "feeling", "feels", "felt", "happy", "sad", "angry", "love",
		"hate", "excited", "frustrated", "afraid", "scared", "worried",
		"anxious", "grateful", "upset", "proud", "disappointed", "lonely",
	}
	prospectiveMarkers = []string{
		"will", "plan", "planning", "plans", "going to", "need to", "todo",
		"to-do", "tomorrow", "remind", "reminder", "intend", "next week",
		"later", "deadline", "schedule",
	}
	episodicMarkers = []string{
		"today", "yesterday", "earlier", "last time", "this session",
		"we discussed", "just now", "this morning", "tonight", "happened",
		"last night", "last week", "ago",
	}
	highSalienceKeywords = []string{
		"important", "remember", "critical", "crucial", "essential", "urgent",
		"always", "never", "must", "key", "priority", "note",
	}
)

// Gate classifies and filters raw input into candidate nodes.
type Gate struct {
	cfg      GateConfig
	strength *StrengthModel
}

// NewGate creates a gate; a zero config selects the defaults.
func NewGate(cfg GateConfig, strength *StrengthModel) *Gate {
	if cfg.MinLength == 0 {
		cfg.MinLength = DefaultGateConfig().MinLength
	}
	if cfg.MaxContentRunes == 0 {
		cfg.MaxContentRunes = DefaultGateConfig().MaxContentRunes
	}
	if strength == nil {
		strength = NewStrengthModel(StrengthConfig{})
	}
	return &Gate{cfg: cfg, strength: strength}
}

// Evaluate returns a candidate node, or nil when the input is filtered out.
// The returned node has no id, tenant, embedding or enrichment yet.
func (g *Gate) Evaluate(in GateInput) *Node {
	content := strings.TrimSpace(in.Content)
	if utf8.RuneCountInString(content) < g.cfg.MinLength {
		return nil
	}
	if r := []rune(content); len(r) > g.cfg.MaxContentRunes {
		content = string(r[:g.cfg.MaxContentRunes])
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	memType := ParseMemoryTypeOr(in.TypeHint, "")
	if memType == "" {
		memType = Classify(content)
	}

	salience := EstimateSalience(content, in.Tags)
	if in.SalienceHint != nil {
		salience = clamp(*in.SalienceHint, 0.1, 1.0)
	}

	source := in.Source
	if source == "" {
		source = "user_input"
	}

	strength := g.strength.Initial(InitialStability(salience), now)
	strength.Difficulty = g.strength.DifficultyFor(salience)

	return &Node{
		ContentHash:        ContentHash(content),
		Content:            content,
		Type:               memType,
		Layer:              InitialLayer(memType, salience),
		Visibility:         ParseVisibilityOr(in.Visibility, VisibilityShared),
		AgentID:            in.AgentID,
		SessionID:          in.SessionID,
		ConversationThread: in.ConversationThread,
		EpisodeID:          in.EpisodeID,
		Source:             source,
		DerivedFrom:        in.DerivedFrom,
		Valence:            ValenceNeutral,
		Salience:           salience,
		Tags:               append([]string(nil), in.Tags...),
		RespondingTo:       in.RespondingTo,
		RelatedAgents:      in.RelatedAgents,
		Strength:           strength,
		CreatedAt:          now,
		LastAccessedAt:     now,
	}
}

// StrengthenExisting records an access on a duplicate instead of storing it again.
func (g *Gate) StrengthenExisting(s Strength, t time.Time) Strength {
	return g.strength.RecordAccess(s, t)
}

// Classify picks the memory type by marker, first match wins.
func Classify(content string) MemoryType {
	idx := newPhraseIndex(content)
	switch {
	case idx.any(proceduralMarkers):
		return TypeProcedural
	case idx.any(affectiveMarkers):
		return TypeAffective
	case idx.any(prospectiveMarkers):
		return TypeProspective
	case idx.any(episodicMarkers):
		return TypeEpisodic
	}
	return TypeSemantic
}

// EstimateSalience scores how memorable content is, in [0.1, 1.0].
func EstimateSalience(content string, tags []string) float64 {
	idx := newPhraseIndex(content)
	s := 0.5
	s += min(0.1*float64(idx.count(highSalienceKeywords)), 0.3)

	n := utf8.RuneCountInString(content)
	if n > 200 {
		s += 0.1
	} else if n < 30 {
		s -= 0.1
	}
	s += min(0.05*float64(len(tags)), 0.15)
	if strings.Contains(content, "?") {
		s += 0.05
	}
	if strings.Contains(content, "!") {
		s += 0.05
	}
	return clamp(s, 0.1, 1.0)
}

// InitialLayer places procedural and schematic nodes in working memory and
// everything else by salience.
func InitialLayer(t MemoryType, salience float64) Layer {
	if t == TypeProcedural || t == TypeSchematic || salience >= 0.4 {
		return LayerWorking
	}
	return LayerSensory
}

// InitialStability maps salience to a starting stability in days.
func InitialStability(salience float64) float64 {
	return 0.5 + salience*2.5
}
