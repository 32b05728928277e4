package memory

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownMemoryType = errors.New("unknown memory type")
	ErrUnknownLayer      = errors.New("unknown layer")
	ErrUnknownVisibility = errors.New("unknown visibility")
	ErrUnknownLinkType   = errors.New("unknown link type")
	ErrNotFound          = errors.New("not found")
)

// MemoryType classifies what kind of knowledge a node holds.
type MemoryType string

const (
	TypeSemantic    MemoryType = "semantic"
	TypeEpisodic    MemoryType = "episodic"
	TypeProcedural  MemoryType = "procedural"
	TypeAffective   MemoryType = "affective"
	TypeProspective MemoryType = "prospective"
	TypeSchematic   MemoryType = "schematic"
)

// MemoryTypes lists every valid MemoryType.
var MemoryTypes = []MemoryType{
	TypeSemantic, TypeEpisodic, TypeProcedural,
	TypeAffective, TypeProspective, TypeSchematic,
}

// ParseMemoryType parses s strictly.
func ParseMemoryType(s string) (MemoryType, error) {
	t := MemoryType(normalize(s))
	for _, v := range MemoryTypes {
		if t == v {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMemoryType, s)
}

// ParseMemoryTypeOr parses s, returning def when s is not a known type.
func ParseMemoryTypeOr(s string, def MemoryType) MemoryType {
	if t, err := ParseMemoryType(s); err == nil {
		return t
	}
	return def
}

// Layer is a coarse recency/importance tier.
type Layer string

const (
	LayerSensory  Layer = "sensory"
	LayerWorking  Layer = "working"
	LayerLongTerm Layer = "long_term"
	LayerCortex   Layer = "cortex"
)

var Layers = []Layer{LayerSensory, LayerWorking, LayerLongTerm, LayerCortex}

func ParseLayer(s string) (Layer, error) {
	l := Layer(normalize(s))
	for _, v := range Layers {
		if l == v {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLayer, s)
}

func ParseLayerOr(s string, def Layer) Layer {
	if l, err := ParseLayer(s); err == nil {
		return l
	}
	return def
}

// Rank orders layers from sensory (0) to cortex (3).
func (l Layer) Rank() int {
	for i, v := range Layers {
		if l == v {
			return i
		}
	}
	return -1
}

// Visibility is the sharing scope of a node.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityShared  Visibility = "shared"
	VisibilityThread  Visibility = "thread"
)

var Visibilities = []Visibility{VisibilityPrivate, VisibilityShared, VisibilityThread}

func ParseVisibility(s string) (Visibility, error) {
	v := Visibility(normalize(s))
	for _, known := range Visibilities {
		if v == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVisibility, s)
}

// ParseVisibilityOr parses s, returning def for unknown or empty input.
func ParseVisibilityOr(s string, def Visibility) Visibility {
	if v, err := ParseVisibility(s); err == nil {
		return v
	}
	return def
}

// LinkType names the relationship an associative link represents.
type LinkType string

const (
	LinkTemporal    LinkType = "temporal"
	LinkCausal      LinkType = "causal"
	LinkSemantic    LinkType = "semantic"
	LinkAffective   LinkType = "affective"
	LinkContextual  LinkType = "contextual"
	LinkContradicts LinkType = "contradicts"
	LinkSupports    LinkType = "supports"
	LinkDerivedFrom LinkType = "derived_from"
	LinkPartOf      LinkType = "part_of"
)

var LinkTypes = []LinkType{
	LinkTemporal, LinkCausal, LinkSemantic, LinkAffective, LinkContextual,
	LinkContradicts, LinkSupports, LinkDerivedFrom, LinkPartOf,
}

// ParseLinkType parses s strictly. There is no safe default for link types.
func ParseLinkType(s string) (LinkType, error) {
	t := LinkType(normalize(s))
	for _, v := range LinkTypes {
		if t == v {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLinkType, s)
}

// Valence is the emotional polarity of a node.
type Valence string

const (
	ValencePositive Valence = "positive"
	ValenceNegative Valence = "negative"
	ValenceNeutral  Valence = "neutral"
	ValenceMixed    Valence = "mixed"
)

func ParseValenceOr(s string, def Valence) Valence {
	switch v := Valence(normalize(s)); v {
	case ValencePositive, ValenceNegative, ValenceNeutral, ValenceMixed:
		return v
	}
	return def
}

// LinkOrigin records who created a link.
type LinkOrigin string

const (
	OriginUser      LinkOrigin = "user"
	OriginSystem    LinkOrigin = "system"
	OriginEncoding  LinkOrigin = "encoding"
	OriginMigration LinkOrigin = "migration"
)

func ParseLinkOriginOr(s string, def LinkOrigin) LinkOrigin {
	switch o := LinkOrigin(normalize(s)); o {
	case OriginUser, OriginSystem, OriginEncoding, OriginMigration:
		return o
	}
	return def
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
