package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
)

// LinkSource fetches every link with at least one endpoint in nodeIDs.
type LinkSource interface {
	LinksTouching(ctx context.Context, tenantID string, nodeIDs []string) ([]Link, error)
}

// ActivationOpts controls spreading activation behavior.
type ActivationOpts struct {
	MaxHops      int                  `json:"max_hops" yaml:"max_hops"`           // default 2
	DecayPerHop  float64              `json:"decay_per_hop" yaml:"decay_per_hop"` // default 0.6
	Threshold    float64              `json:"threshold" yaml:"threshold"`         // min flow kept, default 0.05
	MaxActivated int                  `json:"max_activated" yaml:"max_activated"` // default 50
	TypeWeights  map[LinkType]float64 `json:"type_weights" yaml:"type_weights"`
}

// DefaultLinkTypeWeights returns how strongly each link type propagates.
func DefaultLinkTypeWeights() map[LinkType]float64 {
	return map[LinkType]float64{
		LinkCausal:      0.9,
		LinkDerivedFrom: 0.85,
		LinkSemantic:    0.8,
		LinkSupports:    0.8,
		LinkPartOf:      0.75,
		LinkContextual:  0.7,
		LinkTemporal:    0.6,
		LinkAffective:   0.6,
		LinkContradicts: 0.3,
	}
}

// DefaultActivationOpts returns sensible defaults.
func DefaultActivationOpts() ActivationOpts {
	return ActivationOpts{
		MaxHops:      2,
		DecayPerHop:  0.6,
		Threshold:    0.05,
		MaxActivated: 50,
		TypeWeights:  DefaultLinkTypeWeights(),
	}
}

// Activation is the level a node reached and how it got there. Via is nil
// for seeds.
type Activation struct {
	Value float64 `json:"activation"`
	Hop   int     `json:"hop"`
	Via   *Link   `json:"via,omitempty"`
}

// ActivationResult holds the output of a spreading activation pass.
type ActivationResult struct {
	Nodes    map[string]Activation `json:"nodes"`
	Hops     int                   `json:"hops"`
	Duration time.Duration         `json:"duration"`
}

// Value returns the activation of id, or 0.
func (r *ActivationResult) Value(id string) float64 {
	if r == nil {
		return 0
	}
	return r.Nodes[id].Value
}

// Spreader propagates activation outward from seed nodes.
type Spreader struct {
	links  LinkSource
	logger *zap.Logger
}

func NewSpreader(links LinkSource, logger *zap.Logger) *Spreader {
	return &Spreader{links: links, logger: logger}
}

// Spread runs a bounded BFS from seeds. Seeds start at 1.0 and never
// re-propagate after the first hop. Along each link the flow is
// parent × weight × typeWeight × decay^hop; flows below the threshold are
// dropped and a node reached by several paths keeps the maximum.
func (s *Spreader) Spread(ctx context.Context, tenantID string, seeds []string, opts ActivationOpts) (*ActivationResult, error) {
	start := time.Now()
	if opts.MaxHops == 0 {
		opts = DefaultActivationOpts()
	}
	if opts.TypeWeights == nil {
		opts.TypeWeights = DefaultLinkTypeWeights()
	}

	res := &ActivationResult{Nodes: make(map[string]Activation)}
	isSeed := make(map[string]bool, len(seeds))
	var frontier []string
	for _, id := range seeds {
		if id == "" || isSeed[id] {
			continue
		}
		isSeed[id] = true
		res.Nodes[id] = Activation{Value: 1}
		frontier = append(frontier, id)
	}

	for hop := 1; hop <= opts.MaxHops && len(frontier) > 0; hop++ {
		if opts.MaxActivated > 0 && len(res.Nodes) >= opts.MaxActivated {
			break
		}
		links, err := s.links.LinksTouching(ctx, tenantID, frontier)
		if err != nil {
			return nil, fmt.Errorf("spread hop %d: %w", hop, err)
		}
		res.Hops = hop

		inFrontier := make(map[string]bool, len(frontier))
		for _, id := range frontier {
			inFrontier[id] = true
		}
		decay := math.Pow(opts.DecayPerHop, float64(hop))

		best := make(map[string]Activation)
		for i := range links {
			l := links[i]
			var parent, child string
			switch {
			case inFrontier[l.SourceID] && !inFrontier[l.TargetID]:
				parent, child = l.SourceID, l.TargetID
			case inFrontier[l.TargetID] && !inFrontier[l.SourceID]:
				parent, child = l.TargetID, l.SourceID
			default:
				continue
			}
			if isSeed[child] {
				continue
			}
			flow := res.Nodes[parent].Value * l.Weight * typeWeight(opts.TypeWeights, l.Type) * decay
			if flow < opts.Threshold {
				continue
			}
			if flow > best[child].Value {
				best[child] = Activation{Value: flow, Hop: hop, Via: &l}
			}
		}

		children := make([]string, 0, len(best))
		for id := range best {
			children = append(children, id)
		}
		sort.Slice(children, func(i, j int) bool {
			if best[children[i]].Value != best[children[j]].Value {
				return best[children[i]].Value > best[children[j]].Value
			}
			return children[i] < children[j]
		})

		var next []string
		for _, id := range children {
			prev, seen := res.Nodes[id]
			if seen && prev.Value >= best[id].Value {
				continue
			}
			if !seen && opts.MaxActivated > 0 && len(res.Nodes) >= opts.MaxActivated {
				continue
			}
			res.Nodes[id] = best[id]
			next = append(next, id)
		}
		frontier = next
	}

	res.Duration = time.Since(start)
	s.logger.Debug("spreading activation complete",
		zap.String("tenant", tenantID),
		zap.Int("seeds", len(isSeed)),
		zap.Int("activated", len(res.Nodes)),
		zap.Int("hops", res.Hops),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func typeWeight(weights map[LinkType]float64, t LinkType) float64 {
	if w, ok := weights[t]; ok {
		return w
	}
	return 0.5
}
