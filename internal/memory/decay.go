package memory

import (
	"math"
	"sort"
	"time"
)

// StrengthConfig controls activation and forgetting-curve behavior.
type StrengthConfig struct {
	ActivationDecay     float64 `json:"activation_decay" yaml:"activation_decay"`           // ACT-R d, default 0.5
	MinAgeHours         float64 `json:"min_age_hours" yaml:"min_age_hours"`                 // age floor for a fresh access
	ForgettingFactor    float64 `json:"forgetting_factor" yaml:"forgetting_factor"`         // FSRS F, default 19/81
	ForgettingDecay     float64 `json:"forgetting_decay" yaml:"forgetting_decay"`           // curve exponent, default -0.5
	StabilityGrowth     float64 `json:"stability_growth" yaml:"stability_growth"`           // default 1.2
	StabilityDamping    float64 `json:"stability_damping" yaml:"stability_damping"`         // default 0.2
	SpacingGain         float64 `json:"spacing_gain" yaml:"spacing_gain"`                   // default 1.5
	MinGain             float64 `json:"min_gain" yaml:"min_gain"`                           // default 0.05
	MaxAccessTimestamps int     `json:"max_access_timestamps" yaml:"max_access_timestamps"` // default 50
	InitialDifficulty   float64 `json:"initial_difficulty" yaml:"initial_difficulty"`       // default 5
}

// DefaultStrengthConfig returns sensible defaults.
func DefaultStrengthConfig() StrengthConfig {
	return StrengthConfig{
		ActivationDecay:     0.5,
		MinAgeHours:         1.0 / 60,
		ForgettingFactor:    19.0 / 81.0,
		ForgettingDecay:     -0.5,
		StabilityGrowth:     1.2,
		StabilityDamping:    0.2,
		SpacingGain:         1.5,
		MinGain:             0.05,
		MaxAccessTimestamps: 50,
		InitialDifficulty:   5,
	}
}

// StrengthModel computes base-level activation and retrievability from a
// stored Strength snapshot. All methods are pure.
type StrengthModel struct {
	cfg StrengthConfig
}

// NewStrengthModel creates a model; a zero config selects the defaults.
func NewStrengthModel(cfg StrengthConfig) *StrengthModel {
	if cfg.ActivationDecay == 0 {
		cfg = DefaultStrengthConfig()
	}
	return &StrengthModel{cfg: cfg}
}

// Initial builds the snapshot of a node encoded at t with the given stability.
func (m *StrengthModel) Initial(stability float64, t time.Time) Strength {
	s := Strength{
		Stability:          stability,
		Difficulty:         m.cfg.InitialDifficulty,
		AccessCount:        1,
		AccessTimestamps:   []time.Time{t},
		LastRetrievability: 1,
		LastComputedAt:     t,
	}
	s.LastActivation = m.BaseLevel(s, t)
	return s
}

// DifficultyFor maps salience to a starting difficulty in [1, 10]. Salience
// 0.5 gets InitialDifficulty; less salient items are easier, so their
// stability grows faster on access.
func (m *StrengthModel) DifficultyFor(salience float64) float64 {
	return clamp(m.cfg.InitialDifficulty+(salience-0.5)*6, 1, 10)
}

// BaseLevel returns the ACT-R base-level activation at t squashed into [0,1).
// Each access j contributes age_j^(-d); the compressed block is approximated
// by an integral over evenly spaced accesses older than the oldest retained one.
// The result is S/(1+S), the logistic of ln S.
func (m *StrengthModel) BaseLevel(s Strength, t time.Time) float64 {
	d := m.cfg.ActivationDecay
	var sum float64
	oldest := t
	for _, ts := range s.AccessTimestamps {
		sum += math.Pow(m.ageHours(ts, t), -d)
		if ts.Before(oldest) {
			oldest = ts
		}
	}
	if s.CompressedCount > 0 {
		sum += m.compressedContribution(m.ageHours(oldest, t), s.CompressedCount, s.CompressedAvgInterval/3600)
	}
	if sum <= 0 || math.IsNaN(sum) {
		return 0
	}
	return sum / (1 + sum)
}

// compressedContribution approximates Σ_{i=1..n} (a + i·k)^(-d).
func (m *StrengthModel) compressedContribution(a float64, n int, k float64) float64 {
	d := m.cfg.ActivationDecay
	if k <= 0 {
		return float64(n) * math.Pow(a, -d)
	}
	if d == 1 {
		return (math.Log(a+(float64(n)+0.5)*k) - math.Log(a+0.5*k)) / k
	}
	upper := math.Pow(a+(float64(n)+0.5)*k, 1-d)
	lower := math.Pow(a+0.5*k, 1-d)
	return (upper - lower) / ((1 - d) * k)
}

func (m *StrengthModel) ageHours(ts, t time.Time) float64 {
	h := t.Sub(ts).Hours()
	if h < m.cfg.MinAgeHours {
		return m.cfg.MinAgeHours
	}
	return h
}

// Retrievability returns the forgetting-curve value at t, decaying from the
// last computed snapshot according to stability.
func (m *StrengthModel) Retrievability(s Strength, t time.Time) float64 {
	if s.LastComputedAt.IsZero() {
		return clamp(s.LastRetrievability, 0, 1)
	}
	elapsed := t.Sub(s.LastComputedAt).Hours() / 24
	if elapsed <= 0 {
		return clamp(s.LastRetrievability, 0, 1)
	}
	stability := s.Stability
	if stability <= 0 {
		stability = 0.1
	}
	curve := math.Pow(1+m.cfg.ForgettingFactor*elapsed/stability, m.cfg.ForgettingDecay)
	return clamp(s.LastRetrievability*curve, 0, 1)
}

// RecordAccess registers an access at t and returns the updated snapshot.
// Stability grows more when retrievability had dropped (spacing effect) and
// for easier items, and proportionally less as stability grows.
func (m *StrengthModel) RecordAccess(s Strength, t time.Time) Strength {
	r := m.Retrievability(s, t)
	stability := s.Stability
	if stability <= 0 {
		stability = 0.1
	}
	difficulty := s.Difficulty
	if difficulty <= 0 {
		difficulty = m.cfg.InitialDifficulty
	}
	gain := m.cfg.StabilityGrowth *
		((11 - difficulty) / 6) *
		math.Pow(stability, -m.cfg.StabilityDamping) *
		(math.Exp((1-r)*m.cfg.SpacingGain) - 1 + m.cfg.MinGain)

	out := s
	out.Stability = stability * (1 + math.Max(gain, 0))
	out.Difficulty = difficulty
	out.AccessCount = s.AccessCount + 1
	out.AccessTimestamps = append(append([]time.Time(nil), s.AccessTimestamps...), t)
	out = m.compress(out)
	out.LastRetrievability = 1
	out.LastComputedAt = t
	out.LastActivation = m.BaseLevel(out, t)
	return out
}

// compress folds the oldest timestamps beyond the cap into the running
// compressed count and average inter-access interval.
func (m *StrengthModel) compress(s Strength) Strength {
	limit := m.cfg.MaxAccessTimestamps
	if limit <= 0 || len(s.AccessTimestamps) <= limit {
		return s
	}
	ts := s.AccessTimestamps
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })

	fold := len(ts) - limit
	var intervals float64
	for i := 0; i < fold; i++ {
		intervals += ts[i+1].Sub(ts[i]).Seconds()
	}
	total := s.CompressedCount + fold
	s.CompressedAvgInterval = (s.CompressedAvgInterval*float64(s.CompressedCount) + intervals) / float64(total)
	s.CompressedCount = total
	s.AccessTimestamps = append([]time.Time(nil), ts[fold:]...)
	return s
}
