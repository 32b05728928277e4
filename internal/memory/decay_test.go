package memory

import (
	"math"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestInitialStrength(t *testing.T) {
	m := NewStrengthModel(StrengthConfig{})
	s := m.Initial(2.5, t0)
	if s.AccessCount != 1 || len(s.AccessTimestamps) != 1 {
		t.Fatalf("access = %d / %d, want 1 / 1", s.AccessCount, len(s.AccessTimestamps))
	}
	if s.Stability != 2.5 || s.Difficulty != 5 {
		t.Errorf("stability/difficulty = %v/%v", s.Stability, s.Difficulty)
	}
	if s.LastRetrievability != 1 {
		t.Errorf("retrievability = %v, want 1", s.LastRetrievability)
	}
	if s.LastActivation <= 0 || s.LastActivation >= 1 {
		t.Errorf("activation = %v, want in (0,1)", s.LastActivation)
	}
}

func TestRetrievabilityDecays(t *testing.T) {
	m := NewStrengthModel(StrengthConfig{})
	s := m.Initial(1, t0)

	if got := m.Retrievability(s, t0); got != 1 {
		t.Errorf("R(t0) = %v, want 1", got)
	}
	prev := 1.0
	for _, days := range []int{1, 7, 30, 365} {
		r := m.Retrievability(s, t0.Add(time.Duration(days)*24*time.Hour))
		if r >= prev || r <= 0 {
			t.Errorf("R(%dd) = %v, want in (0, %v)", days, r, prev)
		}
		prev = r
	}
	// FSRS: one stability unit of elapsed days gives (1+19/81)^-0.5.
	want := math.Pow(1+19.0/81.0, -0.5)
	if got := m.Retrievability(s, t0.Add(24*time.Hour)); math.Abs(got-want) > 1e-9 {
		t.Errorf("R(1d) = %v, want %v", got, want)
	}
}

func TestRetrievabilitySlowerWithHigherStability(t *testing.T) {
	m := NewStrengthModel(StrengthConfig{})
	later := t0.Add(10 * 24 * time.Hour)
	weak := m.Retrievability(m.Initial(1, t0), later)
	strong := m.Retrievability(m.Initial(10, t0), later)
	if strong <= weak {
		t.Errorf("strong %v should exceed weak %v", strong, weak)
	}
}

func TestRecordAccess(t *testing.T) {
	m := NewStrengthModel(StrengthConfig{})
	s := m.Initial(1, t0)
	at := t0.Add(48 * time.Hour)
	out := m.RecordAccess(s, at)

	if out.AccessCount != 2 || len(out.AccessTimestamps) != 2 {
		t.Fatalf("access = %d / %d", out.AccessCount, len(out.AccessTimestamps))
	}
	if out.Stability <= s.Stability {
		t.Errorf("stability %v did not grow from %v", out.Stability, s.Stability)
	}
	if out.LastRetrievability != 1 || !out.LastComputedAt.Equal(at) {
		t.Errorf("snapshot = %v at %v", out.LastRetrievability, out.LastComputedAt)
	}
	if len(s.AccessTimestamps) != 1 {
		t.Error("RecordAccess mutated its input")
	}
}

func TestSpacingEffect(t *testing.T) {
	m := NewStrengthModel(StrengthConfig{})
	s := m.Initial(1, t0)
	massed := m.RecordAccess(s, t0.Add(time.Minute))
	spaced := m.RecordAccess(s, t0.Add(20*24*time.Hour))
	if spaced.Stability <= massed.Stability {
		t.Errorf("spaced stability %v should exceed massed %v", spaced.Stability, massed.Stability)
	}
}

func TestBaseLevelRisesWithAccesses(t *testing.T) {
	m := NewStrengthModel(StrengthConfig{})
	s := m.Initial(1, t0)
	before := m.BaseLevel(s, t0.Add(time.Hour))
	s = m.RecordAccess(s, t0.Add(30*time.Minute))
	after := m.BaseLevel(s, t0.Add(time.Hour))
	if after <= before {
		t.Errorf("base level %v did not rise from %v", after, before)
	}
	if after >= 1 {
		t.Errorf("base level %v escaped [0,1)", after)
	}
	if old := m.BaseLevel(s, t0.Add(365*24*time.Hour)); old >= after {
		t.Errorf("base level %v should decay below %v", old, after)
	}
}

func TestCompressionKeepsCap(t *testing.T) {
	m := NewStrengthModel(StrengthConfig{})
	s := m.Initial(1, t0)
	at := t0
	for i := 0; i < 60; i++ {
		at = at.Add(time.Hour)
		s = m.RecordAccess(s, at)
	}
	if s.AccessCount != 61 {
		t.Errorf("access count = %d, want 61", s.AccessCount)
	}
	if len(s.AccessTimestamps) != 50 {
		t.Errorf("timestamps = %d, want 50", len(s.AccessTimestamps))
	}
	if s.CompressedCount != 11 {
		t.Errorf("compressed = %d, want 11", s.CompressedCount)
	}
	if math.Abs(s.CompressedAvgInterval-3600) > 1e-6 {
		t.Errorf("avg interval = %v, want 3600", s.CompressedAvgInterval)
	}
	bl := m.BaseLevel(s, at)
	if bl <= 0 || bl >= 1 {
		t.Errorf("base level = %v", bl)
	}
}

func TestDifficultyFor(t *testing.T) {
	m := NewStrengthModel(StrengthConfig{})
	tests := []struct {
		salience float64
		want     float64
	}{
		{0.5, 5},
		{0.1, 2.6},
		{1.0, 8},
		{-5, 1},
		{5, 10},
	}
	for _, tt := range tests {
		if got := m.DifficultyFor(tt.salience); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("DifficultyFor(%v) = %v, want %v", tt.salience, got, tt.want)
		}
	}
}

func TestLowSalienceGainsMoreStability(t *testing.T) {
	m := NewStrengthModel(StrengthConfig{})
	at := t0.Add(48 * time.Hour)

	low := m.Initial(2, t0)
	low.Difficulty = m.DifficultyFor(0.2)
	high := m.Initial(2, t0)
	high.Difficulty = m.DifficultyFor(0.9)

	lowGain := m.RecordAccess(low, at).Stability / low.Stability
	highGain := m.RecordAccess(high, at).Stability / high.Stability
	if lowGain <= highGain {
		t.Errorf("low-salience growth %v should exceed high-salience growth %v", lowGain, highGain)
	}
}
