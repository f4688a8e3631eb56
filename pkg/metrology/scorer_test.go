package metrology

import "testing"

func mustScorer(t *testing.T, cfg ScorerConfig) *Scorer {
	t.Helper()
	s, err := NewScorer(cfg)
	if err != nil {
		t.Fatalf("NewScorer: %v", err)
	}
	return s
}

func TestScore_IdealConditions(t *testing.T) {
	s := mustScorer(t, DefaultScorerConfig())

	m := Measurement{
		DistanceCM: 30,
		Lighting:   80,
		Stability:  100,
	}
	if got := s.Score(m); got != 100 {
		t.Errorf("ideal conditions: got %d, want 100", got)
	}
}

func TestScore_NearDistancePenalty(t *testing.T) {
	cfg := DefaultScorerConfig()
	cfg.MinDistanceCM = 20
	cfg.NearPenaltyPerCM = 5
	s := mustScorer(t, cfg)

	// 10cm below the minimum at 5 points/cm: penalty 50.
	m := Measurement{
		DistanceCM: 10,
		Lighting:   80,
		Stability:  100,
	}
	if got := s.Score(m); got != 50 {
		t.Errorf("near penalty: got %d, want 50", got)
	}
}

func TestScore_AsymmetricDistancePenalty(t *testing.T) {
	s := mustScorer(t, DefaultScorerConfig())

	near := Measurement{DistanceCM: 15, Lighting: 80, Stability: 100}
	far := Measurement{DistanceCM: 55, Lighting: 80, Stability: 100}

	// Both are 5cm outside their bound; too-close must score worse.
	if s.Score(near) >= s.Score(far) {
		t.Errorf("near %d should score below far %d", s.Score(near), s.Score(far))
	}
}

func TestScore_StabilityDeficit(t *testing.T) {
	s := mustScorer(t, DefaultScorerConfig())

	m := Measurement{
		DistanceCM: 30,
		Lighting:   80,
		Stability:  0,
	}
	// Deficit 100 at factor 0.3: penalty 30.
	if got := s.Score(m); got != 70 {
		t.Errorf("stability deficit: got %d, want 70", got)
	}
}

func TestScore_BoundedForExtremeInputs(t *testing.T) {
	s := mustScorer(t, DefaultScorerConfig())

	extremes := []Measurement{
		{},
		{DistanceCM: 0, Lighting: 0, RollDeg: 180, Yaw: 1, Pitch: 5, Stability: 0},
		{DistanceCM: 1e6, Lighting: 100, Stability: 100},
		{DistanceCM: -50, Lighting: -10, RollDeg: -720, Yaw: -1, Pitch: -5, Stability: -10},
		{DistanceCM: 30, Lighting: 1e9, Stability: 1e9},
	}
	for i, m := range extremes {
		got := s.Score(m)
		if got < 0 || got > 100 {
			t.Errorf("extreme %d: score %d outside [0,100]", i, got)
		}
	}
}

func TestScore_Deterministic(t *testing.T) {
	s := mustScorer(t, DefaultScorerConfig())
	m := Measurement{DistanceCM: 26.5, Lighting: 55, RollDeg: 1.3, Yaw: 0.02, Pitch: -0.04, Stability: 88}
	first := s.Score(m)
	for i := 0; i < 10; i++ {
		if got := s.Score(m); got != first {
			t.Fatalf("score changed between calls: %d != %d", got, first)
		}
	}
}

func TestScorerConfig_Validation(t *testing.T) {
	cfg := DefaultScorerConfig()
	cfg.MinDistanceCM = 60
	if _, err := NewScorer(cfg); err == nil {
		t.Error("expected error for min distance above max")
	}

	cfg = DefaultScorerConfig()
	cfg.IdealDistanceCM = 5
	if _, err := NewScorer(cfg); err == nil {
		t.Error("expected error for ideal distance outside range")
	}
}
