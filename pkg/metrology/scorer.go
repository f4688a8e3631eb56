package metrology

import (
	"fmt"
	"math"
)

// ScorerConfig holds the penalty coefficients for the confidence score.
// All distances are centimeters.
type ScorerConfig struct {
	IdealDistanceCM float64
	MinDistanceCM   float64
	MaxDistanceCM   float64

	// Too-close is penalized harder than too-far: a face filling the
	// frame distorts the iris measurement more than a distant one.
	NearPenaltyPerCM  float64
	FarPenaltyPerCM   float64
	IdealDevPenaltyCM float64 // deviation from ideal while in range

	LightingFloor        float64
	LightingPenaltyPerPt float64

	RollPenaltyPerDeg float64
	YawPenalty        float64 // per unit of |yaw| (yaw is -1..1)
	PitchPenalty      float64 // per unit of |pitch|

	StabilityPenaltyFactor float64 // per point of stability deficit
}

// DefaultScorerConfig returns the standard coefficients.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		IdealDistanceCM:        30,
		MinDistanceCM:          20,
		MaxDistanceCM:          50,
		NearPenaltyPerCM:       5,
		FarPenaltyPerCM:        2,
		IdealDevPenaltyCM:      0.5,
		LightingFloor:          40,
		LightingPenaltyPerPt:   1,
		RollPenaltyPerDeg:      2,
		YawPenalty:             50,
		PitchPenalty:           50,
		StabilityPenaltyFactor: 0.3,
	}
}

// Validate fails fast on inconsistent bounds.
func (c ScorerConfig) Validate() error {
	if c.MinDistanceCM >= c.MaxDistanceCM {
		return fmt.Errorf("metrology: min distance %.1f >= max distance %.1f", c.MinDistanceCM, c.MaxDistanceCM)
	}
	if c.IdealDistanceCM < c.MinDistanceCM || c.IdealDistanceCM > c.MaxDistanceCM {
		return fmt.Errorf("metrology: ideal distance %.1f outside [%.1f, %.1f]",
			c.IdealDistanceCM, c.MinDistanceCM, c.MaxDistanceCM)
	}
	return nil
}

// Scorer computes the 0-100 confidence score for a measurement. It is
// deterministic and side-effect-free.
type Scorer struct {
	cfg ScorerConfig
}

// NewScorer builds a Scorer, validating the coefficients.
func NewScorer(cfg ScorerConfig) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{cfg: cfg}, nil
}

// Score returns the accuracy for the measurement's distance, lighting,
// pose and stability. The result is clamped to [0,100] and rounded.
func (s *Scorer) Score(m Measurement) int {
	c := s.cfg
	penalty := 0.0

	switch {
	case m.DistanceCM < c.MinDistanceCM:
		penalty += (c.MinDistanceCM - m.DistanceCM) * c.NearPenaltyPerCM
	case m.DistanceCM > c.MaxDistanceCM:
		penalty += (m.DistanceCM - c.MaxDistanceCM) * c.FarPenaltyPerCM
	default:
		penalty += math.Abs(m.DistanceCM-c.IdealDistanceCM) * c.IdealDevPenaltyCM
	}

	if m.Lighting < c.LightingFloor {
		penalty += (c.LightingFloor - m.Lighting) * c.LightingPenaltyPerPt
	}

	penalty += math.Abs(m.RollDeg) * c.RollPenaltyPerDeg
	penalty += math.Abs(m.Yaw) * c.YawPenalty
	penalty += math.Abs(m.Pitch) * c.PitchPenalty

	deficit := 100 - m.Stability
	if deficit > 0 {
		penalty += deficit * c.StabilityPenaltyFactor
	}

	score := 100 - penalty
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return int(math.Round(score))
}
