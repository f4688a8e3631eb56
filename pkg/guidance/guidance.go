// Package guidance classifies how far the current head pose and capture
// conditions deviate from the required capture envelope. Each axis is
// evaluated independently; the aggregate "hold" flag is true only when
// every axis is satisfied.
package guidance

import (
	"fmt"
	"math"

	"github.com/optiscope/go-pdmeter/pkg/metrology"
)

// Status is one axis's classification. Pose axes name the correction
// the user should make; the distance axis names the deviation.
type Status string

const (
	OK Status = "ok"

	PitchUp   Status = "up"
	PitchDown Status = "down"

	YawLeft  Status = "left"
	YawRight Status = "right"

	RollCW  Status = "cw"
	RollCCW Status = "ccw"

	DistanceNear Status = "near"
	DistanceFar  Status = "far"

	CenterAdjust Status = "adjust"

	EyesOpen Status = "open"

	GlassesDetected Status = "detected"

	LightingBad Status = "bad"

	StabilityUnstable Status = "unstable"
)

// State is the per-tick guidance classification. It is recomputed every
// tick and never persisted.
type State struct {
	Pitch     Status `json:"pitch"`
	Yaw       Status `json:"yaw"`
	Roll      Status `json:"roll"`
	Distance  Status `json:"distance"`
	Center    Status `json:"center"`
	Eyes      Status `json:"eyes"`
	Glasses   Status `json:"glasses"`
	Lighting  Status `json:"lighting"`
	Stability Status `json:"stability"`

	// Hold is true iff every axis is OK.
	Hold bool `json:"hold"`
}

// Flags carries the derived booleans that accompany a measurement into
// evaluation.
type Flags struct {
	LeftEyeOpen     bool
	RightEyeOpen    bool
	Glare           bool
	GlassesDetected bool
}

// Thresholds is the capture envelope. All fields are required; there
// are no hidden defaults beyond DefaultThresholds.
type Thresholds struct {
	RollDeg         float64 // |roll| must stay below this
	Yaw             float64 // |yaw| must stay below this
	PitchMin        float64
	PitchMax        float64
	CenterTolerance float64 // |faceY - 0.5| must stay below this
	MinDistanceCM   float64
	MaxDistanceCM   float64
	LightingFloor   float64
	StabilityFloor  float64
}

// DefaultThresholds returns the standard capture envelope.
func DefaultThresholds() Thresholds {
	return Thresholds{
		RollDeg:         2.5,
		Yaw:             0.05,
		PitchMin:        -0.10,
		PitchMax:        0.10,
		CenterTolerance: 0.15,
		MinDistanceCM:   20,
		MaxDistanceCM:   50,
		LightingFloor:   40,
		StabilityFloor:  60,
	}
}

// Validate fails fast on an inconsistent envelope.
func (t Thresholds) Validate() error {
	if t.MinDistanceCM >= t.MaxDistanceCM {
		return fmt.Errorf("guidance: min distance %.1f >= max distance %.1f", t.MinDistanceCM, t.MaxDistanceCM)
	}
	if t.PitchMin >= t.PitchMax {
		return fmt.Errorf("guidance: pitch range [%.2f, %.2f] is empty", t.PitchMin, t.PitchMax)
	}
	if t.RollDeg <= 0 || t.Yaw <= 0 || t.CenterTolerance <= 0 {
		return fmt.Errorf("guidance: roll/yaw/center tolerances must be positive")
	}
	return nil
}

// Evaluate classifies the measurement against the envelope. It is a
// pure function: identical inputs always yield an identical State.
func Evaluate(m metrology.Measurement, flags Flags, t Thresholds) State {
	s := State{
		Pitch:     OK,
		Yaw:       OK,
		Roll:      OK,
		Distance:  OK,
		Center:    OK,
		Eyes:      OK,
		Glasses:   OK,
		Lighting:  OK,
		Stability: OK,
	}

	switch {
	case m.Pitch > t.PitchMax:
		s.Pitch = PitchDown
	case m.Pitch < t.PitchMin:
		s.Pitch = PitchUp
	}

	if math.Abs(m.Yaw) > t.Yaw {
		if m.Yaw > 0 {
			s.Yaw = YawRight
		} else {
			s.Yaw = YawLeft
		}
	}

	if math.Abs(m.RollDeg) > t.RollDeg {
		if m.RollDeg > 0 {
			s.Roll = RollCCW
		} else {
			s.Roll = RollCW
		}
	}

	switch {
	case m.DistanceCM < t.MinDistanceCM:
		s.Distance = DistanceNear
	case m.DistanceCM > t.MaxDistanceCM:
		s.Distance = DistanceFar
	}

	if math.Abs(m.FaceY-0.5) >= t.CenterTolerance {
		s.Center = CenterAdjust
	}

	if !flags.LeftEyeOpen || !flags.RightEyeOpen {
		s.Eyes = EyesOpen
	}

	if flags.GlassesDetected || flags.Glare {
		s.Glasses = GlassesDetected
	}

	if m.Lighting < t.LightingFloor {
		s.Lighting = LightingBad
	}

	if m.Stability < t.StabilityFloor {
		s.Stability = StabilityUnstable
	}

	s.Hold = s.Pitch == OK && s.Yaw == OK && s.Roll == OK &&
		s.Distance == OK && s.Center == OK && s.Eyes == OK &&
		s.Glasses == OK && s.Lighting == OK && s.Stability == OK

	return s
}
