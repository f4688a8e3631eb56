package guidance

import (
	"testing"

	"github.com/optiscope/go-pdmeter/pkg/metrology"
)

// goodMeasurement sits comfortably inside the default capture envelope.
func goodMeasurement() metrology.Measurement {
	return metrology.Measurement{
		IPDMM:      63,
		DistanceCM: 30,
		Lighting:   80,
		FaceY:      0.5,
		Stability:  95,
	}
}

func openEyes() Flags {
	return Flags{LeftEyeOpen: true, RightEyeOpen: true}
}

func TestEvaluate_AllAxesOK(t *testing.T) {
	s := Evaluate(goodMeasurement(), openEyes(), DefaultThresholds())

	if !s.Hold {
		t.Fatalf("expected hold, got %+v", s)
	}
	for name, status := range map[string]Status{
		"pitch": s.Pitch, "yaw": s.Yaw, "roll": s.Roll,
		"distance": s.Distance, "center": s.Center, "eyes": s.Eyes,
		"glasses": s.Glasses, "lighting": s.Lighting, "stability": s.Stability,
	} {
		if status != OK {
			t.Errorf("%s: got %q, want ok", name, status)
		}
	}
}

func TestEvaluate_SingleAxisBreaksHold(t *testing.T) {
	th := DefaultThresholds()

	cases := []struct {
		name   string
		mutate func(*metrology.Measurement, *Flags)
		check  func(State) bool
	}{
		{"pitch up", func(m *metrology.Measurement, f *Flags) { m.Pitch = -0.2 },
			func(s State) bool { return s.Pitch == PitchUp }},
		{"pitch down", func(m *metrology.Measurement, f *Flags) { m.Pitch = 0.2 },
			func(s State) bool { return s.Pitch == PitchDown }},
		{"yaw right", func(m *metrology.Measurement, f *Flags) { m.Yaw = 0.1 },
			func(s State) bool { return s.Yaw == YawRight }},
		{"yaw left", func(m *metrology.Measurement, f *Flags) { m.Yaw = -0.1 },
			func(s State) bool { return s.Yaw == YawLeft }},
		{"roll ccw", func(m *metrology.Measurement, f *Flags) { m.RollDeg = 5 },
			func(s State) bool { return s.Roll == RollCCW }},
		{"roll cw", func(m *metrology.Measurement, f *Flags) { m.RollDeg = -5 },
			func(s State) bool { return s.Roll == RollCW }},
		{"too near", func(m *metrology.Measurement, f *Flags) { m.DistanceCM = 15 },
			func(s State) bool { return s.Distance == DistanceNear }},
		{"too far", func(m *metrology.Measurement, f *Flags) { m.DistanceCM = 60 },
			func(s State) bool { return s.Distance == DistanceFar }},
		{"off center", func(m *metrology.Measurement, f *Flags) { m.FaceY = 0.8 },
			func(s State) bool { return s.Center == CenterAdjust }},
		{"eye closed", func(m *metrology.Measurement, f *Flags) { f.LeftEyeOpen = false },
			func(s State) bool { return s.Eyes == EyesOpen }},
		{"glare", func(m *metrology.Measurement, f *Flags) { f.Glare = true },
			func(s State) bool { return s.Glasses == GlassesDetected }},
		{"glasses", func(m *metrology.Measurement, f *Flags) { f.GlassesDetected = true },
			func(s State) bool { return s.Glasses == GlassesDetected }},
		{"dark", func(m *metrology.Measurement, f *Flags) { m.Lighting = 20 },
			func(s State) bool { return s.Lighting == LightingBad }},
		{"jittery", func(m *metrology.Measurement, f *Flags) { m.Stability = 30 },
			func(s State) bool { return s.Stability == StabilityUnstable }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := goodMeasurement()
			f := openEyes()
			tc.mutate(&m, &f)

			s := Evaluate(m, f, th)
			if s.Hold {
				t.Error("hold should break")
			}
			if !tc.check(s) {
				t.Errorf("axis not classified: %+v", s)
			}
		})
	}
}

func TestEvaluate_BoundaryValues(t *testing.T) {
	th := DefaultThresholds()

	// Exactly at a threshold stays OK for pose axes (strict compare).
	m := goodMeasurement()
	m.RollDeg = th.RollDeg
	m.Yaw = th.Yaw
	m.Pitch = th.PitchMax
	s := Evaluate(m, openEyes(), th)
	if s.Roll != OK || s.Yaw != OK || s.Pitch != OK {
		t.Errorf("at-threshold pose should be ok: %+v", s)
	}

	// Center tolerance is exclusive.
	m = goodMeasurement()
	m.FaceY = 0.5 + th.CenterTolerance
	if s := Evaluate(m, openEyes(), th); s.Center != CenterAdjust {
		t.Errorf("faceY at tolerance edge should need adjustment: %+v", s)
	}
}

func TestEvaluate_Pure(t *testing.T) {
	m := goodMeasurement()
	m.Yaw = 0.07
	m.Lighting = 35
	f := Flags{LeftEyeOpen: true}
	th := DefaultThresholds()

	first := Evaluate(m, f, th)
	for i := 0; i < 5; i++ {
		if got := Evaluate(m, f, th); got != first {
			t.Fatalf("evaluation not pure: %+v != %+v", got, first)
		}
	}
}

func TestThresholds_Validation(t *testing.T) {
	th := DefaultThresholds()
	th.MinDistanceCM = 60
	if err := th.Validate(); err == nil {
		t.Error("expected error for min distance above max")
	}

	th = DefaultThresholds()
	th.PitchMin = 0.2
	if err := th.Validate(); err == nil {
		t.Error("expected error for empty pitch range")
	}
}
