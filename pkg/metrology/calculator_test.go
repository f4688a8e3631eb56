package metrology

import (
	"errors"
	"math"
	"testing"

	"github.com/optiscope/go-pdmeter/pkg/landmarks"
)

const floatTolerance = 1e-9

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

// testFrame builds a synthetic frame which, rendered at 1280x720,
// yields an iris diameter of 46.8px and iris centers 252px apart:
// mm-per-pixel 0.25 and therefore an IPD of exactly 63.0mm.
func testFrame() *landmarks.Frame {
	pts := make([]landmarks.Point3, landmarks.MinLandmarks)
	for i := range pts {
		pts[i] = landmarks.Point3{X: 0.5, Y: 0.5}
	}
	set := func(idx int, x, y float64) {
		pts[idx] = landmarks.Point3{X: x, Y: y}
	}

	const (
		halfDiam = 23.4 / 1280 // half iris diameter, normalized
		rightCX  = 0.4
		leftCX   = 0.4 + 252.0/1280
	)

	set(landmarks.RightIrisCenter, rightCX, 0.5)
	set(landmarks.RightIrisRight, rightCX+halfDiam, 0.5)
	set(landmarks.RightIrisLeft, rightCX-halfDiam, 0.5)
	set(landmarks.LeftIrisCenter, leftCX, 0.5)
	set(landmarks.LeftIrisRight, leftCX+halfDiam, 0.5)
	set(landmarks.LeftIrisLeft, leftCX-halfDiam, 0.5)
	set(landmarks.NoseBridge, (rightCX+leftCX)/2, 0.5)

	set(landmarks.NoseTip, 0.5, 0.55)
	set(landmarks.Forehead, 0.5, 0.3)
	set(landmarks.Chin, 0.5, 0.75)
	set(landmarks.RightCheek, 0.3, 0.55)
	set(landmarks.LeftCheek, 0.7, 0.55)

	set(landmarks.RightEyeOuter, 0.37, 0.5)
	set(landmarks.RightEyeInner, 0.43, 0.5)
	set(landmarks.RightEyeUpper, 0.4, 0.49)
	set(landmarks.RightEyeLower, 0.4, 0.51)
	set(landmarks.LeftEyeInner, 0.57, 0.5)
	set(landmarks.LeftEyeOuter, 0.63, 0.5)
	set(landmarks.LeftEyeUpper, 0.6, 0.49)
	set(landmarks.LeftEyeLower, 0.6, 0.51)

	return &landmarks.Frame{Points: pts}
}

func mustCalculator(t *testing.T) *Calculator {
	t.Helper()
	calc, err := NewCalculator(DefaultCalculatorConfig())
	if err != nil {
		t.Fatalf("NewCalculator: %v", err)
	}
	return calc
}

func TestMeasure_CalibratedIPD(t *testing.T) {
	calc := mustCalculator(t)

	m, err := calc.Measure(testFrame(), 1280, 720, 80)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}

	if math.Abs(m.IPDMM-63.0) > 0.1 {
		t.Errorf("IPD: got %.4f mm, want 63.0 ± 0.1", m.IPDMM)
	}

	// Pinhole distance: (11.7 * 1280*0.85) / (46.8 * 10) = 27.2cm
	if math.Abs(m.DistanceCM-27.2) > 0.1 {
		t.Errorf("distance: got %.4f cm, want 27.2 ± 0.1", m.DistanceCM)
	}

	if m.Lighting != 80 {
		t.Errorf("lighting passthrough: got %v, want 80", m.Lighting)
	}
}

func TestMeasure_NeutralPose(t *testing.T) {
	calc := mustCalculator(t)

	m, err := calc.Measure(testFrame(), 1280, 720, 80)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}

	if math.Abs(m.RollDeg) > 0.01 {
		t.Errorf("roll: got %.4f, want ~0", m.RollDeg)
	}
	if math.Abs(m.Yaw) > 0.001 {
		t.Errorf("yaw: got %.4f, want ~0", m.Yaw)
	}
	if math.Abs(m.Pitch) > 0.001 {
		t.Errorf("pitch (2D fallback): got %.4f, want ~0", m.Pitch)
	}
	if !floatEquals(m.FaceY, 0.55) {
		t.Errorf("faceY: got %v, want 0.55", m.FaceY)
	}
}

func TestMeasure_ProjectionInvariant(t *testing.T) {
	calc := mustCalculator(t)

	// Move the nose bridge around; as long as its projection lands on
	// the iris-to-iris segment, the monocular split must sum exactly
	// to the total.
	for _, bridgeX := range []float64{0.42, 0.45, 0.5, 0.55, 0.58} {
		f := testFrame()
		f.Points[landmarks.NoseBridge] = landmarks.Point3{X: bridgeX, Y: 0.52}

		m, err := calc.Measure(f, 1280, 720, 80)
		if err != nil {
			t.Fatalf("Measure(bridge=%.2f): %v", bridgeX, err)
		}
		if math.Abs(m.LeftPDMM+m.RightPDMM-m.IPDMM) > 1e-6 {
			t.Errorf("bridge=%.2f: leftPd %.6f + rightPd %.6f != ipd %.6f",
				bridgeX, m.LeftPDMM, m.RightPDMM, m.IPDMM)
		}
	}
}

func TestMeasure_TiltedEyeLine(t *testing.T) {
	calc := mustCalculator(t)

	// Drop the left eye by 20px at 720p; roll should be positive and
	// the projection invariant must still hold on the slanted segment.
	f := testFrame()
	p := f.Points[landmarks.LeftIrisCenter]
	f.Points[landmarks.LeftIrisCenter] = landmarks.Point3{X: p.X, Y: p.Y + 20.0/720}

	m, err := calc.Measure(f, 1280, 720, 80)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if m.RollDeg <= 0 {
		t.Errorf("roll: got %.4f, want positive for lowered left eye", m.RollDeg)
	}
	if math.Abs(m.LeftPDMM+m.RightPDMM-m.IPDMM) > 1e-6 {
		t.Errorf("projection invariant violated on tilted segment")
	}
}

func TestMeasure_DegenerateIrisPair(t *testing.T) {
	calc := mustCalculator(t)

	// Coincident iris centers: the projection parameter defaults to
	// 0.5 and measurement proceeds without error.
	f := testFrame()
	f.Points[landmarks.LeftIrisCenter] = f.Points[landmarks.RightIrisCenter]

	m, err := calc.Measure(f, 1280, 720, 80)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if !floatEquals(m.IPDMM, 0) {
		t.Errorf("degenerate ipd: got %v, want 0", m.IPDMM)
	}
	if !floatEquals(m.LeftPDMM, m.RightPDMM) {
		t.Errorf("degenerate split: left %v != right %v", m.LeftPDMM, m.RightPDMM)
	}
}

func TestMeasure_PitchWithDepth(t *testing.T) {
	calc := mustCalculator(t)

	f := testFrame()
	f.HasDepth = true
	f.Points[landmarks.Forehead] = landmarks.Point3{X: 0.5, Y: 0.3, Z: -0.05}
	f.Points[landmarks.Chin] = landmarks.Point3{X: 0.5, Y: 0.75, Z: 0.04}

	m, err := calc.Measure(f, 1280, 720, 80)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}

	// (foreheadZ - chinZ) / faceHeight = (-0.05 - 0.04) / 0.45 = -0.2
	if math.Abs(m.Pitch-(-0.2)) > 1e-6 {
		t.Errorf("pitch with depth: got %.4f, want -0.2", m.Pitch)
	}
}

func TestMeasure_YawAsymmetry(t *testing.T) {
	calc := mustCalculator(t)

	// Nose tip pushed toward the subject's right cheek.
	f := testFrame()
	f.Points[landmarks.NoseTip] = landmarks.Point3{X: 0.42, Y: 0.55}

	m, err := calc.Measure(f, 1280, 720, 80)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if m.Yaw <= 0 {
		t.Errorf("yaw: got %.4f, want positive when nose is nearer the right cheek", m.Yaw)
	}
	if m.Yaw < -1 || m.Yaw > 1 {
		t.Errorf("yaw: %v outside [-1,1]", m.Yaw)
	}
}

func TestMeasure_ShortFrameRejected(t *testing.T) {
	calc := mustCalculator(t)

	f := &landmarks.Frame{Points: make([]landmarks.Point3, 400)}
	_, err := calc.Measure(f, 1280, 720, 80)
	if !errors.Is(err, landmarks.ErrInvalidFrame) {
		t.Fatalf("expected ErrInvalidFrame, got %v", err)
	}
}

func TestNewCalculator_RejectsBadCalibration(t *testing.T) {
	if _, err := NewCalculator(CalculatorConfig{IrisDiameterMM: 0, FocalLengthFactor: 0.85}); err == nil {
		t.Error("expected error for zero iris diameter")
	}
	if _, err := NewCalculator(CalculatorConfig{IrisDiameterMM: 11.7, FocalLengthFactor: -1}); err == nil {
		t.Error("expected error for negative focal factor")
	}
}

func TestEyeOpenRatios(t *testing.T) {
	f := testFrame()

	right, left, err := EyeOpenRatios(f, 1280, 720)
	if err != nil {
		t.Fatalf("EyeOpenRatios: %v", err)
	}

	// Aperture 0.02*720 px over width 0.06*1280 px = 0.1875 per eye.
	want := (0.02 * 720) / (0.06 * 1280)
	if math.Abs(right-want) > 1e-6 {
		t.Errorf("right ratio: got %.4f, want %.4f", right, want)
	}
	if math.Abs(left-want) > 1e-6 {
		t.Errorf("left ratio: got %.4f, want %.4f", left, want)
	}

	// Close the right eye: lids collapse onto the eye line.
	f.Points[landmarks.RightEyeUpper] = landmarks.Point3{X: 0.4, Y: 0.5}
	f.Points[landmarks.RightEyeLower] = landmarks.Point3{X: 0.4, Y: 0.5}
	right, left, err = EyeOpenRatios(f, 1280, 720)
	if err != nil {
		t.Fatalf("EyeOpenRatios: %v", err)
	}
	if right != 0 {
		t.Errorf("closed right eye: got %v, want 0", right)
	}
	if left == 0 {
		t.Error("left eye should remain open")
	}
}
