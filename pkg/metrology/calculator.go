package metrology

import (
	"fmt"
	"math"

	"github.com/optiscope/go-pdmeter/pkg/landmarks"
)

// AvgIrisDiameterMM is the population-average human iris diameter.
// It is the sole physical scale anchor of the whole pipeline.
const AvgIrisDiameterMM = 11.7

// DefaultFocalLengthFactor approximates the focal length in pixels as a
// fraction of frame width. Empirical value for typical webcam optics.
const DefaultFocalLengthFactor = 0.85

// Pitch fallback constants for frames without depth. The nose tip sits
// at a fixed fraction of the forehead-to-chin span on a neutral face;
// deviation from that fraction approximates pitch.
const (
	pitchNeutralRatio  = 0.5556
	pitchFallbackScale = 2.0
)

// CalculatorConfig holds the calibration constants of the geometry stage.
type CalculatorConfig struct {
	IrisDiameterMM    float64
	FocalLengthFactor float64
}

// DefaultCalculatorConfig returns the standard calibration.
func DefaultCalculatorConfig() CalculatorConfig {
	return CalculatorConfig{
		IrisDiameterMM:    AvgIrisDiameterMM,
		FocalLengthFactor: DefaultFocalLengthFactor,
	}
}

// Validate fails fast on a non-physical calibration.
func (c CalculatorConfig) Validate() error {
	if c.IrisDiameterMM <= 0 {
		return fmt.Errorf("metrology: iris diameter must be positive, got %v", c.IrisDiameterMM)
	}
	if c.FocalLengthFactor <= 0 {
		return fmt.Errorf("metrology: focal length factor must be positive, got %v", c.FocalLengthFactor)
	}
	return nil
}

// Calculator converts a landmark frame into a raw per-frame Measurement.
// It is stateless; Accuracy and Stability are filled in by later stages.
type Calculator struct {
	cfg CalculatorConfig
}

// NewCalculator builds a Calculator, validating the calibration.
func NewCalculator(cfg CalculatorConfig) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{cfg: cfg}, nil
}

type pixelPoint struct {
	x, y float64
}

func pixelDist(a, b pixelPoint) float64 {
	dx := b.x - a.x
	dy := b.y - a.y
	return math.Sqrt(dx*dx + dy*dy)
}

// Measure computes the raw measurement for one frame. The lighting score
// comes from the environment assessor and is passed through unchanged.
//
// Any required landmark missing from the frame returns an error wrapping
// landmarks.ErrInvalidFrame; the caller must treat the tick as "no face"
// and emit no Measurement.
func (c *Calculator) Measure(f *landmarks.Frame, width, height int, lighting float64) (Measurement, error) {
	if err := f.Validate(); err != nil {
		return Measurement{}, err
	}
	if width <= 0 || height <= 0 {
		return Measurement{}, fmt.Errorf("%w: frame size %dx%d", landmarks.ErrInvalidFrame, width, height)
	}

	w := float64(width)
	h := float64(height)
	px := func(idx int) (pixelPoint, error) {
		p, err := f.Point(idx)
		if err != nil {
			return pixelPoint{}, err
		}
		return pixelPoint{x: p.X * w, y: p.Y * h}, nil
	}

	var pts [10]pixelPoint
	for i, idx := range [10]int{
		landmarks.RightIrisCenter, landmarks.RightIrisRight, landmarks.RightIrisLeft,
		landmarks.LeftIrisCenter, landmarks.LeftIrisRight, landmarks.LeftIrisLeft,
		landmarks.NoseBridge, landmarks.NoseTip,
		landmarks.RightCheek, landmarks.LeftCheek,
	} {
		p, err := px(idx)
		if err != nil {
			return Measurement{}, err
		}
		pts[i] = p
	}
	rightCenter, rightEdgeR, rightEdgeL := pts[0], pts[1], pts[2]
	leftCenter, leftEdgeR, leftEdgeL := pts[3], pts[4], pts[5]
	bridge, noseTip := pts[6], pts[7]
	rightCheek, leftCheek := pts[8], pts[9]

	// Iris diameters from the horizontal boundary pairs. The vertical
	// pair is frequently occluded by the eyelids.
	rightDiam := pixelDist(rightEdgeR, rightEdgeL)
	leftDiam := pixelDist(leftEdgeR, leftEdgeL)
	avgDiamPx := (rightDiam + leftDiam) / 2
	if avgDiamPx <= 0 {
		return Measurement{}, fmt.Errorf("%w: zero iris diameter", landmarks.ErrInvalidFrame)
	}

	mmPerPx := c.cfg.IrisDiameterMM / avgDiamPx

	ipdPx := pixelDist(leftCenter, rightCenter)
	ipdMM := ipdPx * mmPerPx

	// Pinhole camera distance. Focal length is approximated from frame
	// width; iris diameter supplies the physical scale.
	focalPx := w * c.cfg.FocalLengthFactor
	distanceCM := (c.cfg.IrisDiameterMM * focalPx) / (avgDiamPx * 10)

	// Monocular split: project the nose bridge onto the iris-to-iris
	// segment. By construction the two half distances sum exactly to
	// the full iris-to-iris distance when the projection lands on the
	// segment.
	lr := pixelPoint{x: rightCenter.x - leftCenter.x, y: rightCenter.y - leftCenter.y}
	lrLenSq := lr.x*lr.x + lr.y*lr.y
	t := 0.5 // degenerate iris pair: split evenly, not an error
	if lrLenSq > 0 {
		ln := pixelPoint{x: bridge.x - leftCenter.x, y: bridge.y - leftCenter.y}
		t = (ln.x*lr.x + ln.y*lr.y) / lrLenSq
	}
	projected := pixelPoint{x: leftCenter.x + t*lr.x, y: leftCenter.y + t*lr.y}
	leftPDMM := pixelDist(projected, leftCenter) * mmPerPx
	rightPDMM := pixelDist(projected, rightCenter) * mmPerPx

	// Roll: signed angle of the eye-to-eye line against horizontal.
	// Positive when the left eye sits lower in the image.
	rollDeg := math.Atan2(leftCenter.y-rightCenter.y, leftCenter.x-rightCenter.x) * 180 / math.Pi

	// Yaw: normalized asymmetry of the nose-to-cheek distances, in [-1,1].
	dLeft := pixelDist(noseTip, leftCheek)
	dRight := pixelDist(noseTip, rightCheek)
	yaw := 0.0
	if dLeft+dRight > 0 {
		yaw = (dLeft - dRight) / (dLeft + dRight)
	}

	pitch, err := c.pitch(f)
	if err != nil {
		return Measurement{}, err
	}

	tip, err := f.Point(landmarks.NoseTip)
	if err != nil {
		return Measurement{}, err
	}

	return Measurement{
		IPDMM:      ipdMM,
		LeftPDMM:   leftPDMM,
		RightPDMM:  rightPDMM,
		DistanceCM: distanceCM,
		Lighting:   lighting,
		RollDeg:    rollDeg,
		Yaw:        yaw,
		Pitch:      pitch,
		FaceY:      tip.Y,
	}, nil
}

// pitch estimates head pitch. With depth available it uses the relative
// depth difference between forehead and chin, normalized by face height.
// Without depth it falls back to a 2D nose-position ratio heuristic,
// which is a lower-fidelity estimate but still usable for guidance.
func (c *Calculator) pitch(f *landmarks.Frame) (float64, error) {
	forehead, err := f.Point(landmarks.Forehead)
	if err != nil {
		return 0, err
	}
	chin, err := f.Point(landmarks.Chin)
	if err != nil {
		return 0, err
	}

	faceHeight := math.Abs(chin.Y - forehead.Y)
	if faceHeight == 0 {
		return 0, nil
	}

	if f.HasDepth {
		// Positive pitch = head tilted up (chin toward the camera).
		return (forehead.Z - chin.Z) / faceHeight, nil
	}

	tip, err := f.Point(landmarks.NoseTip)
	if err != nil {
		return 0, err
	}
	ratio := (tip.Y - forehead.Y) / (chin.Y - forehead.Y)
	return (pitchNeutralRatio - ratio) * pitchFallbackScale, nil
}

// EyeOpenRatios reports lid aperture relative to eye width for each eye.
// Values around 0.25-0.35 indicate open eyes; below ~0.15 the eye is
// closing or closed.
func EyeOpenRatios(f *landmarks.Frame, width, height int) (right, left float64, err error) {
	w := float64(width)
	h := float64(height)
	px := func(idx int) (pixelPoint, error) {
		p, perr := f.Point(idx)
		if perr != nil {
			return pixelPoint{}, perr
		}
		return pixelPoint{x: p.X * w, y: p.Y * h}, nil
	}

	var pts [8]pixelPoint
	for i, idx := range [8]int{
		landmarks.RightEyeUpper, landmarks.RightEyeLower,
		landmarks.RightEyeOuter, landmarks.RightEyeInner,
		landmarks.LeftEyeUpper, landmarks.LeftEyeLower,
		landmarks.LeftEyeInner, landmarks.LeftEyeOuter,
	} {
		p, perr := px(idx)
		if perr != nil {
			return 0, 0, perr
		}
		pts[i] = p
	}

	rightWidth := pixelDist(pts[2], pts[3])
	leftWidth := pixelDist(pts[6], pts[7])
	if rightWidth > 0 {
		right = pixelDist(pts[0], pts[1]) / rightWidth
	}
	if leftWidth > 0 {
		left = pixelDist(pts[4], pts[5]) / leftWidth
	}
	return right, left, nil
}
