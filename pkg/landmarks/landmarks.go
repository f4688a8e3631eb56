// Package landmarks defines the face-mesh landmark topology consumed by the
// measurement pipeline, and the provider interface that delivers frames.
//
// Indices follow the MediaPipe face-mesh convention with refined iris
// landmarks (478 points). Left and right refer to the subject's left and
// right, not the image's.
package landmarks

import (
	"errors"
	"fmt"
)

// MinLandmarks is the minimum topology size for a valid frame.
// Frames from a coarser mesh (without iris refinement) are invalid input.
const MinLandmarks = 478

// Named anatomical indices used by the measurement pipeline.
const (
	NoseTip    = 1
	Forehead   = 10
	NoseBridge = 168
	Chin       = 152

	RightCheek = 234
	LeftCheek  = 454

	// Eye corners and lids, for eye-aperture estimation.
	RightEyeOuter = 33
	RightEyeInner = 133
	RightEyeUpper = 159
	RightEyeLower = 145
	LeftEyeInner  = 362
	LeftEyeOuter  = 263
	LeftEyeUpper  = 386
	LeftEyeLower  = 374

	// Iris centers and their horizontal boundary pairs. The horizontal
	// pair is used for diameter measurement; the vertical pair is often
	// clipped by the eyelids.
	RightIrisCenter = 468
	RightIrisRight  = 469
	RightIrisLeft   = 471
	LeftIrisCenter  = 473
	LeftIrisRight   = 474
	LeftIrisLeft    = 476
)

// ErrInvalidFrame reports a frame whose topology is missing a required
// landmark index. Callers must treat the tick as "no face".
var ErrInvalidFrame = errors.New("landmarks: invalid frame topology")

// Point3 is one tracked point in normalized frame coordinates.
// X and Y are in [0,1]. Z is relative depth, meaningful only when the
// owning frame reports HasDepth.
type Point3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// Frame is a fixed-topology ordered landmark set for one video frame.
// Points are never mutated after creation.
type Frame struct {
	Points   []Point3
	HasDepth bool
}

// Validate checks that the frame carries the full refined topology.
func (f *Frame) Validate() error {
	if f == nil || len(f.Points) < MinLandmarks {
		n := 0
		if f != nil {
			n = len(f.Points)
		}
		return fmt.Errorf("%w: got %d points, need %d", ErrInvalidFrame, n, MinLandmarks)
	}
	return nil
}

// Point returns the landmark at idx, or ErrInvalidFrame when the index
// is outside the frame's topology.
func (f *Frame) Point(idx int) (Point3, error) {
	if f == nil || idx < 0 || idx >= len(f.Points) {
		return Point3{}, fmt.Errorf("%w: index %d out of range", ErrInvalidFrame, idx)
	}
	return f.Points[idx], nil
}
