package landmarks

import "context"

// Result is the outcome of one detection tick. A nil Frame means no face
// was found in the frame; that is a normal result, not an error.
type Result struct {
	Frame  *Frame
	Width  int // source frame width in pixels
	Height int // source frame height in pixels

	// GlassesDetected is an optional hint from the detector backend.
	GlassesDetected bool
}

// FaceFound reports whether the detector saw a face this tick.
func (r Result) FaceFound() bool {
	return r.Frame != nil
}

// Provider delivers landmark frames for successive video frames.
//
// Implementations must not fail on degenerate or not-ready input; they
// return a Result with a nil Frame instead. An error indicates the
// provider itself is broken (lost connection, closed), not a miss.
type Provider interface {
	// Detect runs landmark detection on a JPEG-encoded frame.
	Detect(ctx context.Context, jpeg []byte) (Result, error)

	// Close releases detector resources.
	Close() error
}
