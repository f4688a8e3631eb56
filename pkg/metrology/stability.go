package metrology

import "math"

// DefaultWindowCapacity is the standard stability window size, roughly
// one second of samples at 30 fps.
const DefaultWindowCapacity = 30

// DefaultStabilitySteepness maps the rolling standard deviation (mm) to
// the 0-100 stability score for the real-time tracker.
const DefaultStabilitySteepness = 25.0

// Window is a fixed-capacity ring buffer of recent IPD values. The
// oldest value is evicted on overflow. It spans the whole tracking
// session and is reset only on explicit session reset or loss of face.
//
// Window is not safe for concurrent use; the engine serializes ticks.
type Window struct {
	values []float64
	pos    int
	full   bool
}

// NewWindow creates a Window with the given capacity. Capacities below
// two cannot produce a deviation and are rounded up.
func NewWindow(capacity int) *Window {
	if capacity < 2 {
		capacity = 2
	}
	return &Window{values: make([]float64, capacity)}
}

// Push appends a value, evicting the oldest beyond capacity.
func (w *Window) Push(v float64) {
	w.values[w.pos] = v
	w.pos++
	if w.pos >= len(w.values) {
		w.pos = 0
		w.full = true
	}
}

// Len returns the number of values currently held.
func (w *Window) Len() int {
	if w.full {
		return len(w.values)
	}
	return w.pos
}

// Reset discards all values.
func (w *Window) Reset() {
	w.pos = 0
	w.full = false
}

// StdDev returns the population standard deviation of the window
// contents. With one value or none there is no jitter to measure and
// the deviation is zero.
func (w *Window) StdDev() float64 {
	n := w.Len()
	if n <= 1 {
		return 0
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += w.values[i]
	}
	mean := sum / float64(n)

	var sq float64
	for i := 0; i < n; i++ {
		d := w.values[i] - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(n))
}

// Score maps the current standard deviation to a 0-100 stability score.
// For a fixed steepness k the score is monotone non-increasing in the
// deviation.
func (w *Window) Score(k float64) float64 {
	return stabilityScore(w.StdDev(), k)
}

func stabilityScore(stdDev, k float64) float64 {
	score := 100 - stdDev*k
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
