// Package session implements the capture state machine that gates,
// accumulates and finally aggregates a run of stable measurements into
// one clinical-grade result.
package session

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/optiscope/go-pdmeter/pkg/guidance"
	"github.com/optiscope/go-pdmeter/pkg/metrology"
)

// State is the capture session state.
type State int

const (
	// Idle: waiting for the subject to satisfy every guidance axis.
	Idle State = iota
	// Sampling: accumulating measurements while hold is maintained.
	Sampling
	// Complete: a final result has been emitted; terminal until an
	// explicit reset (manual retake).
	Complete
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sampling:
		return "sampling"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// Config holds the capture parameters. All fields are required.
type Config struct {
	// RequiredMinSamples is the number of collected samples needed
	// before completion is considered.
	RequiredMinSamples int

	// MaxSamples is the safety bound on the sample buffer; exceeding
	// it without completing force-resets the session.
	MaxSamples int

	// StrictStdDevMM is the completion threshold: the stability
	// tracker's deviation must be at or below it to finish.
	StrictStdDevMM float64

	// LooseStdDevMM is the collection threshold: samples are appended
	// only while the deviation stays below it, so momentary noise
	// never pollutes the aggregate.
	LooseStdDevMM float64

	// Aggregate configures the final reduction.
	Aggregate metrology.AggregateConfig
}

// DefaultConfig returns the standard capture parameters.
func DefaultConfig() Config {
	return Config{
		RequiredMinSamples: 45,
		MaxSamples:         300,
		StrictStdDevMM:     0.6,
		LooseStdDevMM:      1.5,
		Aggregate:          metrology.DefaultAggregateConfig(),
	}
}

// Validate fails fast on inconsistent capture parameters.
func (c Config) Validate() error {
	if c.RequiredMinSamples <= 0 {
		return fmt.Errorf("session: required min samples must be positive, got %d", c.RequiredMinSamples)
	}
	if c.MaxSamples < c.RequiredMinSamples {
		return fmt.Errorf("session: max samples %d < required min samples %d", c.MaxSamples, c.RequiredMinSamples)
	}
	if c.StrictStdDevMM <= 0 {
		return fmt.Errorf("session: strict stddev must be positive, got %v", c.StrictStdDevMM)
	}
	if c.LooseStdDevMM < c.StrictStdDevMM {
		return fmt.Errorf("session: loose stddev %v < strict stddev %v", c.LooseStdDevMM, c.StrictStdDevMM)
	}
	return nil
}

// CompletionFunc receives the final aggregated measurement and the full
// sample list. It fires exactly once per completed session.
type CompletionFunc func(final metrology.Measurement, samples []metrology.Measurement)

// TickResult reports the session's state after one tick.
type TickResult struct {
	State    State
	Progress int

	// StabilityPinned is true while the sample count would complete
	// the session but residual jitter still exceeds the strict
	// threshold; progress is pinned at 95 and the stability axis
	// should be surfaced as unstable.
	StabilityPinned bool

	// Completed is true on the single tick that finished the session.
	Completed bool

	// TimedOut is true on the tick that force-reset the session after
	// exceeding MaxSamples without meeting the completion condition.
	TimedOut bool
}

// Session is the capture state machine. It is not safe for concurrent
// use; the engine serializes ticks.
type Session struct {
	cfg        Config
	id         uuid.UUID
	state      State
	samples    []metrology.Measurement
	pinned     bool
	onComplete CompletionFunc
}

// New builds a session in Idle state.
func New(cfg Config, onComplete CompletionFunc) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		cfg:        cfg,
		id:         uuid.New(),
		samples:    make([]metrology.Measurement, 0, cfg.MaxSamples),
		onComplete: onComplete,
	}, nil
}

// ID returns the current session identifier. Reset assigns a new one.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// State returns the current capture state.
func (s *Session) State() State {
	return s.state
}

// SampleCount returns the number of collected samples.
func (s *Session) SampleCount() int {
	return len(s.samples)
}

// Progress returns sampling progress on a 0-100 scale. Progress is
// pinned at 95 while the sample count alone would complete the session
// but jitter still exceeds the strict threshold: sample count alone
// never completes a session.
func (s *Session) Progress() int {
	switch s.state {
	case Complete:
		return 100
	case Idle:
		return 0
	}
	if len(s.samples) >= s.cfg.RequiredMinSamples {
		return 95
	}
	return len(s.samples) * 100 / s.cfg.RequiredMinSamples
}

// Tick advances the state machine with this tick's measurement, its
// guidance classification and the stability tracker's current standard
// deviation.
func (s *Session) Tick(m metrology.Measurement, g guidance.State, stdDev float64) TickResult {
	switch s.state {
	case Complete:
		// Terminal until an explicit retake.

	case Idle:
		if g.Hold {
			s.state = Sampling
			s.samples = s.samples[:0]
			s.pinned = false
			return s.sample(m, stdDev)
		}

	case Sampling:
		if !g.Hold {
			// Asymmetric reset: losing distance, centering or yaw
			// alignment discards progress; transient eye-closure,
			// glare or lighting dips merely pause collection.
			if g.Distance != guidance.OK || g.Center != guidance.OK || g.Yaw != guidance.OK {
				s.reset()
			}
			break
		}
		return s.sample(m, stdDev)
	}

	return s.result()
}

// sample runs one Sampling-state tick under hold.
func (s *Session) sample(m metrology.Measurement, stdDev float64) TickResult {
	if len(s.samples) >= s.cfg.MaxSamples {
		// Safety timeout: the strict completion condition was never
		// met within the sample budget.
		s.reset()
		r := s.result()
		r.TimedOut = true
		return r
	}

	if stdDev < s.cfg.LooseStdDevMM {
		s.samples = append(s.samples, m)
	}

	if len(s.samples) >= s.cfg.RequiredMinSamples {
		if stdDev <= s.cfg.StrictStdDevMM {
			return s.complete()
		}
		s.pinned = true
	}

	return s.result()
}

// complete aggregates the buffer, fires the callback once and moves to
// the terminal state.
func (s *Session) complete() TickResult {
	final, err := metrology.Aggregate(s.samples, s.cfg.Aggregate)
	if err != nil {
		// Unreachable: completion requires a non-empty buffer.
		s.reset()
		return s.result()
	}

	s.state = Complete
	s.pinned = false

	if s.onComplete != nil {
		out := make([]metrology.Measurement, len(s.samples))
		copy(out, s.samples)
		s.onComplete(final, out)
	}

	r := s.result()
	r.Completed = true
	return r
}

// NoFace handles a tick with no detected face: an immediate reset to
// Idle with the buffer cleared. A completed session keeps its result.
func (s *Session) NoFace() TickResult {
	if s.state != Complete {
		s.reset()
	}
	return s.result()
}

// Reset is the explicit external reset (manual retake). It returns the
// session to Idle from any state, including Complete, and assigns a
// fresh session ID.
func (s *Session) Reset() {
	s.reset()
	s.id = uuid.New()
}

func (s *Session) reset() {
	s.state = Idle
	s.samples = s.samples[:0]
	s.pinned = false
}

func (s *Session) result() TickResult {
	return TickResult{
		State:           s.state,
		Progress:        s.Progress(),
		StabilityPinned: s.pinned,
	}
}
