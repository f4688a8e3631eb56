// Package engine wires the per-tick measurement pipeline together:
// geometry, environment, stability, scoring, guidance and the capture
// session, processed frame-synchronously one tick at a time.
package engine

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/optiscope/go-pdmeter/internal/log"
	"github.com/optiscope/go-pdmeter/pkg/environment"
	"github.com/optiscope/go-pdmeter/pkg/guidance"
	"github.com/optiscope/go-pdmeter/pkg/landmarks"
	"github.com/optiscope/go-pdmeter/pkg/metrology"
	"github.com/optiscope/go-pdmeter/pkg/session"
)

// ErrStaleTimestamp reports a tick whose timestamp does not strictly
// increase; the tick is dropped without side effects.
var ErrStaleTimestamp = errors.New("engine: stale or duplicate frame timestamp")

// neutralLighting is assumed when a tick carries no pixel source.
const neutralLighting = 50

// Config aggregates the construction-time parameters of every stage.
type Config struct {
	Calculator  metrology.CalculatorConfig
	Scorer      metrology.ScorerConfig
	Environment environment.Config
	Guidance    guidance.Thresholds
	Session     session.Config

	// StabilityWindow is the rolling window capacity for the jitter
	// tracker.
	StabilityWindow int

	// StabilitySteepness maps the window's deviation to the 0-100
	// real-time stability score.
	StabilitySteepness float64

	// EyeOpenRatioMin is the lid-aperture ratio below which an eye
	// counts as closed.
	EyeOpenRatioMin float64
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() Config {
	return Config{
		Calculator:         metrology.DefaultCalculatorConfig(),
		Scorer:             metrology.DefaultScorerConfig(),
		Environment:        environment.DefaultConfig(),
		Guidance:           guidance.DefaultThresholds(),
		Session:            session.DefaultConfig(),
		StabilityWindow:    metrology.DefaultWindowCapacity,
		StabilitySteepness: metrology.DefaultStabilitySteepness,
		EyeOpenRatioMin:    0.15,
	}
}

// Validate fails fast on any inconsistent stage configuration.
func (c Config) Validate() error {
	if err := c.Calculator.Validate(); err != nil {
		return err
	}
	if err := c.Scorer.Validate(); err != nil {
		return err
	}
	if err := c.Environment.Validate(); err != nil {
		return err
	}
	if err := c.Guidance.Validate(); err != nil {
		return err
	}
	if err := c.Session.Validate(); err != nil {
		return err
	}
	if c.StabilityWindow < 2 {
		return fmt.Errorf("engine: stability window %d too small", c.StabilityWindow)
	}
	if c.StabilitySteepness <= 0 {
		return fmt.Errorf("engine: stability steepness must be positive, got %v", c.StabilitySteepness)
	}
	return nil
}

// Snapshot is the outward-facing view after a tick, consumed by the
// presentation layer.
type Snapshot struct {
	Timestamp   time.Time             `json:"timestamp"`
	FaceFound   bool                  `json:"face_found"`
	Measurement metrology.Measurement `json:"measurement"`
	Guidance    guidance.State        `json:"guidance"`
	Capture     string                `json:"capture_state"`
	Progress    int                   `json:"progress"`
	SessionID   string                `json:"session_id"`
}

// GuidanceFunc receives the snapshot after every processed tick. It
// runs on the tick goroutine and must not call back into the engine.
type GuidanceFunc func(Snapshot)

// CompletionFunc receives the final aggregated measurement and the full
// sample list when a capture session completes. It fires exactly once
// per session, on the tick goroutine, and must not call back into the
// engine.
type CompletionFunc func(sessionID string, final metrology.Measurement, samples []metrology.Measurement)

// Engine runs the measurement pipeline. Ticks are processed fully, one
// at a time; a single mutex guards the stability window and session
// because their transitions are multi-step.
type Engine struct {
	cfg      Config
	calc     *metrology.Calculator
	scorer   *metrology.Scorer
	assessor *environment.Assessor

	mu     sync.Mutex
	window *metrology.Window
	sess   *session.Session
	lastTS time.Time
	snap   Snapshot

	onGuidance GuidanceFunc
}

// New constructs the engine. onComplete fires exactly once per
// completed capture session; onGuidance fires after every tick. Either
// may be nil.
func New(cfg Config, onComplete CompletionFunc, onGuidance GuidanceFunc) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	calc, err := metrology.NewCalculator(cfg.Calculator)
	if err != nil {
		return nil, err
	}
	scorer, err := metrology.NewScorer(cfg.Scorer)
	if err != nil {
		return nil, err
	}
	assessor, err := environment.NewAssessor(cfg.Environment)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:        cfg,
		calc:       calc,
		scorer:     scorer,
		assessor:   assessor,
		window:     metrology.NewWindow(cfg.StabilityWindow),
		onGuidance: onGuidance,
	}

	sess, err := session.New(cfg.Session, func(final metrology.Measurement, samples []metrology.Measurement) {
		if onComplete != nil {
			onComplete(e.sess.ID().String(), final, samples)
		}
	})
	if err != nil {
		return nil, err
	}
	e.sess = sess

	return e, nil
}

// Tick processes one frame. res carries the landmark detection result;
// img is the frame's pixels for lighting and glare analysis and may be
// nil when no pixel source is available.
//
// Timestamps must strictly increase; stale ticks return
// ErrStaleTimestamp and leave all state untouched.
func (e *Engine) Tick(ts time.Time, res landmarks.Result, img image.Image) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !ts.After(e.lastTS) {
		return e.snap, ErrStaleTimestamp
	}
	e.lastTS = ts

	if !res.FaceFound() {
		return e.noFace(ts), nil
	}

	lighting := float64(neutralLighting)
	if img != nil {
		lighting = e.assessor.LightingScore(img)
	}

	m, err := e.calc.Measure(res.Frame, res.Width, res.Height, lighting)
	if err != nil {
		// A frame missing required landmarks is treated as no face;
		// no Measurement is emitted for this tick.
		log.Debug("landmark frame rejected", "error", err)
		return e.noFace(ts), nil
	}

	e.window.Push(m.IPDMM)
	stdDev := e.window.StdDev()
	m.Stability = e.window.Score(e.cfg.StabilitySteepness)
	m.Accuracy = e.scorer.Score(m)

	flags, err := e.flags(res, img)
	if err != nil {
		log.Debug("landmark frame rejected", "error", err)
		return e.noFace(ts), nil
	}

	g := guidance.Evaluate(m, flags, e.cfg.Guidance)
	tick := e.sess.Tick(m, g, stdDev)
	if tick.StabilityPinned {
		// Surface residual jitter that is blocking completion.
		g.Stability = guidance.StabilityUnstable
		g.Hold = false
	}
	if tick.Completed {
		log.Info("capture session complete",
			"session", e.sess.ID().String(), "samples", e.sess.SampleCount())
	}
	if tick.TimedOut {
		log.Warn("capture session timed out", "session", e.sess.ID().String())
	}

	e.snap = Snapshot{
		Timestamp:   ts,
		FaceFound:   true,
		Measurement: m,
		Guidance:    g,
		Capture:     tick.State.String(),
		Progress:    tick.Progress,
		SessionID:   e.sess.ID().String(),
	}

	if e.onGuidance != nil {
		e.onGuidance(e.snap)
	}
	return e.snap, nil
}

// noFace handles a tick without a usable face: the stability window is
// discarded and the session resets to Idle (unless already Complete).
func (e *Engine) noFace(ts time.Time) Snapshot {
	e.window.Reset()
	tick := e.sess.NoFace()

	e.snap = Snapshot{
		Timestamp: ts,
		Capture:   tick.State.String(),
		Progress:  tick.Progress,
		SessionID: e.sess.ID().String(),
	}
	if e.onGuidance != nil {
		e.onGuidance(e.snap)
	}
	return e.snap
}

// flags derives the per-tick guidance booleans from the frame.
func (e *Engine) flags(res landmarks.Result, img image.Image) (guidance.Flags, error) {
	right, left, err := metrology.EyeOpenRatios(res.Frame, res.Width, res.Height)
	if err != nil {
		return guidance.Flags{}, err
	}

	flags := guidance.Flags{
		RightEyeOpen:    right >= e.cfg.EyeOpenRatioMin,
		LeftEyeOpen:     left >= e.cfg.EyeOpenRatioMin,
		GlassesDetected: res.GlassesDetected,
	}

	if img != nil {
		for _, idx := range []int{landmarks.RightIrisCenter, landmarks.LeftIrisCenter} {
			p, perr := res.Frame.Point(idx)
			if perr != nil {
				return guidance.Flags{}, perr
			}
			cx := int(p.X * float64(res.Width))
			cy := int(p.Y * float64(res.Height))
			if e.assessor.GlareAt(img, cx, cy) {
				flags.Glare = true
				break
			}
		}
	}
	return flags, nil
}

// Config returns the engine's construction-time configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Snapshot returns the most recent tick's outward-facing state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap
}

// Reset is the explicit external reset (manual retake): the session
// returns to Idle with a fresh ID and the stability window is cleared.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.window.Reset()
	e.sess.Reset()
	e.snap = Snapshot{SessionID: e.sess.ID().String()}
	log.Info("session reset", "session", e.sess.ID().String())
}
