// Package ducking implements the priority-based attenuation engine (spec
// §4.5): while one or more non-exempt event sources are playing,
// background (primary, non-exempt) sources are attenuated toward a
// target level and ramped back to unity once the last event stops.
//
// The ramp itself is modeled on the teacher's automatic-gain-control
// coefficient smoothing (client/internal/agc.AGC.Process): instead of AGC's
// continuous RMS-driven gain, duckingLevel here is driven by discrete
// attack/release edges, but the same "compute a per-tick step toward a
// target, clamp, integrate" shape is reused.
package ducking

import (
	"sync"
	"time"
)

// Policy selects how quickly the attack ramp moves toward the duck
// target. Release always uses release_ms regardless of policy (spec only
// qualifies attack with a policy).
type Policy int

const (
	FadeSmooth Policy = iota // full attack_ms
	FadeQuick                // quarter of attack_ms
	Instant                  // immediate, no ramp
)

// Config holds the tunable ducking parameters (spec §4.5, persisted under
// the Audio configuration section, spec §6).
type Config struct {
	DuckPercentage float64 // 0..100
	AttackMs       float64
	ReleaseMs      float64
	Policy         Policy
}

// State is the observable snapshot published at each ramp step (spec
// §4.5's DuckingState).
type State struct {
	IsDucking         bool
	CurrentDuckLevel  float64
	ActiveEventCount  uint32
}

// Engine drives the duck-level ramp. Zero value is not usable; use New.
type Engine struct {
	mu sync.Mutex

	cfg Config

	activeCount uint32
	level       float64 // current_duck_level, always in [target,1.0]
	target      float64

	// ramping state: non-zero rampTotal means a ramp is in progress.
	rampFrom   float64
	rampTotal  time.Duration
	rampElapsed time.Duration
	rampToTarget bool // true = ramping down toward target, false = toward 1.0
}

// New returns an Engine at rest (level 1.0, no active events).
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg, level: 1.0, target: targetFromPercentage(cfg.DuckPercentage)}
}

func targetFromPercentage(pct float64) float64 {
	t := pct / 100.0
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return t
}

// SetConfig updates the ducking parameters. It does not reset an
// in-progress ramp's elapsed time, so a change mid-ramp retargets
// smoothly rather than snapping.
func (e *Engine) SetConfig(cfg Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
	e.target = targetFromPercentage(cfg.DuckPercentage)
}

// EventStarted records that a non-exempt event began playing. Only the
// 0->1 edge of the reference count arms a new attack ramp; nested events
// never re-ramp (spec §4.5, S3).
func (e *Engine) EventStarted() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activeCount++
	if e.activeCount == 1 {
		e.armRamp(true)
	}
}

// EventStopped records that a non-exempt event finished. Only the 1->0
// edge arms the release ramp.
func (e *Engine) EventStopped() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.activeCount == 0 {
		return
	}
	e.activeCount--
	if e.activeCount == 0 {
		e.armRamp(false)
	}
}

func (e *Engine) armRamp(toTarget bool) {
	durMs := e.cfg.AttackMs
	if !toTarget {
		durMs = e.cfg.ReleaseMs
	} else {
		switch e.cfg.Policy {
		case FadeQuick:
			durMs = durMs / 4
		case Instant:
			durMs = 0
		}
	}

	e.rampFrom = e.level
	e.rampToTarget = toTarget
	e.rampElapsed = 0
	e.rampTotal = time.Duration(durMs) * time.Millisecond

	if e.rampTotal <= 0 {
		e.level = e.rampGoal()
		e.rampTotal = 0
	}
}

func (e *Engine) rampGoal() float64 {
	if e.rampToTarget {
		return e.target
	}
	return 1.0
}

// Tick advances the ramp by dt (driven by the mixer pull loop, spec §5)
// and returns the current effective duck level. Linear interpolation
// between rampFrom and the ramp's goal, exactly per spec §4.5's "linear
// per-sample step under FadeSmooth".
func (e *Engine) Tick(dt time.Duration) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rampTotal > 0 {
		e.rampElapsed += dt
		if e.rampElapsed >= e.rampTotal {
			e.level = e.rampGoal()
			e.rampTotal = 0
		} else {
			frac := float64(e.rampElapsed) / float64(e.rampTotal)
			goal := e.rampGoal()
			e.level = e.rampFrom + (goal-e.rampFrom)*frac
		}
	}
	return e.level
}

// Level returns the current duck level without advancing time.
func (e *Engine) Level() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.level
}

// State returns the observable DuckingState snapshot (spec §4.5).
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		IsDucking:        e.activeCount > 0,
		CurrentDuckLevel: e.level,
		ActiveEventCount: e.activeCount,
	}
}

// GainFor returns the effective per-row gain the mixer should apply: for
// exempt rows (event sources, or background sources flagged duck_exempt)
// it's always sourceGain*1.0; otherwise sourceGain*current_duck_level
// (spec §4.5).
func (e *Engine) GainFor(sourceGain float64, exempt bool) float64 {
	if exempt {
		return sourceGain
	}
	return sourceGain * e.Level()
}
