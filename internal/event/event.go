// Package event implements EventSource: short-lived producers of PCM
// (sound effect, notification, chime, TTS) with priority and a
// duck-exempt flag (spec §4.3).
package event

import (
	"context"
	"log/slog"
	"sync"

	"audiorack/internal/pcm"
	"audiorack/internal/state"
)

// Producer yields PCM until exhausted, at which point Produce returns a
// frame with FrameCount() == 0. Mirrors source.SampleProducer but adds
// the exhaustion signal EventSource needs to self-stop.
type Producer interface {
	Produce(frames int) pcm.Frame
	Exhausted() bool
}

// Deregisterer is called when an event self-stops, so the orchestrator
// can drop it from the active set (spec §4.3 "requests deregistration").
type Deregisterer interface {
	DeregisterEvent(id string)
}

// Source is one short-lived event overlay. Construction binds
// {priority, duck_exempt, producer, clip_duration?} (spec §4.3).
type Source struct {
	id          string
	priority    int
	duckExempt  bool
	producer    Producer
	deregister  Deregisterer

	machine *state.Machine

	mu      sync.Mutex
	paused  bool // paused by priority override, distinct from user Pause
}

// New constructs an event source bound to producer, not yet initialized.
func New(id string, priority int, duckExempt bool, producer Producer, deregister Deregisterer) *Source {
	return &Source{
		id:         id,
		priority:   priority,
		duckExempt: duckExempt,
		producer:   producer,
		deregister: deregister,
		machine:    state.New(id),
	}
}

func (s *Source) ID() string         { return s.id }
func (s *Source) Priority() int      { return s.priority }
func (s *Source) DuckExempt() bool   { return s.duckExempt }
func (s *Source) State() state.State { return s.machine.Current() }
func (s *Source) Machine() *state.Machine { return s.machine }

func (s *Source) Subscribe(fn func(state.Changed)) func() { return s.machine.Subscribe(fn) }

func (s *Source) Initialize(ctx context.Context) error {
	if err := s.machine.Require("Source.Initialize", state.Created, state.Error); err != nil {
		return err
	}
	s.machine.Transition(state.Initializing)
	s.machine.Transition(state.Ready)
	return nil
}

func (s *Source) Play() error {
	if err := s.machine.Require("Source.Play", state.Ready, state.Stopped, state.Paused); err != nil {
		return err
	}
	s.machine.Transition(state.Playing)
	return nil
}

// PriorityPause is invoked by runtime.EventManager's priority-override
// rule (spec §4.5): pauses this event, preserving its position, without
// being a user-initiated pause.
func (s *Source) PriorityPause() error {
	if s.State() != state.Playing {
		return nil
	}
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
	s.machine.Transition(state.Paused)
	return nil
}

// PriorityResume resumes a source that was paused via PriorityPause,
// when the higher-priority event that preempted it completes.
func (s *Source) PriorityResume() error {
	s.mu.Lock()
	wasPriorityPaused := s.paused
	s.paused = false
	s.mu.Unlock()
	if !wasPriorityPaused {
		return nil
	}
	if s.State() != state.Paused {
		return nil
	}
	s.machine.Transition(state.Playing)
	return nil
}

func (s *Source) Pause() error {
	if err := s.machine.Require("Source.Pause", state.Playing); err != nil {
		return err
	}
	s.machine.Transition(state.Paused)
	return nil
}

func (s *Source) Resume() error {
	if err := s.machine.Require("Source.Resume", state.Paused); err != nil {
		return err
	}
	s.machine.Transition(state.Playing)
	return nil
}

func (s *Source) Stop() error {
	if err := s.machine.Require("Source.Stop", state.Playing, state.Paused); err != nil {
		return err
	}
	s.machine.Transition(state.Stopped)
	return nil
}

func (s *Source) Dispose() error {
	already := s.machine.Dispose()
	if already {
		return nil
	}
	return nil
}

// SoundComponent drains producer until exhaustion, then self-transitions
// to Stopped and requests deregistration (spec §4.3). Called by the
// mixer's pull loop; must not block.
func (s *Source) SoundComponent() *eventProducer {
	return &eventProducer{src: s}
}

type eventProducer struct {
	src *Source
}

func (p *eventProducer) Produce(frames int) pcm.Frame {
	if p.src.State() != state.Playing {
		return pcm.NewFrame(frames)
	}
	f := p.src.producer.Produce(frames)
	if p.src.producer.Exhausted() {
		p.src.selfStop()
	}
	return f
}

func (s *Source) selfStop() {
	if err := s.machine.Require("Source.selfStop", state.Playing, state.Paused); err != nil {
		return
	}
	s.machine.Transition(state.Stopped)
	if s.deregister != nil {
		s.deregister.DeregisterEvent(s.id)
	}
	slog.Debug("event source exhausted, self-stopped", "source_id", s.id)
}
