package event

import (
	"context"
	"testing"

	"audiorack/internal/pcm"
	"audiorack/internal/state"
)

type fakeProducer struct {
	framesLeft int
	exhausted  bool
}

func (p *fakeProducer) Produce(frames int) pcm.Frame {
	if p.framesLeft <= 0 {
		p.exhausted = true
		return pcm.NewFrame(0)
	}
	n := frames
	if n > p.framesLeft {
		n = p.framesLeft
	}
	p.framesLeft -= n
	if p.framesLeft == 0 {
		p.exhausted = true
	}
	return pcm.NewFrame(n)
}

func (p *fakeProducer) Exhausted() bool { return p.exhausted }

type fakeDeregisterer struct {
	deregistered []string
}

func (d *fakeDeregisterer) DeregisterEvent(id string) { d.deregistered = append(d.deregistered, id) }

func TestEventSourceLifecycle(t *testing.T) {
	prod := &fakeProducer{framesLeft: 1000}
	s := New("chime-1", 5, false, prod, nil)
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Play(); err != nil {
		t.Fatal(err)
	}
	if s.State() != state.Playing {
		t.Fatalf("expected Playing, got %v", s.State())
	}
}

func TestEventSourceSelfStopsOnExhaustionAndDeregisters(t *testing.T) {
	prod := &fakeProducer{framesLeft: 10}
	dereg := &fakeDeregisterer{}
	s := New("chime-1", 5, false, prod, dereg)
	s.Initialize(context.Background())
	s.Play()

	comp := s.SoundComponent()
	comp.Produce(10) // drains exactly framesLeft, observes Exhausted()==true and self-stops
	comp.Produce(10) // already Stopped: returns silence without touching the producer

	if s.State() != state.Stopped {
		t.Fatalf("expected Stopped after exhaustion, got %v", s.State())
	}
	if len(dereg.deregistered) != 1 || dereg.deregistered[0] != "chime-1" {
		t.Fatalf("expected deregistration of chime-1, got %#v", dereg.deregistered)
	}
}

func TestEventSourcePriorityPauseAndResume(t *testing.T) {
	prod := &fakeProducer{framesLeft: 1000}
	s := New("chime-1", 1, false, prod, nil)
	s.Initialize(context.Background())
	s.Play()

	if err := s.PriorityPause(); err != nil {
		t.Fatal(err)
	}
	if s.State() != state.Paused {
		t.Fatalf("expected Paused after priority pause, got %v", s.State())
	}

	if err := s.PriorityResume(); err != nil {
		t.Fatal(err)
	}
	if s.State() != state.Playing {
		t.Fatalf("expected Playing after priority resume, got %v", s.State())
	}
}

// TestEventSourcePriorityResumeIgnoresUserPause verifies that a user
// Pause (not a priority pause) is left alone by PriorityResume, since
// only priority-induced pauses should be auto-resumed.
func TestEventSourcePriorityResumeIgnoresUserPause(t *testing.T) {
	prod := &fakeProducer{framesLeft: 1000}
	s := New("chime-1", 1, false, prod, nil)
	s.Initialize(context.Background())
	s.Play()
	s.Pause()

	if err := s.PriorityResume(); err != nil {
		t.Fatal(err)
	}
	if s.State() != state.Paused {
		t.Fatalf("expected user pause to remain Paused, got %v", s.State())
	}
}

func TestEventSourceDuckExemptFlag(t *testing.T) {
	prod := &fakeProducer{framesLeft: 100}
	s := New("notif-1", 9, true, prod, nil)
	if !s.DuckExempt() {
		t.Fatal("expected duck_exempt true")
	}
}

func TestEventSourceProduceWhileNotPlayingReturnsSilence(t *testing.T) {
	prod := &fakeProducer{framesLeft: 100}
	s := New("chime-1", 1, false, prod, nil)
	s.Initialize(context.Background())

	f := s.SoundComponent().Produce(20)
	if f.FrameCount() != 20 {
		t.Fatalf("expected silence frame of requested size, got %d", f.FrameCount())
	}
	if prod.framesLeft != 100 {
		t.Fatal("producer should not have been drained while not Playing")
	}
}
