package runtime

import (
	"context"
	"testing"

	"audiorack/internal/ducking"
	"audiorack/internal/errs"
	"audiorack/internal/event"
	"audiorack/internal/pcm"
	"audiorack/internal/state"
)

type fakeProducer struct{}

func (fakeProducer) Produce(frames int) pcm.Frame { return pcm.NewFrame(frames) }
func (fakeProducer) Exhausted() bool              { return false }

func newTestEvent(id string, priority int, duckExempt bool) *event.Source {
	src := event.New(id, priority, duckExempt, fakeProducer{}, nil)
	src.Initialize(context.Background()) //nolint:errcheck
	return src
}

func newTestDuck() *ducking.Engine {
	return ducking.New(ducking.Config{DuckPercentage: 70, AttackMs: 50, ReleaseMs: 400, Policy: ducking.FadeSmooth})
}

func TestEventManagerPlayTriggersDucking(t *testing.T) {
	duck := newTestDuck()
	m := NewEventManager(duck)
	chime := newTestEvent("chime", 5, false)
	m.Register(chime)

	if err := m.Play("chime"); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !duck.State().IsDucking {
		t.Error("expected ducking to be active after playing a non-exempt event")
	}
}

func TestEventManagerExemptEventDoesNotDuck(t *testing.T) {
	duck := newTestDuck()
	m := NewEventManager(duck)
	tick := newTestEvent("tick", 5, true)
	m.Register(tick)

	if err := m.Play("tick"); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if duck.State().IsDucking {
		t.Error("expected no ducking for a duck-exempt event")
	}
}

func TestEventManagerHigherPriorityPausesLower(t *testing.T) {
	duck := newTestDuck()
	m := NewEventManager(duck)
	low := newTestEvent("low", 1, false)
	high := newTestEvent("high", 10, false)
	m.Register(low)
	m.Register(high)

	if err := m.Play("low"); err != nil {
		t.Fatalf("Play low: %v", err)
	}
	if err := m.Play("high"); err != nil {
		t.Fatalf("Play high: %v", err)
	}
	if low.State() != state.Paused {
		t.Errorf("low.State() = %v, want Paused", low.State())
	}
	if high.State() != state.Playing {
		t.Errorf("high.State() = %v, want Playing", high.State())
	}
}

func TestEventManagerStopResumesPausedLower(t *testing.T) {
	duck := newTestDuck()
	m := NewEventManager(duck)
	low := newTestEvent("low", 1, false)
	high := newTestEvent("high", 10, false)
	m.Register(low)
	m.Register(high)

	if err := m.Play("low"); err != nil {
		t.Fatalf("Play low: %v", err)
	}
	if err := m.Play("high"); err != nil {
		t.Fatalf("Play high: %v", err)
	}
	if err := m.Stop("high"); err != nil {
		t.Fatalf("Stop high: %v", err)
	}
	if low.State() != state.Playing {
		t.Errorf("low.State() = %v, want Playing after high stops", low.State())
	}
}

func TestEventManagerPlayUnknownReturnsNotFound(t *testing.T) {
	m := NewEventManager(newTestDuck())
	err := m.Play("nope")
	if !errs.Is(err, errs.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
