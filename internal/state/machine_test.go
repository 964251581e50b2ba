package state

import (
	"errors"
	"testing"

	"audiorack/internal/errs"
)

func TestLifecycleTrajectory(t *testing.T) {
	m := New("src-1")

	var got []Changed
	m.Subscribe(func(c Changed) { got = append(got, c) })

	if err := m.Require("Initialize", Created, Error); err != nil {
		t.Fatalf("Initialize should be valid from Created: %v", err)
	}
	m.Transition(Initializing)
	m.Transition(Ready)

	if err := m.Require("Play", Ready, Stopped, Paused); err != nil {
		t.Fatalf("Play should be valid from Ready: %v", err)
	}
	m.Transition(Playing)

	if err := m.Require("Pause", Playing); err != nil {
		t.Fatalf("Pause should be valid from Playing: %v", err)
	}
	m.Transition(Paused)

	if err := m.Require("Resume", Paused); err != nil {
		t.Fatalf("Resume should be valid from Paused: %v", err)
	}
	m.Transition(Playing)

	if err := m.Require("Stop", Playing, Paused); err != nil {
		t.Fatalf("Stop should be valid from Playing: %v", err)
	}
	m.Transition(Stopped)

	want := []State{Initializing, Ready, Playing, Paused, Playing, Stopped}
	if len(got) != len(want) {
		t.Fatalf("got %d transitions, want %d: %#v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].New != w {
			t.Errorf("transition %d = %s, want %s", i, got[i].New, w)
		}
	}
}

func TestPauseRequiresPlaying(t *testing.T) {
	m := New("src-1")
	m.Transition(Initializing)
	m.Transition(Ready)

	err := m.Require("Pause", Playing)
	if !errs.Is(err, errs.IllegalState) {
		t.Fatalf("expected IllegalState, got %v", err)
	}
}

func TestDisposeIsTerminalAndIdempotent(t *testing.T) {
	m := New("src-1")
	m.Transition(Initializing)
	m.Transition(Ready)

	if already := m.Dispose(); already {
		t.Fatalf("first Dispose should not report already-disposed")
	}
	if already := m.Dispose(); !already {
		t.Fatalf("second Dispose should report already-disposed")
	}

	err := m.Require("Play", Ready, Stopped, Paused)
	if !errs.Is(err, errs.AlreadyDisposed) {
		t.Fatalf("expected AlreadyDisposed after dispose, got %v", err)
	}
}

func TestFailPublishesErrorState(t *testing.T) {
	m := New("src-1")
	m.Transition(Initializing)
	m.Transition(Ready)
	m.Transition(Playing)

	cause := errors.New("device unplugged")
	var last Changed
	m.Subscribe(func(c Changed) { last = c })
	m.Fail(cause)

	if m.Current() != Error {
		t.Fatalf("expected Error state, got %s", m.Current())
	}
	if last.New != Error || !errors.Is(last.Err, cause) {
		t.Fatalf("expected Changed event carrying cause, got %#v", last)
	}

	// Only Initialize may leave Error.
	if err := m.Require("Play", Ready, Stopped, Paused); !errs.Is(err, errs.IllegalState) {
		t.Fatalf("expected Play to be illegal from Error, got %v", err)
	}
	if err := m.Require("Initialize", Created, Error); err != nil {
		t.Fatalf("Initialize should be valid from Error: %v", err)
	}
}
