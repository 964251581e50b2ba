// Package state implements the shared AudioSource/EventSource/Output state
// machine used throughout the audio runtime (spec §3, §4.6).
package state

import (
	"fmt"
	"sync"

	"audiorack/internal/errs"
)

// State is a lifecycle state common to sources, events and outputs.
type State int

const (
	Created State = iota
	Initializing
	Ready
	Playing
	Paused
	Stopped
	Error
	Disposed
)

func (s State) String() string {
	switch s {
	case Created:
		return "Created"
	case Initializing:
		return "Initializing"
	case Ready:
		return "Ready"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	case Stopped:
		return "Stopped"
	case Error:
		return "Error"
	case Disposed:
		return "Disposed"
	default:
		return "Unknown"
	}
}

// Changed is published whenever a transition succeeds.
type Changed struct {
	ID       string
	Previous State
	New      State
	Err      error // set only when New == Error
}

// allowed maps each transition name to the set of states it may start
// from. Dispose and any->Error are handled specially below.
var allowed = map[string]map[State]bool{
	"Initialize": {Created: true, Error: true},
	"Play":       {Ready: true, Stopped: true, Paused: true},
	"Pause":      {Playing: true},
	"Resume":     {Paused: true},
	"Stop":       {Playing: true, Paused: true},
	"Seek":       {Playing: true, Paused: true},
	"Ready":      {Initializing: true},
}

// Machine is an embeddable, mutex-guarded state machine. Zero value is not
// usable; use New.
type Machine struct {
	mu   sync.RWMutex
	id   string
	cur  State
	subs []func(Changed)
}

// New returns a Machine starting in Created, identified by id for events.
func New(id string) *Machine {
	return &Machine{id: id, cur: Created}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

// Subscribe registers fn to be called (synchronously, in program order) on
// every transition. Returns an unsubscribe func.
func (m *Machine) Subscribe(fn func(Changed)) func() {
	m.mu.Lock()
	m.subs = append(m.subs, fn)
	idx := len(m.subs) - 1
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if idx < len(m.subs) {
			m.subs[idx] = nil
		}
	}
}

// Require checks that the machine is currently in one of the given states
// before the caller proceeds with transition op, returning IllegalState or
// AlreadyDisposed otherwise. It does not itself change state.
func (m *Machine) Require(op string, valid ...State) error {
	m.mu.RLock()
	cur := m.cur
	m.mu.RUnlock()

	if cur == Disposed {
		return errs.New(errs.AlreadyDisposed, op, "source is disposed")
	}
	for _, v := range valid {
		if cur == v {
			return nil
		}
	}
	return errs.New(errs.IllegalState, op, fmt.Sprintf("invalid in state %s", cur))
}

// Transition moves the machine to next, publishing Changed to subscribers.
// It does not validate legality — callers validate with Require first so
// that the check and the side effect it guards happen atomically from the
// caller's point of view.
func (m *Machine) Transition(next State) {
	m.mu.Lock()
	prev := m.cur
	m.cur = next
	subs := append([]func(Changed){}, m.subs...)
	m.mu.Unlock()

	ch := Changed{ID: m.id, Previous: prev, New: next}
	for _, fn := range subs {
		if fn != nil {
			fn(ch)
		}
	}
}

// Fail transitions to Error, recording cause, and publishes the event.
func (m *Machine) Fail(cause error) {
	m.mu.Lock()
	prev := m.cur
	m.cur = Error
	subs := append([]func(Changed){}, m.subs...)
	m.mu.Unlock()

	ch := Changed{ID: m.id, Previous: prev, New: Error, Err: cause}
	for _, fn := range subs {
		if fn != nil {
			fn(ch)
		}
	}
}

// Dispose transitions to the terminal Disposed state from any state. It is
// idempotent: disposing an already-disposed machine is a no-op that
// reports it was already terminal.
func (m *Machine) Dispose() (already bool) {
	m.mu.Lock()
	if m.cur == Disposed {
		m.mu.Unlock()
		return true
	}
	prev := m.cur
	m.cur = Disposed
	subs := append([]func(Changed){}, m.subs...)
	m.mu.Unlock()

	ch := Changed{ID: m.id, Previous: prev, New: Disposed}
	for _, fn := range subs {
		if fn != nil {
			fn(ch)
		}
	}
	return false
}
