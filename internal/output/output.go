// Package output implements the Output Fan-out: a shared state machine
// (spec §4.6) plus the LocalOutput and HTTPStreamOutput variants
// (CastOutput lives in internal/castout), each of which drains the mixer's stream independently so a
// failure on one never interrupts another.
package output

import (
	"sync"

	"audiorack/internal/errs"
)

// State is the Output-specific lifecycle (spec §4.6):
//
//	Created -> Initializing -> Ready -> Streaming -> Stopping -> Stopped -> Streaming
//	  any -> Error; Connecting (Cast only) precedes Ready on Connect; Disposed terminal.
//
// Distinct from internal/state.Machine because outputs have a
// Connecting/Stopping phase sources don't.
type State int

const (
	Created State = iota
	Initializing
	Ready
	Connecting
	Streaming
	Stopping
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
	case Connecting:
		return "Connecting"
	case Streaming:
		return "Streaming"
	case Stopping:
		return "Stopping"
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

// Changed is published on every output transition.
type Changed struct {
	ID       string
	Previous State
	New      State
	Err      error
}

// Machine is the shared output lifecycle (spec §4.6's shared contract:
// initialize, start, stop, dispose, volume, mute, state,
// on_state_changed).
type Machine struct {
	mu   sync.RWMutex
	id   string
	cur  State
	subs []func(Changed)
}

func NewMachine(id string) *Machine { return &Machine{id: id, cur: Created} }

func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

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

func (m *Machine) Require(op string, valid ...State) error {
	m.mu.RLock()
	cur := m.cur
	m.mu.RUnlock()
	if cur == Disposed {
		return errs.New(errs.AlreadyDisposed, op, "output is disposed")
	}
	for _, v := range valid {
		if cur == v {
			return nil
		}
	}
	return errs.New(errs.IllegalState, op, "invalid in state "+cur.String())
}

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

// Output is the shared contract every variant implements (spec §4.6).
type Output interface {
	ID() string
	Initialize() error
	Start() error
	Stop() error
	Dispose() error
	Volume() float64
	SetVolume(v float64) error
	Mute() bool
	SetMute(b bool) error
	State() State
	OnStateChanged(fn func(Changed)) func()
}

// base provides the volume/mute bookkeeping shared by every variant.
type base struct {
	id      string
	machine *Machine

	mu     sync.RWMutex
	volume float64
	muted  bool
}

func newBase(id string) base {
	return base{id: id, machine: NewMachine(id), volume: 1.0}
}

func (b *base) ID() string                          { return b.id }
func (b *base) State() State                        { return b.machine.Current() }
func (b *base) OnStateChanged(fn func(Changed)) func() { return b.machine.Subscribe(fn) }

func (b *base) Volume() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.volume
}

func (b *base) SetVolume(v float64) error {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	b.mu.Lock()
	b.volume = v
	b.mu.Unlock()
	return nil
}

func (b *base) Mute() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.muted
}

func (b *base) SetMute(m bool) error {
	b.mu.Lock()
	b.muted = m
	b.mu.Unlock()
	return nil
}
