package runtime

import (
	"sync"

	"audiorack/internal/ducking"
	"audiorack/internal/errs"
	"audiorack/internal/event"
	"audiorack/internal/state"
)

// eventHandle pairs an event.Source with the priority-arbitration
// bookkeeping the spec's Ducking Engine design assumes (§4.3, §4.5):
// a higher-priority event pauses any lower-priority event currently
// playing, resuming it once the higher one finishes.
type eventHandle struct {
	src *event.Source
}

// EventManager arbitrates concurrently-playing EventSources by priority
// and drives the Ducking Engine's start/stop edges, grounded on the
// spec's own description of the two working together (§4.5: "while one
// or more non-exempt event sources are playing"). Neither event.Source
// nor ducking.Engine talks to the other directly; this is the glue.
type EventManager struct {
	mu     sync.Mutex
	events map[string]*eventHandle
	duck   *ducking.Engine
}

// NewEventManager returns an EventManager driving duck.
func NewEventManager(duck *ducking.Engine) *EventManager {
	return &EventManager{events: map[string]*eventHandle{}, duck: duck}
}

// Register adds an initialized event source to the manager's active set.
func (m *EventManager) Register(src *event.Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[src.ID()] = &eventHandle{src: src}
}

// Play starts the named event: pauses any lower-priority event currently
// playing, starts duck.EventStarted() if this event is non-exempt, then
// plays the event itself.
func (m *EventManager) Play(id string) error {
	m.mu.Lock()
	h, ok := m.events[id]
	if !ok {
		m.mu.Unlock()
		return errs.New(errs.NotFound, "EventManager.Play", "no such event: "+id)
	}
	lower := m.lowerPriorityPlayingLocked(h.src.Priority(), id)
	m.mu.Unlock()

	for _, other := range lower {
		if err := other.src.PriorityPause(); err != nil {
			return err
		}
	}
	if !h.src.DuckExempt() {
		m.duck.EventStarted()
	}
	return h.src.Play()
}

// Stop stops the named event: reverses EventStarted() if applicable,
// then resumes any event this one had priority-paused and that has no
// remaining higher-priority event still playing.
func (m *EventManager) Stop(id string) error {
	m.mu.Lock()
	h, ok := m.events[id]
	if !ok {
		m.mu.Unlock()
		return errs.New(errs.NotFound, "EventManager.Stop", "no such event: "+id)
	}
	m.mu.Unlock()

	if err := h.src.Stop(); err != nil {
		return err
	}
	if !h.src.DuckExempt() {
		m.duck.EventStopped()
	}
	m.resumeEligible()
	return nil
}

// Deregister drops the event from the active set, routed here so runtime wiring has one place to react to a
// self-stopping (exhausted) event.
func (m *EventManager) Deregister(id string) {
	m.mu.Lock()
	delete(m.events, id)
	m.mu.Unlock()
	m.resumeEligible()
}

// lowerPriorityPlayingLocked must be called with m.mu held.
func (m *EventManager) lowerPriorityPlayingLocked(priority int, excludeID string) []*eventHandle {
	var out []*eventHandle
	for id, h := range m.events {
		if id == excludeID {
			continue
		}
		if h.src.Priority() < priority && h.src.State() == state.Playing {
			out = append(out, h)
		}
	}
	return out
}

// resumeEligible resumes every priority-paused event with no
// higher-priority event still playing.
func (m *EventManager) resumeEligible() {
	m.mu.Lock()
	var toResume []*eventHandle
	for _, h := range m.events {
		if h.src.State() != state.Paused {
			continue
		}
		blocked := false
		for _, other := range m.events {
			if other.src.State() == state.Playing && other.src.Priority() > h.src.Priority() {
				blocked = true
				break
			}
		}
		if !blocked {
			toResume = append(toResume, h)
		}
	}
	m.mu.Unlock()

	for _, h := range toResume {
		h.src.PriorityResume() //nolint:errcheck
	}
}
