// Package fanout implements the Output Fan-out module (spec §4.6, §5):
// a single ticker pulls the Master Mixer exactly once per tick and
// distributes identical copies into per-consumer rings, so that
// LocalOutput, HTTPStreamOutput, CastOutput and the Visualization
// Service each get their own drain point without re-invoking Mix
// (which would double-drain every source's producer ring).
//
// Shaped like internal/pcm.Ring's single-producer/single-consumer model
// pushed to N consumers instead of one, the same "one authority feeds
// many bounded queues" pattern internal/bus uses for event delivery.
package fanout

import (
	"context"
	"sync"
	"time"

	"audiorack/internal/pcm"
)

// Puller is the shape every consumer of the mixer's output pulls
// through (matches output.StreamOpener's source func and viz.Puller).
type Puller func(frames int) pcm.Frame

// Mixer is the subset of *mixer.Mixer the fan-out needs.
type Mixer interface {
	Mix(frames int) pcm.Frame
}

const ringDepth = 8

// Fanout owns one ticker task pulling frames size samples from Mixer at
// tickRate and pushing a copy into every registered consumer ring.
type Fanout struct {
	mixer    Mixer
	frames   int
	tickRate time.Duration

	mu    sync.Mutex
	rings map[string]*pcm.Ring
}

// New constructs a Fanout pulling frames-sized chunks from mixer every
// tickRate.
func New(mixer Mixer, frames int, tickRate time.Duration) *Fanout {
	return &Fanout{mixer: mixer, frames: frames, tickRate: tickRate, rings: map[string]*pcm.Ring{}}
}

// AddConsumer registers a named consumer and returns a Puller it should
// use to drain its ring; the puller substitutes silence on underrun so
// it can be safely wired into an Output's non-blocking pull contract.
func (f *Fanout) AddConsumer(name string) Puller {
	f.mu.Lock()
	ring := pcm.NewRing(ringDepth)
	f.rings[name] = ring
	f.mu.Unlock()

	return func(frames int) pcm.Frame {
		fr, ok := ring.Pop()
		if !ok {
			return pcm.NewFrame(frames)
		}
		return fr
	}
}

// RemoveConsumer drops a named consumer's ring.
func (f *Fanout) RemoveConsumer(name string) {
	f.mu.Lock()
	delete(f.rings, name)
	f.mu.Unlock()
}

// Run drives the tick loop until ctx is cancelled.
func (f *Fanout) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.tickRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			f.tick()
		}
	}
}

func (f *Fanout) tick() {
	frame := f.mixer.Mix(f.frames)

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ring := range f.rings {
		ring.Push(frame)
	}
}
