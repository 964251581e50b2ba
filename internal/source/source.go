// Package source implements the uniform AudioSource contract (spec §4.2)
// and its fixed set of variants: FilePlayer, SdrRadio, UsbLineIn and
// StreamingService. All variants share the lifecycle state machine of
// internal/state and embed Base for the common volume/metadata/position
// bookkeeping, following the teacher's pattern of a small shared struct
// (AudioEngine) with variant-specific files layered on top
// (rustyguts-bken/client/audio.go).
package source

import (
	"context"
	"sync"
	"time"

	"audiorack/internal/errs"
	"audiorack/internal/pcm"
	"audiorack/internal/state"
)

// Category distinguishes primary (music/program) sources from short-lived
// event overlays (spec §3). AudioSource variants are always Primary;
// EventSource (internal/event) is always Event.
type Category int

const (
	CategoryPrimary Category = iota
	CategoryEvent
)

// Capabilities declares which optional operations a source variant
// supports (spec §3).
type Capabilities struct {
	Seekable         bool
	HasQueue         bool
	SupportsNext     bool
	SupportsPrevious bool
	SupportsShuffle  bool
	SupportsRepeat   bool
}

// SampleProducer is pulled by the mixer once per tick. Implementations
// must never block: a source task decodes ahead of time into a ring
// (internal/pcm.Ring) and Produce only drains it, substituting silence
// on underrun (spec §5: "the mixer pull must not block on I/O, locks, or
// allocation").
type SampleProducer interface {
	Produce(frames int) pcm.Frame
}

// RingProducer adapts a pcm.Ring into a SampleProducer, the shape every
// variant's producer task feeds.
type RingProducer struct {
	Ring *pcm.Ring
}

// Produce drains up to frames per-channel frames from the ring,
// substituting silence when the ring underruns.
func (p *RingProducer) Produce(frames int) pcm.Frame {
	out := pcm.NewFrame(frames)
	filled := 0
	for filled < frames {
		f, ok := p.Ring.Pop()
		if !ok {
			break
		}
		n := f.FrameCount()
		if n == 0 {
			continue
		}
		copy(out.Samples[filled*pcm.Channels:], f.Samples)
		filled += n
		if filled >= frames {
			break
		}
	}
	return out
}

// Source is the uniform contract every variant implements (spec §4.2).
type Source interface {
	ID() string
	Name() string
	Type() string
	Category() Category
	Capabilities() Capabilities

	Initialize(ctx context.Context) error
	Play() error
	Pause() error
	Resume() error
	Stop() error
	Seek(position time.Duration) error
	Dispose() error

	State() state.State
	Position() time.Duration
	Duration() *time.Duration
	Metadata() Metadata
	Volume() float64
	SetVolume(v float64) error

	SoundComponent() SampleProducer
	Subscribe(fn func(state.Changed)) func()
}

// Base implements the bookkeeping shared by every variant: the state
// machine, volume clamp-with-epsilon-noop, position/duration/metadata
// storage guarded by a source-local mutex (spec §5: "per-source state
// fields are guarded by a source-local mutex").
type Base struct {
	id       string
	name     string
	typ      string
	category Category
	caps     Capabilities

	machine *state.Machine

	mu       sync.RWMutex
	volume   float64
	position time.Duration
	duration *time.Duration
	metadata Metadata
}

// NewBase constructs a Base at unity volume with default metadata.
func NewBase(id, name, typ string, category Category, caps Capabilities) *Base {
	return &Base{
		id:       id,
		name:     name,
		typ:      typ,
		category: category,
		caps:     caps,
		machine:  state.New(id),
		volume:   1.0,
		metadata: Metadata{},
	}
}

func (b *Base) ID() string                 { return b.id }
func (b *Base) Name() string               { return b.name }
func (b *Base) Type() string               { return b.typ }
func (b *Base) Category() Category         { return b.category }
func (b *Base) Capabilities() Capabilities { return b.caps }
func (b *Base) State() state.State         { return b.machine.Current() }
func (b *Base) Machine() *state.Machine    { return b.machine }

func (b *Base) Subscribe(fn func(state.Changed)) func() { return b.machine.Subscribe(fn) }

func (b *Base) Position() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.position
}

func (b *Base) SetPosition(p time.Duration) {
	b.mu.Lock()
	b.position = p
	b.mu.Unlock()
}

func (b *Base) Duration() *time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.duration
}

func (b *Base) SetDuration(d *time.Duration) {
	b.mu.Lock()
	b.duration = d
	b.mu.Unlock()
}

func (b *Base) Metadata() Metadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.metadata.Clone()
}

func (b *Base) SetMetadata(m Metadata) {
	b.mu.Lock()
	b.metadata = m
	b.mu.Unlock()
}

// MergeMetadata overlays updates onto the existing metadata map,
// preserving keys not present in updates (used by identification
// overlay, spec §4.10 S8).
func (b *Base) MergeMetadata(updates Metadata) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.metadata == nil {
		b.metadata = Metadata{}
	}
	for k, v := range updates {
		b.metadata[k] = v
	}
}

func (b *Base) Volume() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.volume
}

// SetVolume clamps to [0,1]; setting a value within 1e-4 of the current
// value is a no-op (spec §4.2).
func (b *Base) SetVolume(v float64) error {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if abs(v-b.volume) < 1e-4 {
		return nil
	}
	b.volume = v
	return nil
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// RequireState is a convenience wrapper returning an *errs.Error tagged
// with op when the machine isn't in one of valid.
func (b *Base) RequireState(op string, valid ...state.State) error {
	return b.machine.Require(op, valid...)
}

// ErrNotSupported builds the canonical error for an unimplemented
// capability (spec §4.2 StreamingService queue restrictions, §7).
func ErrNotSupported(op string) error {
	return errs.New(errs.NotSupported, op, "not supported by this source variant")
}
