package mixer

import (
	"sync"

	"audiorack/internal/pcm"
)

// StreamConsumer is one subscriber to the mixed output stream: a
// bounded, drop-oldest ring of float32 pcm.Frame chunks, converted to
// 16-bit PCM by PullPCM16 (spec §4.4
// "get_mixed_output_stream(): a multiple-consumer byte pull interface
// ... backed by a bounded ring per consumer with drop-oldest on
// overflow").
type StreamConsumer struct {
	id   int
	ring *pcm.Ring
}

// ID identifies the consumer for Unsubscribe.
func (c *StreamConsumer) ID() int { return c.id }

// Pull returns the next available frame, or ok=false if the ring is
// currently empty.
func (c *StreamConsumer) Pull() (pcm.Frame, bool) { return c.ring.Pop() }

// PullPCM16 returns the next frame serialized to 16-bit LE PCM, or
// nil if the ring is empty.
func (c *StreamConsumer) PullPCM16() []byte {
	f, ok := c.ring.Pop()
	if !ok {
		return nil
	}
	return pcm.ToPCM16LE(f)
}

// Dropped reports how many frames this consumer has lost to overflow.
func (c *StreamConsumer) Dropped() uint64 { return c.ring.Dropped() }

// OutputStream fans a single producer (typically the Mixer) out to
// multiple independent consumer rings (spec §4.4, §4.6 output variants,
// §4.9 visualization taps all share this shape).
type OutputStream struct {
	mu       sync.Mutex
	nextID   int
	consumers map[int]*pcm.Ring
	ringDepth int
}

// NewOutputStream returns a fan-out point whose consumer rings are each
// ringDepth frames deep.
func NewOutputStream(ringDepth int) *OutputStream {
	return &OutputStream{consumers: map[int]*pcm.Ring{}, ringDepth: ringDepth}
}

// Subscribe registers a new consumer and returns a handle to pull from
// it, plus an unsubscribe func.
func (s *OutputStream) Subscribe() (*StreamConsumer, func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	ring := pcm.NewRing(s.ringDepth)
	s.consumers[id] = ring
	s.mu.Unlock()

	consumer := &StreamConsumer{id: id, ring: ring}
	return consumer, func() {
		s.mu.Lock()
		delete(s.consumers, id)
		s.mu.Unlock()
	}
}

// Publish pushes f into every subscribed consumer's ring, drop-oldest on
// overflow (pcm.Ring's own semantics).
func (s *OutputStream) Publish(f pcm.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ring := range s.consumers {
		ring.Push(f)
	}
}

// ConsumerCount reports the number of active subscribers.
func (s *OutputStream) ConsumerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.consumers)
}
