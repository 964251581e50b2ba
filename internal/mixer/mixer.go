// Package mixer implements the Master Mixer: the mix graph of
// (source_id, SampleProducer, gain, balance, effective_duck) rows, the
// balance law and soft-clipped summation, and the atomic snapshot swap
// that keeps the pull loop lock-free (spec §4.4, §5).
package mixer

import (
	"sync"
	"sync/atomic"

	"audiorack/internal/errs"
	"audiorack/internal/pcm"
)

// Producer is pulled once per tick and must not block on I/O, a lock,
// or allocation (spec §5).
type Producer interface {
	Produce(frames int) pcm.Frame
}

// Row is one mix-graph entry (spec §4.4).
type Row struct {
	SourceID      string
	Producer      Producer
	Gain          float64
	Balance       float64 // [-1,+1]
	EffectiveDuck float64 // multiplied into Gain at mix time; 1.0 = no duck
}

type snapshot struct {
	rows []Row
}

// Mixer owns the mix graph and produces the canonical 48kHz/stereo
// stream. Rows are added/removed atomically via a pointer swap so the
// pull loop (Mix) never takes a lock (spec §4.4: "the pull loop observes
// a consistent snapshot per tick").
type Mixer struct {
	mu       sync.Mutex // guards graph mutation only, never Mix
	snap     atomic.Pointer[snapshot]
	masterGain    atomic.Value // float64
	masterMute    atomic.Bool
	masterBalance atomic.Value // float64
}

// New returns a Mixer at unity master gain, unmuted, centered balance.
func New() *Mixer {
	m := &Mixer{}
	m.snap.Store(&snapshot{})
	m.masterGain.Store(1.0)
	m.masterBalance.Store(0.0)
	return m
}

func (m *Mixer) MasterGain() float64 { return m.masterGain.Load().(float64) }
func (m *Mixer) SetMasterGain(g float64) {
	if g < 0 {
		g = 0
	}
	m.masterGain.Store(g)
}

func (m *Mixer) MasterMute() bool      { return m.masterMute.Load() }
func (m *Mixer) SetMasterMute(b bool)  { m.masterMute.Store(b) }

func (m *Mixer) MasterBalance() float64 { return m.masterBalance.Load().(float64) }
func (m *Mixer) SetMasterBalance(b float64) {
	if b < -1 {
		b = -1
	}
	if b > 1 {
		b = 1
	}
	m.masterBalance.Store(b)
}

// AddRow inserts or replaces a row by SourceID, atomically (spec §4.4).
func (m *Mixer) AddRow(row Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.snap.Load()
	next := make([]Row, 0, len(cur.rows)+1)
	replaced := false
	for _, r := range cur.rows {
		if r.SourceID == row.SourceID {
			next = append(next, row)
			replaced = true
			continue
		}
		next = append(next, r)
	}
	if !replaced {
		next = append(next, row)
	}
	m.snap.Store(&snapshot{rows: next})
}

// RemoveRow drops a row by SourceID.
func (m *Mixer) RemoveRow(sourceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.snap.Load()
	next := make([]Row, 0, len(cur.rows))
	for _, r := range cur.rows {
		if r.SourceID != sourceID {
			next = append(next, r)
		}
	}
	m.snap.Store(&snapshot{rows: next})
}

// SetRowGain updates a row's gain in place (spec §4.4).
func (m *Mixer) SetRowGain(sourceID string, gain float64) error {
	return m.updateRow(sourceID, func(r *Row) { r.Gain = gain })
}

// SetRowBalance updates a row's balance in place.
func (m *Mixer) SetRowBalance(sourceID string, balance float64) error {
	return m.updateRow(sourceID, func(r *Row) { r.Balance = balance })
}

// SetRowDuck updates a row's effective duck multiplier; called by the
// ducking engine/orchestrator wiring (spec §4.5: "per-row effective gain
// applied by the Mixer is source_gain * current_duck_level").
func (m *Mixer) SetRowDuck(sourceID string, duck float64) error {
	return m.updateRow(sourceID, func(r *Row) { r.EffectiveDuck = duck })
}

func (m *Mixer) updateRow(sourceID string, mutate func(*Row)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.snap.Load()
	next := make([]Row, len(cur.rows))
	copy(next, cur.rows)
	found := false
	for i := range next {
		if next[i].SourceID == sourceID {
			mutate(&next[i])
			found = true
		}
	}
	if !found {
		return errs.New(errs.NotFound, "Mixer.updateRow", "no such row: "+sourceID)
	}
	m.snap.Store(&snapshot{rows: next})
	return nil
}

// Rows returns a read-only copy of the current mix graph (for
// diagnostics/tests).
func (m *Mixer) Rows() []Row {
	cur := m.snap.Load()
	out := make([]Row, len(cur.rows))
	copy(out, cur.rows)
	return out
}

// balanceGains implements the balance law (spec §4.4): left gain =
// min(1, 1-balance), right gain = min(1, 1+balance), balance in [-1,1].
func balanceGains(balance float64) (left, right float64) {
	left = 1 - balance
	if left > 1 {
		left = 1
	}
	right = 1 + balance
	if right > 1 {
		right = 1
	}
	return
}

// Mix pulls frames per-channel frames from every row's producer, applies
// per-row gain/balance/duck, sums, applies master gain/mute/balance, and
// soft-clips. Never takes m.mu (spec §5).
func (m *Mixer) Mix(frames int) pcm.Frame {
	snap := m.snap.Load()
	out := pcm.NewFrame(frames)

	for _, row := range snap.rows {
		f := row.Producer.Produce(frames)
		n := f.FrameCount()
		if n > frames {
			n = frames
		}
		left, right := balanceGains(row.Balance)
		gain := row.Gain * row.EffectiveDuck
		for i := 0; i < n; i++ {
			out.Samples[i*pcm.Channels] += f.Samples[i*pcm.Channels] * float32(gain*left)
			out.Samples[i*pcm.Channels+1] += f.Samples[i*pcm.Channels+1] * float32(gain*right)
		}
	}

	masterGain := m.MasterGain()
	if m.MasterMute() {
		masterGain = 0
	}
	mLeft, mRight := balanceGains(m.MasterBalance())
	for i := 0; i < frames; i++ {
		l := out.Samples[i*pcm.Channels] * float32(masterGain*mLeft)
		r := out.Samples[i*pcm.Channels+1] * float32(masterGain*mRight)
		out.Samples[i*pcm.Channels] = pcm.SoftClip(l)
		out.Samples[i*pcm.Channels+1] = pcm.SoftClip(r)
	}
	return out
}
