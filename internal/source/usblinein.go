package source

import (
	"context"
	"log/slog"
	"time"

	"audiorack/internal/pcm"
	"audiorack/internal/state"
)

// PortReserver is the narrow devicemgr surface UsbLineIn needs (spec
// §4.1/§4.2: reserve on initialize, release on dispose).
type PortReserver interface {
	ReserveUSBPort(path, owner string) error
	ReleaseUSBPort(path string)
}

// CaptureOpener opens a capture stream for a given port, falling back to
// the first available device when the requested port has no matching
// capture device (spec §4.2). Abstracted for testing, the way the
// teacher abstracts portaudio behind paStream (rustyguts-bken/client/audio.go).
type CaptureOpener interface {
	// OpenCapture returns a ring fed by a background capture task, and
	// the resolved device name actually opened (which may differ from
	// requested when falling back).
	OpenCapture(requestedPort string, depth int) (ring *pcm.Ring, resolvedDevice string, err error)
}

// UsbLineIn captures from turntable/generic USB line-in devices. Not
// seekable, no duration, no queue (spec §4.2).
type UsbLineIn struct {
	*Base

	reserver PortReserver
	opener   CaptureOpener

	usbPort  string
	ring     *pcm.Ring
	reserved bool
}

// NewUsbLineIn constructs a UsbLineIn bound to usbPort. name is the
// display name (e.g. "Turntable" or "Line In").
func NewUsbLineIn(id, name, usbPort string, reserver PortReserver, opener CaptureOpener) *UsbLineIn {
	return &UsbLineIn{
		Base:     NewBase(id, name, "UsbLineIn", CategoryPrimary, Capabilities{}),
		reserver: reserver,
		opener:   opener,
		usbPort:  usbPort,
		ring:     pcm.NewRing(ringDepth),
	}
}

// Initialize reserves the USB port and opens capture, falling back to
// the first available capture device with a logged warning if the
// requested port has no matching device (spec §4.2).
func (u *UsbLineIn) Initialize(ctx context.Context) error {
	if err := u.RequireState("UsbLineIn.Initialize", state.Created, state.Error); err != nil {
		return err
	}
	u.Machine().Transition(state.Initializing)

	if err := u.reserver.ReserveUSBPort(u.usbPort, u.ID()); err != nil {
		u.Machine().Fail(err)
		return err
	}
	u.reserved = true

	ring, resolved, err := u.opener.OpenCapture(u.usbPort, ringDepth)
	if err != nil {
		u.reserver.ReleaseUSBPort(u.usbPort)
		u.reserved = false
		u.Machine().Fail(err)
		return err
	}
	if resolved != u.usbPort {
		slog.Warn("usb line-in: requested capture device unavailable, fell back",
			"source_id", u.ID(), "requested", u.usbPort, "resolved", resolved)
	}
	u.ring = ring

	u.Machine().Transition(state.Ready)
	return nil
}

func (u *UsbLineIn) Play() error {
	if err := u.RequireState("UsbLineIn.Play", state.Ready, state.Stopped, state.Paused); err != nil {
		return err
	}
	u.Machine().Transition(state.Playing)
	return nil
}

func (u *UsbLineIn) Pause() error {
	if err := u.RequireState("UsbLineIn.Pause", state.Playing); err != nil {
		return err
	}
	u.Machine().Transition(state.Paused)
	return nil
}

func (u *UsbLineIn) Resume() error {
	if err := u.RequireState("UsbLineIn.Resume", state.Paused); err != nil {
		return err
	}
	u.Machine().Transition(state.Playing)
	return nil
}

func (u *UsbLineIn) Stop() error {
	if err := u.RequireState("UsbLineIn.Stop", state.Playing, state.Paused); err != nil {
		return err
	}
	u.Machine().Transition(state.Stopped)
	return nil
}

// Seek always fails: UsbLineIn is a live capture, never seekable (spec
// §4.2).
func (u *UsbLineIn) Seek(time.Duration) error {
	return ErrNotSupported("UsbLineIn.Seek")
}

// Dispose releases the USB port reservation (spec §3 invariant: "A
// USB-bound source holds its reserved port for exactly the duration of
// its lifetime").
func (u *UsbLineIn) Dispose() error {
	already := u.Machine().Dispose()
	if already {
		return nil
	}
	if u.reserved {
		u.reserver.ReleaseUSBPort(u.usbPort)
		u.reserved = false
	}
	return nil
}

func (u *UsbLineIn) SoundComponent() SampleProducer { return &RingProducer{Ring: u.ring} }
