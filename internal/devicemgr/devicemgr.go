// Package devicemgr enumerates audio input/output devices and arbitrates
// exclusive ownership of USB capture/playback ports (spec §4.1).
//
// Device enumeration is abstracted behind the Enumerator interface so the
// manager can run against a real sound card via portaudio or against a
// fake for tests, mirroring the teacher's paStream test-double split
// (rustyguts-bken/client/audio.go, client/audio_test.go).
package devicemgr

import (
	"log/slog"
	"sync"

	"audiorack/internal/errs"
)

// Device describes one enumerated audio device (spec §4.1).
type Device struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsDefault   bool   `json:"is_default"`
	MaxChannels int    `json:"max_channels"`
	SampleRates []int  `json:"sample_rates"`
	IsUSB       bool   `json:"is_usb"`
	USBPortPath string `json:"usb_port_path,omitempty"`
}

// Enumerator abstracts device discovery so Manager can be tested without
// real hardware.
type Enumerator interface {
	Outputs() ([]Device, error)
	Inputs() ([]Device, error)
	DefaultOutput() (*Device, error)
}

// Manager owns device enumeration and the USB port reservation table.
// The reservation table is the system's only authority for USB ownership
// (spec §5): reserve/release/is-in-use are linearizable via a single
// mutex guarding the map, matching the teacher's atomic-counter style of
// "one authority, compare-and-set" shared state.
type Manager struct {
	enum Enumerator

	mu           sync.Mutex
	reservations map[string]string // port path -> owner id

	activeOutputMu sync.RWMutex
	activeOutput   string
}

// New returns a Manager backed by enum.
func New(enum Enumerator) *Manager {
	return &Manager{enum: enum, reservations: make(map[string]string)}
}

// ListOutputs returns available output devices.
func (m *Manager) ListOutputs() ([]Device, error) { return m.enum.Outputs() }

// ListInputs returns available input devices.
func (m *Manager) ListInputs() ([]Device, error) { return m.enum.Inputs() }

// DefaultOutput returns the system default output device, or nil if none.
func (m *Manager) DefaultOutput() (*Device, error) { return m.enum.DefaultOutput() }

// SetOutput atomically records the active output device id. Actual
// device hand-off (closing the old stream, opening the new one at a
// frame boundary) is performed by the LocalOutput, which calls this only
// once the swap is safe; this just makes the choice observable.
func (m *Manager) SetOutput(deviceID string) error {
	if deviceID == "" {
		return errs.New(errs.InvalidArgument, "devicemgr.SetOutput", "device id is required")
	}
	m.activeOutputMu.Lock()
	m.activeOutput = deviceID
	m.activeOutputMu.Unlock()
	slog.Info("device manager: output device set", "device_id", deviceID)
	return nil
}

// ActiveOutput returns the currently selected output device id.
func (m *Manager) ActiveOutput() string {
	m.activeOutputMu.RLock()
	defer m.activeOutputMu.RUnlock()
	return m.activeOutput
}

// IsUSBPortInUse reports whether path is currently reserved.
func (m *Manager) IsUSBPortInUse(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, held := m.reservations[path]
	return held
}

// ReserveUSBPort attempts to reserve path for owner. Fails with Conflict
// if already held by a different owner (spec §4.1, S4). Reserving a port
// already held by the same owner is idempotent.
func (m *Manager) ReserveUSBPort(path, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, held := m.reservations[path]; held {
		if cur == owner {
			return nil
		}
		return errs.New(errs.Conflict, "devicemgr.ReserveUSBPort", "port "+path+" already held")
	}
	m.reservations[path] = owner
	slog.Info("device manager: usb port reserved", "port", path, "owner", owner)
	return nil
}

// ReleaseUSBPort releases path, a no-op if not currently held (spec
// §4.1, S4).
func (m *Manager) ReleaseUSBPort(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if owner, held := m.reservations[path]; held {
		delete(m.reservations, path)
		slog.Info("device manager: usb port released", "port", path, "owner", owner)
	}
}

// Refresh re-enumerates devices. With the Enumerator abstraction this is
// simply a hint; live enumerators refresh on every call.
func (m *Manager) Refresh() error {
	_, err := m.enum.Outputs()
	return err
}
