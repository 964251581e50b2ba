package devicemgr

import (
	"fmt"
	"strconv"

	"github.com/gordonklaus/portaudio"

	"audiorack/internal/errs"
)

// PortAudioEnumerator lists real sound devices via portaudio, the library
// the teacher uses throughout its client audio engine
// (rustyguts-bken/client/audio.go).
type PortAudioEnumerator struct{}

// NewPortAudioEnumerator initializes the portaudio host API. Callers must
// call Close when finished.
func NewPortAudioEnumerator() (*PortAudioEnumerator, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, errs.Wrap(errs.External, "devicemgr.NewPortAudioEnumerator", "initialize portaudio", err)
	}
	return &PortAudioEnumerator{}, nil
}

// Close terminates the portaudio host API.
func (p *PortAudioEnumerator) Close() error {
	return portaudio.Terminate()
}

func toDevice(idx int, d *portaudio.DeviceInfo, isDefault bool) Device {
	return Device{
		ID:          strconv.Itoa(idx),
		Name:        d.Name,
		IsDefault:   isDefault,
		MaxChannels: maxInt(d.MaxInputChannels, d.MaxOutputChannels),
		SampleRates: []int{int(d.DefaultSampleRate)},
		IsUSB:       looksLikeUSB(d.Name),
		USBPortPath: "",
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// looksLikeUSB is a best-effort heuristic: portaudio doesn't expose a USB
// flag directly, so devices whose host-reported name mentions USB are
// treated as USB-backed for the purposes of §4.1's port arbitration.
func looksLikeUSB(name string) bool {
	for _, needle := range []string{"USB", "usb"} {
		if contains(name, needle) {
			return true
		}
	}
	return false
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// Outputs lists devices with at least one output channel.
func (p *PortAudioEnumerator) Outputs() ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, errs.Wrap(errs.External, "devicemgr.Outputs", "enumerate devices", err)
	}
	def, _ := portaudio.DefaultOutputDevice()
	var out []Device
	for i, d := range devices {
		if d.MaxOutputChannels > 0 {
			out = append(out, toDevice(i, d, def != nil && d.Name == def.Name))
		}
	}
	return out, nil
}

// Inputs lists devices with at least one input channel.
func (p *PortAudioEnumerator) Inputs() ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, errs.Wrap(errs.External, "devicemgr.Inputs", "enumerate devices", err)
	}
	def, _ := portaudio.DefaultInputDevice()
	var out []Device
	for i, d := range devices {
		if d.MaxInputChannels > 0 {
			out = append(out, toDevice(i, d, def != nil && d.Name == def.Name))
		}
	}
	return out, nil
}

// DefaultOutput returns the host's default output device.
func (p *PortAudioEnumerator) DefaultOutput() (*Device, error) {
	d, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return nil, errs.Wrap(errs.External, "devicemgr.DefaultOutput", "query default output", err)
	}
	if d == nil {
		return nil, errs.New(errs.NotFound, "devicemgr.DefaultOutput", "no default output device")
	}
	dev := toDevice(0, d, true)
	dev.ID = fmt.Sprintf("default:%s", d.Name)
	return &dev, nil
}
