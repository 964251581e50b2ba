package source

import (
	"context"
	"sync"
	"time"

	"audiorack/internal/errs"
	"audiorack/internal/pcm"
	"audiorack/internal/state"
)

// Band names a tunable radio band (spec §3: "band ∈ {AM, FM, WB, VHF,
// SW}").
type Band string

const (
	BandFM  Band = "FM"
	BandAM  Band = "AM"
	BandWB  Band = "WB"  // NOAA weather-band, 7 channels 162.400-162.550 MHz
	BandVHF Band = "VHF" // VHF airband, 108.0-137.0 MHz
	BandSW  Band = "SW"  // shortwave, 1711-30000 kHz
)

// bandRanges bounds valid frequencies per band, kHz for AM/SW and MHz
// for FM/WB/VHF (spec §3, §4.2 "frequency must be a valid value for
// the selected band").
var bandRanges = map[Band][2]float64{
	BandFM:  {87.5, 108.0},
	BandAM:  {520, 1710},
	BandWB:  {162.400, 162.550},
	BandVHF: {108.0, 137.0},
	BandSW:  {1711, 30000},
}

// bandSteps is the minimum tuning increment per band.
var bandSteps = map[Band]float64{
	BandFM:  0.1,
	BandAM:  10,
	BandWB:  0.025,
	BandVHF: 0.025,
	BandSW:  5,
}

// ScanDirection names which way ScanStart sweeps the current band
// (spec §3: "scan_direction ∈ {Up, Down}?").
type ScanDirection string

const (
	ScanUp   ScanDirection = "up"
	ScanDown ScanDirection = "down"
)

// equalizerModes is the closed set of equalizer presets accepted by
// set_equalizer_mode (spec §4.2: "invalid ... equalizer string ->
// InvalidArgument"). No EQ vocabulary is grounded anywhere in the pack,
// so these are plain descriptive presets rather than hardware-specific
// band names.
var equalizerModes = map[string]bool{
	"flat":       true,
	"rock":       true,
	"pop":        true,
	"jazz":       true,
	"classical":  true,
	"talk":       true,
	"bass-boost": true,
}

// scanStepInterval paces the autonomous scan sweep; fast enough to feel
// responsive, slow enough to let the tuner settle before Signal() is
// sampled.
const scanStepInterval = 150 * time.Millisecond

// scanSignalThreshold is the minimum reported signal strength that
// counts as "found a station" and stops an in-progress scan.
const scanSignalThreshold = 25.0

// RadioPreset is one saved (band, frequency) station (spec §4.2, §4.9).
type RadioPreset struct {
	ID        string
	Name      string
	Band      Band
	Frequency float64
}

// PresetStore persists radio presets, enforcing (band, frequency)
// uniqueness at the storage layer (spec §4.9 S7: duplicate (band,freq)
// returns Conflict).
type PresetStore interface {
	ListPresets() ([]RadioPreset, error)
	SavePreset(p RadioPreset) error
	DeletePreset(id string) error
}

// Tuner drives the actual hardware/SDR tuning operation, abstracted so
// SdrRadio can be tested without real RF hardware (spec §4.2 design
// note: hardware details live behind a narrow interface, following the
// teacher's paStream split, rustyguts-bken/client/audio.go).
type Tuner interface {
	Tune(band Band, frequencyKHz float64) error
	SetGain(db float64) error
	SetAutoGain(on bool) error
	SetEqualizerMode(mode string) error
	SetDeviceVolume(v float64) error
	// Signal reports the current reception quality, used both for the
	// published radio state (spec §3: "signal strength 0-100, stereo
	// flag") and to decide when an autonomous scan has found a station.
	Signal() (strength float64, stereo bool)
	Capture() *pcm.Ring
}

// RadioState is the full published snapshot of a tuned SdrRadio:
// frequency and step in the band's own unit as in bandRanges/bandSteps
// (MHz for FM/WB/VHF, kHz for AM/SW; not Hz), band, signal strength
// 0-100, stereo flag, scan state, equalizer mode, device volume 0-100,
// gain, auto-gain, running.
type RadioState struct {
	Band           Band
	Frequency      float64
	Step           float64
	SignalStrength float64
	Stereo         bool
	IsScanning     bool
	ScanDirection  ScanDirection
	EqualizerMode  string
	DeviceVolume   float64
	Gain           float64
	AutoGain       bool
	Running        bool
}

// SdrRadio tunes AM/FM/WB/VHF/SW bands via a Tuner, with presets,
// autonomous scanning and identification-gated metadata (spec §3,
// §4.2, §4.9, §4.10).
type SdrRadio struct {
	*Base

	tuner   Tuner
	presets PresetStore

	mu            sync.Mutex
	band          Band
	frequency     float64
	gain          float64
	autoGain      bool
	equalizerMode string
	deviceVolume  float64
	isScanning    bool
	scanDirection ScanDirection
	scanCancel    context.CancelFunc

	identifiedAt time.Time
}

// NewSdrRadio constructs an SdrRadio defaulted to FM 87.5, flat EQ, and
// half device volume.
func NewSdrRadio(id, name string, tuner Tuner, presets PresetStore) *SdrRadio {
	return &SdrRadio{
		Base:          NewBase(id, name, "SdrRadio", CategoryPrimary, Capabilities{}),
		tuner:         tuner,
		presets:       presets,
		band:          BandFM,
		frequency:     87.5,
		equalizerMode: "flat",
		deviceVolume:  50,
	}
}

func (r *SdrRadio) Initialize(ctx context.Context) error {
	if err := r.RequireState("SdrRadio.Initialize", state.Created, state.Error); err != nil {
		return err
	}
	r.Machine().Transition(state.Initializing)
	if err := r.tuner.Tune(r.band, r.frequency); err != nil {
		r.Machine().Fail(err)
		return err
	}
	r.Machine().Transition(state.Ready)
	return nil
}

// SetFrequency validates the requested value falls within the requested
// band's range (spec §4.2); the value is not snapped to the band's step.
// Tuning clears
// any identification overlay; scanning is left running since a scan
// drives SetFrequency itself.
func (r *SdrRadio) SetFrequency(band Band, freq float64) error {
	rng, ok := bandRanges[band]
	if !ok {
		return errs.New(errs.InvalidArgument, "SdrRadio.SetFrequency", "unknown band")
	}
	if freq < rng[0] || freq > rng[1] {
		return errs.New(errs.InvalidArgument, "SdrRadio.SetFrequency", "frequency out of range for band")
	}
	if err := r.tuner.Tune(band, freq); err != nil {
		return err
	}
	r.mu.Lock()
	r.band = band
	r.frequency = freq
	r.mu.Unlock()
	r.resetIdentification()
	return nil
}

// StepFrequency moves up/down by the band's step size, clamped to range
// (spec §4.2 "step" operation).
func (r *SdrRadio) StepFrequency(up bool) error {
	r.mu.Lock()
	band := r.band
	freq := r.frequency
	r.mu.Unlock()

	step := bandSteps[band]
	next := freq + step
	if !up {
		next = freq - step
	}
	rng := bandRanges[band]
	if next < rng[0] {
		next = rng[0]
	}
	if next > rng[1] {
		next = rng[1]
	}
	return r.SetFrequency(band, next)
}

func (r *SdrRadio) SetGain(db float64) error {
	if err := r.tuner.SetGain(db); err != nil {
		return err
	}
	r.mu.Lock()
	r.gain = db
	r.autoGain = false
	r.mu.Unlock()
	return nil
}

func (r *SdrRadio) SetAutoGain(on bool) error {
	if err := r.tuner.SetAutoGain(on); err != nil {
		return err
	}
	r.mu.Lock()
	r.autoGain = on
	r.mu.Unlock()
	return nil
}

// SetEqualizerMode validates mode against the closed preset set before
// delegating to the tuner (spec §3, §4.2: "invalid ... equalizer
// string -> InvalidArgument").
func (r *SdrRadio) SetEqualizerMode(mode string) error {
	if !equalizerModes[mode] {
		return errs.New(errs.InvalidArgument, "SdrRadio.SetEqualizerMode", "unknown equalizer mode")
	}
	if err := r.tuner.SetEqualizerMode(mode); err != nil {
		return err
	}
	r.mu.Lock()
	r.equalizerMode = mode
	r.mu.Unlock()
	return nil
}

// SetDeviceVolume validates v falls in [0,100] before delegating to the
// tuner (spec §3, §4.2: "device volume ∈ [0,100]").
func (r *SdrRadio) SetDeviceVolume(v float64) error {
	if v < 0 || v > 100 {
		return errs.New(errs.InvalidArgument, "SdrRadio.SetDeviceVolume", "device volume out of range [0,100]")
	}
	if err := r.tuner.SetDeviceVolume(v); err != nil {
		return err
	}
	r.mu.Lock()
	r.deviceVolume = v
	r.mu.Unlock()
	return nil
}

// ScanStart begins an autonomous sweep of the current band in
// direction, stepping at scanStepInterval until a station is found
// (tuner-reported signal strength crosses scanSignalThreshold), the
// band edge is reached, or ScanStop is called (spec §3, §4.2:
// "scan_start(direction)").
func (r *SdrRadio) ScanStart(direction ScanDirection) error {
	if direction != ScanUp && direction != ScanDown {
		return errs.New(errs.InvalidArgument, "SdrRadio.ScanStart", "scan direction must be up or down")
	}
	r.mu.Lock()
	if r.isScanning {
		r.mu.Unlock()
		return errs.New(errs.IllegalState, "SdrRadio.ScanStart", "scan already in progress")
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.isScanning = true
	r.scanDirection = direction
	r.scanCancel = cancel
	r.mu.Unlock()

	go r.runScan(ctx, direction)
	return nil
}

func (r *SdrRadio) runScan(ctx context.Context, direction ScanDirection) {
	ticker := time.NewTicker(scanStepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.StepFrequency(direction == ScanUp); err != nil {
				r.stopScan()
				return
			}
			if strength, _ := r.tuner.Signal(); strength >= scanSignalThreshold {
				r.stopScan()
				return
			}
			r.mu.Lock()
			rng := bandRanges[r.band]
			atEdge := r.frequency == rng[0] || r.frequency == rng[1]
			r.mu.Unlock()
			if atEdge {
				r.stopScan()
				return
			}
		}
	}
}

// ScanStop ends an in-progress scan (spec §3, §4.2: "scan_stop").
func (r *SdrRadio) ScanStop() error {
	r.mu.Lock()
	if !r.isScanning {
		r.mu.Unlock()
		return errs.New(errs.IllegalState, "SdrRadio.ScanStop", "no scan in progress")
	}
	cancel := r.scanCancel
	r.mu.Unlock()
	cancel()
	r.stopScan()
	return nil
}

func (r *SdrRadio) stopScan() {
	r.mu.Lock()
	r.isScanning = false
	r.scanCancel = nil
	r.mu.Unlock()
}

func (r *SdrRadio) Frequency() (Band, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.band, r.frequency
}

// RadioState returns the full published snapshot described by spec §3.
func (r *SdrRadio) RadioState() RadioState {
	strength, stereo := r.tuner.Signal()

	r.mu.Lock()
	defer r.mu.Unlock()
	return RadioState{
		Band:           r.band,
		Frequency:      r.frequency,
		Step:           bandSteps[r.band],
		SignalStrength: strength,
		Stereo:         stereo,
		IsScanning:     r.isScanning,
		ScanDirection:  r.scanDirection,
		EqualizerMode:  r.equalizerMode,
		DeviceVolume:   r.deviceVolume,
		Gain:           r.gain,
		AutoGain:       r.autoGain,
		Running:        r.Machine().Current() == state.Playing,
	}
}

// SavePreset persists the current tuning as a named preset (spec §4.9
// S7). Conflict is surfaced verbatim from the store.
func (r *SdrRadio) SavePreset(name string) error {
	if r.presets == nil {
		return ErrNotSupported("SdrRadio.SavePreset")
	}
	band, freq := r.Frequency()
	return r.presets.SavePreset(RadioPreset{ID: name, Name: name, Band: band, Frequency: freq})
}

func (r *SdrRadio) ListPresets() ([]RadioPreset, error) {
	if r.presets == nil {
		return nil, ErrNotSupported("SdrRadio.ListPresets")
	}
	return r.presets.ListPresets()
}

func (r *SdrRadio) DeletePreset(id string) error {
	if r.presets == nil {
		return ErrNotSupported("SdrRadio.DeletePreset")
	}
	return r.presets.DeletePreset(id)
}

// RecallPreset tunes to a stored preset by id.
func (r *SdrRadio) RecallPreset(id string) error {
	presets, err := r.ListPresets()
	if err != nil {
		return err
	}
	for _, p := range presets {
		if p.ID == id {
			return r.SetFrequency(p.Band, p.Frequency)
		}
	}
	return errs.New(errs.NotFound, "SdrRadio.RecallPreset", "no such preset")
}

// IdentifyTrack overlays station-identification metadata (spec §4.10
// S8: "identification overlays, rather than replaces, the base
// metadata; a re-tune clears the overlay").
func (r *SdrRadio) IdentifyTrack(title, artist string, confidence float64) {
	r.identifiedAt = time.Now()
	r.MergeMetadata(Metadata{
		KeyTitle:              title,
		KeyArtist:             artist,
		KeyIdentificationConf: confidence,
		KeyMetadataSource:     "identification",
	})
}

func (r *SdrRadio) resetIdentification() {
	r.identifiedAt = time.Time{}
	r.SetMetadata(Metadata{})
}

func (r *SdrRadio) Play() error {
	if err := r.RequireState("SdrRadio.Play", state.Ready, state.Stopped, state.Paused); err != nil {
		return err
	}
	r.Machine().Transition(state.Playing)
	return nil
}

func (r *SdrRadio) Pause() error {
	if err := r.RequireState("SdrRadio.Pause", state.Playing); err != nil {
		return err
	}
	r.Machine().Transition(state.Paused)
	return nil
}

func (r *SdrRadio) Resume() error {
	if err := r.RequireState("SdrRadio.Resume", state.Paused); err != nil {
		return err
	}
	r.Machine().Transition(state.Playing)
	return nil
}

func (r *SdrRadio) Stop() error {
	if err := r.RequireState("SdrRadio.Stop", state.Playing, state.Paused); err != nil {
		return err
	}
	r.mu.Lock()
	scanning := r.isScanning
	r.mu.Unlock()
	if scanning {
		r.ScanStop() //nolint:errcheck
	}
	r.Machine().Transition(state.Stopped)
	return nil
}

// Seek is not supported: radio has no concept of position (spec §4.2).
func (r *SdrRadio) Seek(time.Duration) error {
	return ErrNotSupported("SdrRadio.Seek")
}

func (r *SdrRadio) Dispose() error {
	already := r.Machine().Dispose()
	if already {
		return nil
	}
	r.mu.Lock()
	cancel := r.scanCancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func (r *SdrRadio) SoundComponent() SampleProducer { return &RingProducer{Ring: r.tuner.Capture()} }
