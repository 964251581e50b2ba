// Package config defines the appliance's persisted configuration
// sections (spec §6) and a Manager that loads/saves them through
// internal/store. Unlike the distilled spec's Design Note (c) — which
// leaves configuration-update persistence unfinished pending a
// persistence layer — this appliance has one (internal/store), so
// updates round-trip for real rather than returning NotImplemented.
package config

import (
	"encoding/json"
	"sync"

	"audiorack/internal/errs"
	"audiorack/internal/store"
)

// Audio holds the default-source and ducking tunables (spec §6).
type Audio struct {
	DefaultSource     string  `json:"default_source"`
	DuckingPercentage float64 `json:"ducking_percentage"`
	DuckingPolicy     string  `json:"ducking_policy"`
	AttackMs          int     `json:"attack_ms"`
	ReleaseMs         int     `json:"release_ms"`
}

// Visualizer holds the analyzer tunables (spec §6, §4.9).
type Visualizer struct {
	FFTSize             int     `json:"fft_size"`
	WaveformSampleCount int     `json:"waveform_sample_count"`
	PeakHoldMs          int     `json:"peak_hold_ms"`
	ApplyWindow         bool    `json:"apply_window"`
	Smoothing           float64 `json:"smoothing"`
}

// LocalOutputConfig mirrors spec §6's Output.local section.
type LocalOutputConfig struct {
	Enabled           bool    `json:"enabled"`
	PreferredDeviceID string  `json:"preferred_device_id"`
	DefaultVolume     float64 `json:"default_volume"`
}

// HTTPStreamConfig mirrors spec §6's Output.http_stream section.
type HTTPStreamConfig struct {
	Enabled      bool   `json:"enabled"`
	Port         int    `json:"port"`
	EndpointPath string `json:"endpoint_path"`
	SampleRate   int    `json:"sample_rate"`
	Channels     int    `json:"channels"`
}

// GoogleCastConfig mirrors spec §6's Output.google_cast section.
type GoogleCastConfig struct {
	Enabled           bool    `json:"enabled"`
	DiscoveryTimeoutS int     `json:"discovery_timeout_s"`
	DefaultVolume     float64 `json:"default_volume"`
}

// Output bundles the three output sub-sections.
type Output struct {
	Local      LocalOutputConfig `json:"local"`
	HTTPStream HTTPStreamConfig  `json:"http_stream"`
	GoogleCast GoogleCastConfig  `json:"google_cast"`
}

// Full is the complete configuration document, the shape returned by
// the "get full" endpoint (spec §6).
type Full struct {
	Audio      Audio      `json:"audio"`
	Visualizer Visualizer `json:"visualizer"`
	Output     Output     `json:"output"`
}

// Defaults returns the appliance's out-of-the-box configuration.
func Defaults() Full {
	return Full{
		Audio: Audio{
			DuckingPercentage: 70,
			DuckingPolicy:     "FadeSmooth",
			AttackMs:          50,
			ReleaseMs:         400,
		},
		Visualizer: Visualizer{
			FFTSize:             2048,
			WaveformSampleCount: 512,
			PeakHoldMs:          500,
			ApplyWindow:         true,
			Smoothing:           0.3,
		},
		Output: Output{
			Local:      LocalOutputConfig{Enabled: true, DefaultVolume: 1.0},
			HTTPStream: HTTPStreamConfig{Enabled: true, Port: 8081, EndpointPath: "/stream/audio", SampleRate: 48000, Channels: 2},
			GoogleCast: GoogleCastConfig{Enabled: false, DiscoveryTimeoutS: 5, DefaultVolume: 1.0},
		},
	}
}

const (
	sectionAudio      = "Audio"
	sectionVisualizer = "Visualizer"
	sectionOutput     = "Output"
)

// Manager loads/persists Full through internal/store, section by
// section, following the teacher's settings-table JSON-blob pattern.
type Manager struct {
	mu sync.Mutex
	db *store.Store
}

func NewManager(db *store.Store) *Manager {
	return &Manager{db: db}
}

// Get returns the full configuration, substituting Defaults() for any
// section not yet persisted.
func (m *Manager) Get() (Full, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	full := Defaults()
	if err := m.loadSection(sectionAudio, &full.Audio); err != nil {
		return Full{}, err
	}
	if err := m.loadSection(sectionVisualizer, &full.Visualizer); err != nil {
		return Full{}, err
	}
	if err := m.loadSection(sectionOutput, &full.Output); err != nil {
		return Full{}, err
	}
	return full, nil
}

func (m *Manager) loadSection(name string, out any) error {
	raw, ok, err := m.db.GetConfigSection(name)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return json.Unmarshal([]byte(raw), out)
}

// Update replaces one top-level section's serialized value wholesale
// (the "update(section, key, value)" operation of §6 is modeled here as
// load-full-section / merge-one-key / store-full-section, since the
// persisted unit is the section, not an individual key).
func (m *Manager) Update(section, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch section {
	case sectionAudio:
		var a Audio
		if err := m.loadOrDefault(sectionAudio, &a, Defaults().Audio); err != nil {
			return err
		}
		if err := setField(&a, key, value); err != nil {
			return err
		}
		return m.saveSection(sectionAudio, a)
	case sectionVisualizer:
		var v Visualizer
		if err := m.loadOrDefault(sectionVisualizer, &v, Defaults().Visualizer); err != nil {
			return err
		}
		if err := setField(&v, key, value); err != nil {
			return err
		}
		return m.saveSection(sectionVisualizer, v)
	case sectionOutput:
		var o Output
		if err := m.loadOrDefault(sectionOutput, &o, Defaults().Output); err != nil {
			return err
		}
		if err := setField(&o, key, value); err != nil {
			return err
		}
		return m.saveSection(sectionOutput, o)
	default:
		return errs.New(errs.InvalidArgument, "config.Update", "unknown section: "+section)
	}
}

func (m *Manager) loadOrDefault(name string, out any, def any) error {
	raw, ok, err := m.db.GetConfigSection(name)
	if err != nil {
		return err
	}
	if !ok {
		b, _ := json.Marshal(def)
		return json.Unmarshal(b, out)
	}
	return json.Unmarshal([]byte(raw), out)
}

func (m *Manager) saveSection(name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return m.db.SetConfigSection(name, string(b))
}

// setField assigns value into the JSON field named key on v (a pointer
// to one of the section structs), round-tripping through JSON so the
// caller doesn't need a reflect-based field walk for what is, at
// appliance scale, a handful of scalar fields per section.
func setField(v any, key string, value any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return errs.New(errs.InvalidArgument, "config.setField", "unknown key: "+key)
	}
	vb, err := json.Marshal(value)
	if err != nil {
		return errs.New(errs.InvalidArgument, "config.setField", "unencodable value for "+key)
	}
	m[key] = vb
	merged, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(merged, v)
}
