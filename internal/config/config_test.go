package config

import (
	"testing"

	"audiorack/internal/errs"
	"audiorack/internal/store"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewManager(db)
}

func TestGetReturnsDefaultsWhenUnset(t *testing.T) {
	m := newManager(t)
	full, err := m.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if full.Audio.DuckingPercentage != 70 || full.Visualizer.FFTSize != 2048 || !full.Output.Local.Enabled {
		t.Fatalf("expected defaults, got %+v", full)
	}
}

func TestUpdatePersistsAndRoundTrips(t *testing.T) {
	m := newManager(t)

	if err := m.Update("Audio", "ducking_percentage", 55.0); err != nil {
		t.Fatalf("Update: %v", err)
	}
	full, err := m.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if full.Audio.DuckingPercentage != 55 {
		t.Fatalf("expected updated ducking_percentage, got %v", full.Audio.DuckingPercentage)
	}
	// Unrelated fields in the same section must survive the update.
	if full.Audio.DuckingPolicy != "FadeSmooth" {
		t.Fatalf("expected sibling field preserved, got %q", full.Audio.DuckingPolicy)
	}
}

func TestUpdateNestedOutputSection(t *testing.T) {
	m := newManager(t)
	if err := m.Update("Output", "local", LocalOutputConfig{Enabled: false, PreferredDeviceID: "usb-0", DefaultVolume: 0.5}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	full, err := m.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if full.Output.Local.Enabled || full.Output.Local.PreferredDeviceID != "usb-0" {
		t.Fatalf("expected nested local output updated, got %+v", full.Output.Local)
	}
	if full.Output.HTTPStream.Port != 8081 {
		t.Fatalf("expected sibling sub-section preserved, got %+v", full.Output.HTTPStream)
	}
}

func TestUpdateUnknownSectionReturnsInvalidArgument(t *testing.T) {
	m := newManager(t)
	err := m.Update("Bogus", "key", 1)
	if !errs.Is(err, errs.InvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestUpdateUnknownKeyReturnsInvalidArgument(t *testing.T) {
	m := newManager(t)
	err := m.Update("Audio", "bogus_key", 1)
	if !errs.Is(err, errs.InvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}
