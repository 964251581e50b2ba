package source

import (
	"context"
	"testing"

	"audiorack/internal/errs"
	"audiorack/internal/pcm"
)

type fakeTuner struct {
	tuned   []struct {
		band Band
		freq float64
	}
	gain          float64
	autoGain      bool
	equalizerMode string
	deviceVolume  float64
	ring          *pcm.Ring
	tuneErr       error
	signal        float64
	stereo        bool
}

func newFakeTuner() *fakeTuner { return &fakeTuner{ring: pcm.NewRing(8)} }

func (t *fakeTuner) Tune(band Band, freq float64) error {
	if t.tuneErr != nil {
		return t.tuneErr
	}
	t.tuned = append(t.tuned, struct {
		band Band
		freq float64
	}{band, freq})
	return nil
}
func (t *fakeTuner) SetGain(db float64) error              { t.gain = db; return nil }
func (t *fakeTuner) SetAutoGain(on bool) error              { t.autoGain = on; return nil }
func (t *fakeTuner) SetEqualizerMode(mode string) error     { t.equalizerMode = mode; return nil }
func (t *fakeTuner) SetDeviceVolume(v float64) error        { t.deviceVolume = v; return nil }
func (t *fakeTuner) Signal() (float64, bool)                { return t.signal, t.stereo }
func (t *fakeTuner) Capture() *pcm.Ring                      { return t.ring }

type fakePresetStore struct {
	presets map[string]RadioPreset
}

func newFakePresetStore() *fakePresetStore { return &fakePresetStore{presets: map[string]RadioPreset{}} }

func (s *fakePresetStore) ListPresets() ([]RadioPreset, error) {
	var out []RadioPreset
	for _, p := range s.presets {
		out = append(out, p)
	}
	return out, nil
}

func (s *fakePresetStore) SavePreset(p RadioPreset) error {
	for _, existing := range s.presets {
		if existing.ID != p.ID && existing.Band == p.Band && existing.Frequency == p.Frequency {
			return errs.New(errs.Conflict, "SavePreset", "duplicate band/frequency")
		}
	}
	s.presets[p.ID] = p
	return nil
}

func (s *fakePresetStore) DeletePreset(id string) error {
	delete(s.presets, id)
	return nil
}

func TestSdrRadioInitializeDefaultsFM(t *testing.T) {
	tuner := newFakeTuner()
	r := NewSdrRadio("radio-1", "Radio", tuner, nil)
	if err := r.Initialize(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	band, freq := r.Frequency()
	if band != BandFM || freq != 87.5 {
		t.Fatalf("expected default FM 87.5, got %v %v", band, freq)
	}
}

func TestSdrRadioSetFrequencyValidatesRange(t *testing.T) {
	tuner := newFakeTuner()
	r := NewSdrRadio("radio-1", "Radio", tuner, nil)
	r.Initialize(context.Background())

	if err := r.SetFrequency(BandFM, 200); !errs.Is(err, errs.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for out-of-range FM freq, got %v", err)
	}
	if err := r.SetFrequency(BandAM, 999); err != nil {
		t.Fatalf("expected valid AM freq to succeed: %v", err)
	}
}

func TestSdrRadioRetuneClearsIdentification(t *testing.T) {
	tuner := newFakeTuner()
	r := NewSdrRadio("radio-1", "Radio", tuner, nil)
	r.Initialize(context.Background())

	r.IdentifyTrack("Song", "Artist", 0.9)
	if r.Metadata().String(KeyTitle) != "Song" {
		t.Fatal("expected identified title to overlay")
	}

	if err := r.SetFrequency(BandFM, 101.1); err != nil {
		t.Fatal(err)
	}
	if r.Metadata().String(KeyTitle) != "" {
		t.Fatal("expected identification cleared after retune")
	}
}

// TestSdrRadioPresetConflictS7 reproduces spec seed scenario S7: saving
// a second preset at the same (band, frequency) returns Conflict.
func TestSdrRadioPresetConflictS7(t *testing.T) {
	tuner := newFakeTuner()
	store := newFakePresetStore()
	r := NewSdrRadio("radio-1", "Radio", tuner, store)
	r.Initialize(context.Background())

	if err := r.SavePreset("kexp"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r2 := NewSdrRadio("radio-1", "Radio", tuner, store)
	r2.Initialize(context.Background())
	if err := r2.SavePreset("dup"); !errs.Is(err, errs.Conflict) {
		t.Fatalf("expected Conflict for duplicate band/frequency preset, got %v", err)
	}
}

func TestSdrRadioStepFrequencyClampsAtBandEdge(t *testing.T) {
	tuner := newFakeTuner()
	r := NewSdrRadio("radio-1", "Radio", tuner, nil)
	r.Initialize(context.Background())
	r.SetFrequency(BandFM, 108.0)

	if err := r.StepFrequency(true); err != nil {
		t.Fatal(err)
	}
	_, freq := r.Frequency()
	if freq != 108.0 {
		t.Fatalf("expected clamp at band max 108.0, got %v", freq)
	}
}

func TestSdrRadioSeekNotSupported(t *testing.T) {
	tuner := newFakeTuner()
	r := NewSdrRadio("radio-1", "Radio", tuner, nil)
	r.Initialize(context.Background())
	if err := r.Seek(0); !errs.Is(err, errs.NotSupported) {
		t.Fatalf("expected NotSupported, got %v", err)
	}
}

// TestSdrRadioSupportsAllBands reproduces spec §3's full band set:
// AM, FM, WB, VHF and SW must all tune successfully, not just AM/FM.
func TestSdrRadioSupportsAllBands(t *testing.T) {
	tuner := newFakeTuner()
	r := NewSdrRadio("radio-1", "Radio", tuner, nil)
	r.Initialize(context.Background())

	cases := []struct {
		band Band
		freq float64
	}{
		{BandFM, 99.5},
		{BandAM, 990},
		{BandWB, 162.450},
		{BandVHF, 121.5},
		{BandSW, 9400},
	}
	for _, tc := range cases {
		if err := r.SetFrequency(tc.band, tc.freq); err != nil {
			t.Fatalf("band %s: unexpected error: %v", tc.band, err)
		}
		band, freq := r.Frequency()
		if band != tc.band || freq != tc.freq {
			t.Fatalf("band %s: expected tuned state (%s, %v), got (%s, %v)", tc.band, tc.band, tc.freq, band, freq)
		}
	}
}

func TestSdrRadioUnknownBandRejected(t *testing.T) {
	tuner := newFakeTuner()
	r := NewSdrRadio("radio-1", "Radio", tuner, nil)
	r.Initialize(context.Background())

	if err := r.SetFrequency(Band("XYZ"), 100); !errs.Is(err, errs.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for unknown band, got %v", err)
	}
}

func TestSdrRadioSetDeviceVolumeValidatesRange(t *testing.T) {
	tuner := newFakeTuner()
	r := NewSdrRadio("radio-1", "Radio", tuner, nil)
	r.Initialize(context.Background())

	if err := r.SetDeviceVolume(-1); !errs.Is(err, errs.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for negative volume, got %v", err)
	}
	if err := r.SetDeviceVolume(101); !errs.Is(err, errs.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for volume above 100, got %v", err)
	}
	if err := r.SetDeviceVolume(80); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := r.RadioState().DeviceVolume; got != 80 {
		t.Fatalf("expected device volume 80, got %v", got)
	}
}

func TestSdrRadioSetEqualizerModeValidatesMode(t *testing.T) {
	tuner := newFakeTuner()
	r := NewSdrRadio("radio-1", "Radio", tuner, nil)
	r.Initialize(context.Background())

	if err := r.SetEqualizerMode("not-a-mode"); !errs.Is(err, errs.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for unknown equalizer mode, got %v", err)
	}
	if err := r.SetEqualizerMode("jazz"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := r.RadioState().EqualizerMode; got != "jazz" {
		t.Fatalf("expected equalizer mode jazz, got %v", got)
	}
}

func TestSdrRadioScanStartValidatesDirection(t *testing.T) {
	tuner := newFakeTuner()
	r := NewSdrRadio("radio-1", "Radio", tuner, nil)
	r.Initialize(context.Background())

	if err := r.ScanStart(ScanDirection("sideways")); !errs.Is(err, errs.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for bad scan direction, got %v", err)
	}
}

func TestSdrRadioScanStartStop(t *testing.T) {
	tuner := newFakeTuner()
	r := NewSdrRadio("radio-1", "Radio", tuner, nil)
	r.Initialize(context.Background())

	if err := r.ScanStart(ScanUp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st := r.RadioState()
	if !st.IsScanning || st.ScanDirection != ScanUp {
		t.Fatalf("expected scanning up, got %+v", st)
	}
	if err := r.ScanStart(ScanDown); !errs.Is(err, errs.IllegalState) {
		t.Fatalf("expected IllegalState for double scan start, got %v", err)
	}
	if err := r.ScanStop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.RadioState().IsScanning {
		t.Fatal("expected scanning false after stop")
	}
	if err := r.ScanStop(); !errs.Is(err, errs.IllegalState) {
		t.Fatalf("expected IllegalState stopping an already-stopped scan, got %v", err)
	}
}

func TestSdrRadioStatePublishesSignalAndRunning(t *testing.T) {
	tuner := newFakeTuner()
	tuner.signal = 42
	tuner.stereo = true
	r := NewSdrRadio("radio-1", "Radio", tuner, nil)
	r.Initialize(context.Background())

	st := r.RadioState()
	if st.SignalStrength != 42 || !st.Stereo {
		t.Fatalf("expected signal/stereo from tuner, got %+v", st)
	}
	if st.Running {
		t.Fatal("expected running false before Play")
	}
	if err := r.Play(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.RadioState().Running {
		t.Fatal("expected running true while Playing")
	}
}
