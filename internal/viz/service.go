package viz

import (
	"context"
	"time"

	"audiorack/internal/pcm"
)

// Snapshot bundles the three analyses published on each tick (spec
// §4.9: "All three carry monotonic unix-ms timestamps. is_active is
// true while the Mixer is producing non-silent output").
type Snapshot struct {
	Spectrum Spectrum
	Levels   Levels
	Waveform Waveform
	IsActive bool
}

// Puller pulls the next chunk of mixed PCM, the shape of a
// mixer.StreamConsumer's Pull (kept as a plain func type so viz doesn't
// import mixer).
type Puller func() (pcm.Frame, bool)

// Service runs the visualization task: taps the mixer via its own
// consumer ring (spec §5: "Visualization taps the mixer via a dedicated
// consumer ring and processes on its own task") at a fixed cadence of
// at least 20 Hz, publishing Snapshot via OnSnapshot.
type Service struct {
	pull     Puller
	spectrum *SpectrumAnalyzer
	levels   *LevelAnalyzer
	waveform *WaveformAnalyzer
	tickRate time.Duration

	OnSnapshot func(Snapshot)
}

// NewService wires a Puller to the three analyzers. tickRate must be
// <= 50ms to satisfy the spec's 20 Hz floor.
func NewService(pull Puller, spectrum *SpectrumAnalyzer, levels *LevelAnalyzer, waveform *WaveformAnalyzer, tickRate time.Duration) *Service {
	return &Service{pull: pull, spectrum: spectrum, levels: levels, waveform: waveform, tickRate: tickRate}
}

// Run drives the analysis loop until ctx is cancelled. clock supplies
// the instant each tick is analysed and timestamped at, so Run never
// calls time.Now from within the loop (the runtime's clock
// boundary is isolated to the caller).
func (s *Service) Run(ctx context.Context, clock func() time.Time) error {
	ticker := time.NewTicker(s.tickRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(clock())
		}
	}
}

func (s *Service) tick(now time.Time) {
	f, ok := s.pull()
	if !ok {
		f = pcm.NewFrame(0)
	}
	s.spectrum.Feed(f)

	nowMs := now.UnixMilli()
	spec := s.spectrum.Analyze(nowMs)
	lvl := s.levels.Analyze(f, now, nowMs)
	wave := s.waveform.Downsample(f, nowMs)

	active := lvl.Left.RMSLinear > 0 || lvl.Right.RMSLinear > 0

	if s.OnSnapshot != nil {
		s.OnSnapshot(Snapshot{Spectrum: spec, Levels: lvl, Waveform: wave, IsActive: active})
	}
}
