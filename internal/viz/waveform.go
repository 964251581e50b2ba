package viz

import "audiorack/internal/pcm"

// Waveform is a downsampled time-domain snapshot (spec §4.9).
type Waveform struct {
	Left        []float64
	Right       []float64
	TimestampMs int64
}

// WaveformAnalyzer downsamples the most recent window into fixed-length
// per-channel arrays (spec §4.9, default waveform_sample_count 512).
type WaveformAnalyzer struct {
	SampleCount int
}

func NewWaveformAnalyzer(sampleCount int) *WaveformAnalyzer {
	return &WaveformAnalyzer{SampleCount: sampleCount}
}

// Downsample picks SampleCount evenly-spaced samples from f per
// channel, each already in [-1,+1].
func (w *WaveformAnalyzer) Downsample(f pcm.Frame, timestampMs int64) Waveform {
	n := f.FrameCount()
	left := make([]float64, w.SampleCount)
	right := make([]float64, w.SampleCount)
	if n == 0 {
		return Waveform{Left: left, Right: right, TimestampMs: timestampMs}
	}
	for i := 0; i < w.SampleCount; i++ {
		srcIdx := i * n / w.SampleCount
		if srcIdx >= n {
			srcIdx = n - 1
		}
		left[i] = float64(f.Samples[srcIdx*pcm.Channels])
		right[i] = float64(f.Samples[srcIdx*pcm.Channels+1])
	}
	return Waveform{Left: left, Right: right, TimestampMs: timestampMs}
}
