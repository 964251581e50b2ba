// Package viz implements the Visualization Service: spectrum, level and
// waveform analyses tapping the mixer's mixed PCM (spec §4.9), all
// fed from one shared consumer ring the way the teacher's mic visualizer
// taps an independent history buffer
// (richinsley-goshadertoy/inputs/mic.go).
package viz

import (
	"math"
	"sync"

	"github.com/mjibson/go-dsp/fft"

	"audiorack/internal/pcm"
)

// Spectrum is the published FFT snapshot (spec §4.9).
type Spectrum struct {
	Magnitudes         []float64
	Frequencies        []float64
	BinCount           int
	FrequencyResolution float64
	MaxFrequency       float64
	TimestampMs        int64
}

// SpectrumAnalyzer maintains a running windowed-FFT magnitude estimate
// over the most recent FFTSize frames, smoothed per-bin by Alpha (spec
// §4.9: "m' = α·m_prev + (1-α)·m_curr").
type SpectrumAnalyzer struct {
	FFTSize     int
	ApplyWindow bool
	Alpha       float64
	SampleRate  float64

	mu      sync.Mutex
	history []float64 // mono samples, ring-like fixed-size buffer
	pos     int
	filled  bool
	window  []float64
	peak    []float64
}

// NewSpectrumAnalyzer returns an analyzer over fftSize frames (spec
// default 2048), Hann-windowed when applyWindow is true.
func NewSpectrumAnalyzer(fftSize int, applyWindow bool, alpha float64, sampleRate float64) *SpectrumAnalyzer {
	s := &SpectrumAnalyzer{
		FFTSize:     fftSize,
		ApplyWindow: applyWindow,
		Alpha:       alpha,
		SampleRate:  sampleRate,
		history:     make([]float64, fftSize),
		peak:        make([]float64, fftSize/2),
	}
	if applyWindow {
		s.window = hannWindow(fftSize)
	}
	return s
}

// hannWindow builds a Hann window of the given size (spec §4.9),
// grounded on the teacher pack's own Hanning window for FFT input
// (richinsley-goshadertoy/inputs/mic.go's hanningWindow).
func hannWindow(size int) []float64 {
	w := make([]float64, size)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return w
}

// Feed appends f's mono-summed samples into the rolling history buffer.
func (s *SpectrumAnalyzer) Feed(f pcm.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := f.FrameCount()
	for i := 0; i < n; i++ {
		mono := (float64(f.Samples[i*pcm.Channels]) + float64(f.Samples[i*pcm.Channels+1])) / 2
		s.history[s.pos] = mono
		s.pos = (s.pos + 1) % len(s.history)
		if s.pos == 0 {
			s.filled = true
		}
	}
}

// Analyze computes the current Spectrum snapshot from the rolling
// history buffer, updating the running-peak smoothing state.
func (s *SpectrumAnalyzer) Analyze(nowMs int64) Spectrum {
	s.mu.Lock()
	defer s.mu.Unlock()

	ordered := make([]float64, len(s.history))
	if s.filled {
		for i := range ordered {
			ordered[i] = s.history[(s.pos+i)%len(s.history)]
		}
	} else {
		copy(ordered, s.history)
	}

	if s.window != nil {
		for i := range ordered {
			ordered[i] *= s.window[i]
		}
	}

	result := fft.FFTReal(ordered)
	binCount := len(result) / 2
	mags := make([]float64, binCount)
	freqs := make([]float64, binCount)
	freqRes := s.SampleRate / float64(s.FFTSize)

	for i := 0; i < binCount; i++ {
		re, im := real(result[i]), imag(result[i])
		mag := math.Sqrt(re*re+im*im) / float64(s.FFTSize)
		smoothed := s.Alpha*s.peak[i] + (1-s.Alpha)*mag
		if smoothed > 1 {
			smoothed = 1
		}
		if smoothed < 0 {
			smoothed = 0
		}
		s.peak[i] = smoothed
		mags[i] = smoothed
		freqs[i] = float64(i) * freqRes
	}

	return Spectrum{
		Magnitudes:          mags,
		Frequencies:         freqs,
		BinCount:            binCount,
		FrequencyResolution: freqRes,
		MaxFrequency:        s.SampleRate / 2,
		TimestampMs:         nowMs,
	}
}
