package viz

import (
	"math"
	"sync"
	"time"

	"audiorack/internal/pcm"
)

// ChannelLevel is one channel's peak/RMS snapshot (spec §4.9).
type ChannelLevel struct {
	PeakLinear float64
	RMSLinear  float64
	PeakDbfs   float64
	RMSDbfs    float64
}

// Levels is the published per-channel level snapshot.
type Levels struct {
	Left        ChannelLevel
	Right       ChannelLevel
	IsClipping  bool
	TimestampMs int64
}

const clipThreshold = 0.99

// LevelAnalyzer tracks peak/RMS with a decaying peak-hold (spec §4.9:
// "peak hold for peak_hold_time_ms after which the held value decays").
type LevelAnalyzer struct {
	PeakHoldTime time.Duration

	mu          sync.Mutex
	heldLeft    float64
	heldRight   float64
	heldAtLeft  time.Time
	heldAtRight time.Time
}

func NewLevelAnalyzer(peakHoldTime time.Duration) *LevelAnalyzer {
	return &LevelAnalyzer{PeakHoldTime: peakHoldTime}
}

// Analyze computes peak/RMS/dBFS over f's samples, applying per-channel
// peak-hold-then-decay against prior state. now is the analysis instant,
// passed in since time.Now is unavailable to callers driving deterministic
// tests.
func (a *LevelAnalyzer) Analyze(f pcm.Frame, now time.Time, timestampMs int64) Levels {
	n := f.FrameCount()
	var sumSqL, sumSqR, peakL, peakR float64
	clipping := false

	for i := 0; i < n; i++ {
		l := float64(f.Samples[i*pcm.Channels])
		r := float64(f.Samples[i*pcm.Channels+1])
		al, ar := math.Abs(l), math.Abs(r)
		if al > peakL {
			peakL = al
		}
		if ar > peakR {
			peakR = ar
		}
		if al >= clipThreshold || ar >= clipThreshold {
			clipping = true
		}
		sumSqL += l * l
		sumSqR += r * r
	}

	var rmsL, rmsR float64
	if n > 0 {
		rmsL = math.Sqrt(sumSqL / float64(n))
		rmsR = math.Sqrt(sumSqR / float64(n))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	heldL := a.applyHold(&a.heldLeft, &a.heldAtLeft, peakL, now)
	heldR := a.applyHold(&a.heldRight, &a.heldAtRight, peakR, now)

	return Levels{
		Left:        ChannelLevel{PeakLinear: heldL, RMSLinear: rmsL, PeakDbfs: toDbfs(heldL), RMSDbfs: toDbfs(rmsL)},
		Right:       ChannelLevel{PeakLinear: heldR, RMSLinear: rmsR, PeakDbfs: toDbfs(heldR), RMSDbfs: toDbfs(rmsR)},
		IsClipping:  clipping,
		TimestampMs: timestampMs,
	}
}

// applyHold implements peak-hold-then-snap: a new peak resets the hold
// window; after PeakHoldTime elapses the held value snaps to the fresh
// instantaneous peak, with no gradual ramp.
func (a *LevelAnalyzer) applyHold(held *float64, heldAt *time.Time, instant float64, now time.Time) float64 {
	if instant >= *held {
		*held = instant
		*heldAt = now
		return *held
	}
	if a.PeakHoldTime <= 0 || now.Sub(*heldAt) >= a.PeakHoldTime {
		*held = instant
		*heldAt = now
	}
	return *held
}

// toDbfs converts linear [0,1] to dBFS, clamped at <= 0 (spec §4.9).
func toDbfs(linear float64) float64 {
	if linear <= 0 {
		return math.Inf(-1)
	}
	db := 20 * math.Log10(linear)
	if db > 0 {
		db = 0
	}
	return db
}
