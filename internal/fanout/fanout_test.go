package fanout

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"audiorack/internal/pcm"
)

type countingMixer struct {
	calls atomic.Int64
}

func (m *countingMixer) Mix(frames int) pcm.Frame {
	m.calls.Add(1)
	return pcm.NewFrame(frames)
}

func TestFanoutPullsMixerOnceAndFeedsAllConsumers(t *testing.T) {
	mx := &countingMixer{}
	f := New(mx, 16, 5*time.Millisecond)

	pullA := f.AddConsumer("a")
	pullB := f.AddConsumer("b")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	if mx.calls.Load() == 0 {
		t.Fatal("expected Mix to have been called at least once")
	}

	fr := pullA(16)
	if fr.FrameCount() != 16 {
		t.Errorf("consumer a frame count = %d, want 16", fr.FrameCount())
	}
	fr = pullB(16)
	if fr.FrameCount() != 16 {
		t.Errorf("consumer b frame count = %d, want 16", fr.FrameCount())
	}
}

func TestPullerReturnsSilenceOnUnderrun(t *testing.T) {
	mx := &countingMixer{}
	f := New(mx, 16, time.Second)
	pull := f.AddConsumer("a")

	fr := pull(16)
	for _, s := range fr.Samples {
		if s != 0 {
			t.Fatalf("expected silence on underrun, got sample %v", s)
		}
	}
}

func TestRemoveConsumerStopsFeeding(t *testing.T) {
	mx := &countingMixer{}
	f := New(mx, 16, 5*time.Millisecond)
	f.AddConsumer("a")
	f.RemoveConsumer("a")

	if len(f.rings) != 0 {
		t.Fatalf("len(rings) = %d, want 0", len(f.rings))
	}
}
