package output

import (
	"sync/atomic"
	"testing"
	"time"

	"audiorack/internal/pcm"
)

type fakePaStream struct {
	writes   atomic.Int64
	started  atomic.Bool
	closed   atomic.Bool
}

func (s *fakePaStream) Start() error { s.started.Store(true); return nil }
func (s *fakePaStream) Stop() error  { s.started.Store(false); return nil }
func (s *fakePaStream) Close() error { s.closed.Store(true); return nil }
func (s *fakePaStream) Write() error { s.writes.Add(1); return nil }

type fakeStreamOpener struct {
	stream *fakePaStream
}

func (o *fakeStreamOpener) OpenPlayback(deviceID string, buf []float32) (paStream, error) {
	return o.stream, nil
}

func TestLocalOutputStartWritesContinuously(t *testing.T) {
	stream := &fakePaStream{}
	opener := &fakeStreamOpener{stream: stream}
	source := func(frames int) pcm.Frame { return pcm.NewFrame(frames) }

	o := NewLocalOutput("local-1", "0", opener, source)
	if err := o.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := o.Start(); err != nil {
		t.Fatal(err)
	}

	time.Sleep(20 * time.Millisecond)
	if stream.writes.Load() == 0 {
		t.Fatal("expected at least one playback write")
	}
	if !stream.started.Load() {
		t.Fatal("expected stream started")
	}

	if err := o.Stop(); err != nil {
		t.Fatal(err)
	}
	if stream.started.Load() {
		t.Fatal("expected stream stopped")
	}
	if !stream.closed.Load() {
		t.Fatal("expected stream closed")
	}
}

func TestLocalOutputHotDeviceSwap(t *testing.T) {
	stream1 := &fakePaStream{}
	opener := &fakeStreamOpener{stream: stream1}
	source := func(frames int) pcm.Frame { return pcm.NewFrame(frames) }

	o := NewLocalOutput("local-1", "0", opener, source)
	o.Initialize()
	o.Start()
	time.Sleep(10 * time.Millisecond)

	stream2 := &fakePaStream{}
	opener.stream = stream2
	if err := o.SetDevice("1"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)

	if !stream1.closed.Load() {
		t.Fatal("expected old stream closed on device swap")
	}
	if stream2.writes.Load() == 0 {
		t.Fatal("expected new stream receiving writes")
	}
}

func TestLocalOutputVolumeAndMute(t *testing.T) {
	stream := &fakePaStream{}
	opener := &fakeStreamOpener{stream: stream}
	o := NewLocalOutput("local-1", "0", opener, func(frames int) pcm.Frame { return pcm.NewFrame(frames) })
	o.Initialize()

	if err := o.SetVolume(0.5); err != nil {
		t.Fatal(err)
	}
	if o.Volume() != 0.5 {
		t.Fatalf("expected volume 0.5, got %v", o.Volume())
	}
	if err := o.SetMute(true); err != nil {
		t.Fatal(err)
	}
	if !o.Mute() {
		t.Fatal("expected muted")
	}
}
