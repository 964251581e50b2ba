package runtime

import (
	"context"
	"testing"
	"time"

	"audiorack/internal/devicemgr"
	"audiorack/internal/pcm"
	"audiorack/internal/source"
	"audiorack/internal/state"
	"audiorack/internal/store"
)

type fakeEnumerator struct{}

func (fakeEnumerator) Outputs() ([]devicemgr.Device, error) { return nil, nil }
func (fakeEnumerator) Inputs() ([]devicemgr.Device, error)  { return nil, nil }
func (fakeEnumerator) DefaultOutput() (*devicemgr.Device, error) {
	return &devicemgr.Device{ID: "default"}, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, fakeEnumerator{}, "127.0.0.1:0", "/stream", fixedClock(time.Unix(0, 0)))
}

func TestNewWiresEveryComponent(t *testing.T) {
	rt := newTestRuntime(t)
	if rt.Registry == nil || rt.Mixer == nil || rt.Duck == nil || rt.Fanout == nil || rt.Viz == nil {
		t.Fatal("New left a core component nil")
	}
	if rt.httpSrv == nil || rt.wsHub == nil {
		t.Fatal("New left the http/websocket layer nil")
	}
	if len(rt.outputs) != 1 {
		t.Fatalf("len(outputs) = %d, want 1 (the http stream output)", len(rt.outputs))
	}
}

func TestRegisterSourceAddsToRegistryAndForwardsState(t *testing.T) {
	rt := newTestRuntime(t)

	events, unsubscribe := rt.Bus.Subscribe(8)
	defer unsubscribe()

	src := &testSource{Base: source.NewBase("t1", "Test", "test", source.CategoryPrimary, source.Capabilities{})}
	rt.RegisterSource(src)

	if rt.Registry.Primary() != nil {
		t.Fatal("expected no primary before Play")
	}
	if err := src.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Topic != "state_changed" {
			t.Errorf("topic = %q, want state_changed", ev.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for forwarded state change")
	}
}

func TestRunStopsCleanlyOnCancel(t *testing.T) {
	rt := newTestRuntime(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

type testSource struct {
	*source.Base
}

func (s *testSource) Initialize(ctx context.Context) error {
	s.Machine().Transition(state.Ready)
	return nil
}

func (s *testSource) Play() error                { return nil }
func (s *testSource) Pause() error               { return nil }
func (s *testSource) Resume() error              { return nil }
func (s *testSource) Stop() error                { return nil }
func (s *testSource) Seek(d time.Duration) error { return nil }
func (s *testSource) Dispose() error             { return nil }
func (s *testSource) SoundComponent() source.SampleProducer {
	return &source.RingProducer{Ring: pcm.NewRing(4)}
}
