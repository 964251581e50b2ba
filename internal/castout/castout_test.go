package castout

import (
	"context"
	"errors"
	"testing"

	"audiorack/internal/output"
)

type fakeBrowser struct {
	devices []Device
}

func (b *fakeBrowser) Browse(ctx context.Context) ([]Device, error) { return b.devices, nil }

type fakeSession struct {
	connected  Device
	loadedURL  string
	volume     float64
	muted      bool
	connectErr error
	closed     bool
}

func (s *fakeSession) Connect(d Device) error {
	if s.connectErr != nil {
		return s.connectErr
	}
	s.connected = d
	return nil
}
func (s *fakeSession) LoadMedia(url string) error { s.loadedURL = url; return nil }
func (s *fakeSession) SetVolume(v float64) error  { s.volume = v; return nil }
func (s *fakeSession) SetMute(m bool) error       { s.muted = m; return nil }
func (s *fakeSession) Close() error               { s.closed = true; return nil }

func TestCastOutputDiscover(t *testing.T) {
	browser := &fakeBrowser{devices: []Device{{ID: "chromecast-1", FriendlyName: "Living Room"}}}
	c := New("cast-1", browser, &fakeSession{})

	devices, err := c.Discover(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 1 || devices[0].FriendlyName != "Living Room" {
		t.Fatalf("unexpected devices: %#v", devices)
	}
}

func TestCastOutputConnectStartStop(t *testing.T) {
	session := &fakeSession{}
	c := New("cast-1", &fakeBrowser{}, session)
	c.SetStreamURL("http://appliance.local:8080/stream")

	if err := c.Connect(Device{ID: "chromecast-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.State() != output.Ready {
		t.Fatalf("expected Ready after connect, got %v", c.State())
	}

	if err := c.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.loadedURL != "http://appliance.local:8080/stream" {
		t.Fatalf("expected stream url loaded, got %q", session.loadedURL)
	}
	if c.State() != output.Streaming {
		t.Fatalf("expected Streaming, got %v", c.State())
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.State() != output.Stopped {
		t.Fatalf("expected Stopped, got %v", c.State())
	}
}

func TestCastOutputConnectFailureTransitionsError(t *testing.T) {
	session := &fakeSession{connectErr: errors.New("refused")}
	c := New("cast-1", &fakeBrowser{}, session)

	if err := c.Connect(Device{ID: "x"}); err == nil {
		t.Fatal("expected error")
	}
	if c.State() != output.Error {
		t.Fatalf("expected Error state, got %v", c.State())
	}
}

func TestCastOutputVolumeOnlyPropagatesWhileStreaming(t *testing.T) {
	session := &fakeSession{}
	c := New("cast-1", &fakeBrowser{}, session)
	c.Connect(Device{ID: "x"})

	if err := c.SetVolume(0.3); err != nil {
		t.Fatal(err)
	}
	if session.volume != 0 {
		t.Fatalf("expected no propagation before Streaming, got %v", session.volume)
	}

	c.Start()
	if err := c.SetVolume(0.7); err != nil {
		t.Fatal(err)
	}
	if session.volume != 0.7 {
		t.Fatalf("expected propagated volume 0.7, got %v", session.volume)
	}
}

func TestCastOutputDisposeClosesSession(t *testing.T) {
	session := &fakeSession{}
	c := New("cast-1", &fakeBrowser{}, session)
	if err := c.Dispose(); err != nil {
		t.Fatal(err)
	}
	if !session.closed {
		t.Fatal("expected session closed on dispose")
	}
}
