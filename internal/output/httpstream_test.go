package output

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"audiorack/internal/pcm"
)

func silentPull(frames int) pcm.Frame { return pcm.NewFrame(frames) }

func TestHTTPStreamOutputWritesWavHeader(t *testing.T) {
	h := NewHTTPStreamOutput("http-1", 2, silentPull)
	h.Initialize()
	h.Start()

	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	timeout := time.AfterFunc(20*time.Millisecond, func() {})
	defer timeout.Stop()

	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		h.ServeHTTP(rec, req)
		close(done)
	}()

	time.Sleep(15 * time.Millisecond)
	h.mu.Lock()
	for _, c := range h.clients {
		c.cancel()
	}
	h.mu.Unlock()
	<-done

	body := rec.Body.Bytes()
	if len(body) < 44 {
		t.Fatalf("expected at least a WAV header, got %d bytes", len(body))
	}
	if string(body[0:4]) != "RIFF" || string(body[8:12]) != "WAVE" {
		t.Fatalf("expected RIFF/WAVE header, got %q", body[0:12])
	}
}

func TestHTTPStreamOutputRejectsWhenNotStreaming(t *testing.T) {
	h := NewHTTPStreamOutput("http-1", 2, silentPull)
	h.Initialize()

	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before Start, got %d", rec.Code)
	}
}

func TestHTTPStreamOutputRejectsOverCapacity(t *testing.T) {
	h := NewHTTPStreamOutput("http-1", 1, silentPull)
	h.Initialize()
	h.Start()

	req1 := httptest.NewRequest(http.MethodGet, "/stream", nil)
	rec1 := httptest.NewRecorder()
	done1 := make(chan struct{})
	go func() { h.ServeHTTP(rec1, req1); close(done1) }()
	time.Sleep(10 * time.Millisecond)

	req2 := httptest.NewRequest(http.MethodGet, "/stream", nil)
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 over capacity, got %d", rec2.Code)
	}

	h.mu.Lock()
	for _, c := range h.clients {
		c.cancel()
	}
	h.mu.Unlock()
	<-done1
}

func TestHTTPStreamOutputStopDisconnectsClients(t *testing.T) {
	h := NewHTTPStreamOutput("http-1", 2, silentPull)
	h.Initialize()
	h.Start()

	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() { h.ServeHTTP(rec, req); close(done) }()
	time.Sleep(10 * time.Millisecond)

	if err := h.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected client disconnected after Stop")
	}
	if h.ConnectedClientCount() != 0 {
		t.Fatal("expected 0 connected clients after stop")
	}
}
