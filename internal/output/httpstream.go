package output

import (
	"bufio"
	"context"
	"encoding/binary"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"audiorack/internal/pcm"
)

// ClientInfo is the per-client bookkeeping record (spec §4.6:
// "{client_id, remote_endpoint, connected_at, bytes_sent}").
type ClientInfo struct {
	ClientID      string
	RemoteEndpoint string
	ConnectedAt   time.Time
	BytesSent     int64
}

// HTTPStreamOutput serves the mixer's stream as a WAV header followed by
// indefinite chunked 16-bit PCM, one connection per client, up to
// MaxConcurrentClients (spec §4.6).
type HTTPStreamOutput struct {
	base

	MaxConcurrentClients int
	stopGraceTimeout     time.Duration

	pull func(frames int) pcm.Frame

	mu      sync.Mutex
	clients map[string]*httpClient
	nextID  int
}

type httpClient struct {
	info   ClientInfo
	cancel func()
}

// NewHTTPStreamOutput constructs a stream output pulling frames from
// pull (typically a mixer.OutputStream consumer).
func NewHTTPStreamOutput(id string, maxClients int, pull func(frames int) pcm.Frame) *HTTPStreamOutput {
	return &HTTPStreamOutput{
		base:                 newBase(id),
		MaxConcurrentClients: maxClients,
		stopGraceTimeout:     5 * time.Second,
		pull:                 pull,
		clients:              map[string]*httpClient{},
	}
}

func (h *HTTPStreamOutput) Initialize() error {
	if err := h.machine.Require("HTTPStreamOutput.Initialize", Created, Error); err != nil {
		return err
	}
	h.machine.Transition(Initializing)
	h.machine.Transition(Ready)
	return nil
}

func (h *HTTPStreamOutput) Start() error {
	if err := h.machine.Require("HTTPStreamOutput.Start", Ready, Stopped); err != nil {
		return err
	}
	h.machine.Transition(Streaming)
	return nil
}

func (h *HTTPStreamOutput) Stop() error {
	if err := h.machine.Require("HTTPStreamOutput.Stop", Streaming); err != nil {
		return err
	}
	h.machine.Transition(Stopping)

	done := make(chan struct{})
	go func() {
		h.mu.Lock()
		for id, c := range h.clients {
			c.cancel()
			delete(h.clients, id)
		}
		h.mu.Unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(h.stopGraceTimeout):
		slog.Warn("http stream output: stop exceeded grace period, proceeding", "output_id", h.ID())
	}

	h.machine.Transition(Stopped)
	return nil
}

func (h *HTTPStreamOutput) Dispose() error {
	already := h.machine.Dispose()
	if already {
		return nil
	}
	h.mu.Lock()
	for id, c := range h.clients {
		c.cancel()
		delete(h.clients, id)
	}
	h.mu.Unlock()
	return nil
}

// ConnectedClientCount reports the current number of streaming clients.
func (h *HTTPStreamOutput) ConnectedClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Clients returns a snapshot of per-client bookkeeping.
func (h *HTTPStreamOutput) Clients() []ClientInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]ClientInfo, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c.info)
	}
	return out
}

// ServeHTTP accepts one streaming client per call: writes a WAV header
// with int32 max placeholders for file-size/data-size (spec §4.6), then
// streams indefinite chunked 16-bit PCM until the client disconnects,
// the server stops, or it is disposed.
func (h *HTTPStreamOutput) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.State() != Streaming {
		http.Error(w, "stream not active", http.StatusServiceUnavailable)
		return
	}
	h.mu.Lock()
	if h.MaxConcurrentClients > 0 && len(h.clients) >= h.MaxConcurrentClients {
		h.mu.Unlock()
		http.Error(w, "max concurrent clients reached", http.StatusServiceUnavailable)
		return
	}
	h.nextID++
	clientID := "client-" + time.Now().UTC().Format("150405.000000") + "-" + strconv.Itoa(h.nextID)
	ctx, cancel := context.WithCancel(r.Context())
	info := ClientInfo{ClientID: clientID, RemoteEndpoint: r.RemoteAddr, ConnectedAt: time.Now()}
	c := &httpClient{info: info, cancel: cancel}
	h.clients[clientID] = c
	h.mu.Unlock()

	defer cancel()
	defer func() {
		h.mu.Lock()
		delete(h.clients, clientID)
		h.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Transfer-Encoding", "chunked")
	flusher, _ := w.(http.Flusher)
	bw := bufio.NewWriter(w)

	header := wavHeader(pcm.SampleRate, pcm.Channels, 16)
	if _, err := bw.Write(header); err != nil {
		return
	}
	bw.Flush()
	if flusher != nil {
		flusher.Flush()
	}

	const framesPerChunk = 960
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		f := h.pull(framesPerChunk)
		data := pcm.ToPCM16LE(f)
		n, err := bw.Write(data)
		h.mu.Lock()
		if cc, ok := h.clients[clientID]; ok {
			cc.info.BytesSent += int64(n)
		}
		h.mu.Unlock()
		if err != nil {
			return
		}
		bw.Flush()
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// wavHeader builds a streaming RIFF/WAV header with int.MaxValue placed
// in the file-size and data-size fields, since the true length is
// unknown up front (spec §4.6).
func wavHeader(sampleRate, channels, bitsPerSample int) []byte {
	const maxInt32 = uint32(0x7fffffff)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	buf := make([]byte, 44)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], maxInt32)
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bitsPerSample))
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], maxInt32)
	return buf
}

