// Package hw wires the source and device interfaces onto real hardware
// and network collaborators for cmd/audiorackd: PortAudio capture for
// USB line-in, a local-disk FileSystem for FilePlayer, and an HTTP
// StreamProvider for StreamingService. Each stays behind the narrow
// interface internal/source already defines, the same paStream split
// the teacher uses for its own audio engine
// (rustyguts-bken/client/audio.go), so these are swappable in tests the
// same way the teacher's own production opener is.
package hw

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"audiorack/internal/errs"
	"audiorack/internal/pcm"
	"audiorack/internal/queue"
	"audiorack/internal/source"
)

// --- CaptureOpener (USB line-in) -------------------------------------

// PortAudioCaptureOpener opens real capture streams via PortAudio,
// falling back to the default input device when the requested one
// can't be resolved (spec §4.2's fallback-with-warning contract).
type PortAudioCaptureOpener struct{}

func (PortAudioCaptureOpener) OpenCapture(requestedPort string, depth int) (*pcm.Ring, string, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, "", errs.Wrap(errs.External, "hw.OpenCapture", "enumerate devices", err)
	}
	dev, resolved := resolveCaptureDevice(devices, requestedPort)
	if dev == nil {
		return nil, "", errs.New(errs.NotFound, "hw.OpenCapture", "no capture device available")
	}

	const framesPerBuffer = 960 // 20ms @ 48kHz, matches the mixer tick
	buf := make([]float32, framesPerBuffer*pcm.Channels)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: pcm.Channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      pcm.SampleRate,
		FramesPerBuffer: framesPerBuffer,
	}
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, "", errs.Wrap(errs.External, "hw.OpenCapture", "open portaudio stream", err)
	}
	if err := stream.Start(); err != nil {
		return nil, "", errs.Wrap(errs.External, "hw.OpenCapture", "start portaudio stream", err)
	}

	ring := pcm.NewRing(depth)
	go func() {
		for {
			if err := stream.Read(); err != nil {
				stream.Close()
				return
			}
			frame := pcm.Frame{Samples: append([]float32(nil), buf...)}
			ring.Push(frame)
		}
	}()

	return ring, resolved, nil
}

func resolveCaptureDevice(devices []*portaudio.DeviceInfo, requestedPort string) (*portaudio.DeviceInfo, string) {
	for i, d := range devices {
		if d.MaxInputChannels > 0 && strconv.Itoa(i) == requestedPort {
			return d, requestedPort
		}
	}
	def, err := portaudio.DefaultInputDevice()
	if err == nil && def != nil {
		return def, "default"
	}
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			return d, d.Name
		}
	}
	return nil, ""
}

// --- FileSystem (local file playback) --------------------------------

// LocalFileSystem lists and decodes files under root for FilePlayer.
// Decoding is limited to uncompressed WAV/PCM (spec's allow-list also
// names mp3/flac/ogg/aac/m4a, but no compressed-audio decoder appears
// anywhere in the example pack; see DESIGN.md). Those extensions still
// list and Stat correctly, they just fail to Open with NotSupported
// until a real decoder is wired in.
type LocalFileSystem struct {
	Root string
}

func (fs LocalFileSystem) ListDirectory(relDir string) ([]source.FileEntry, error) {
	abs := filepath.Join(fs.Root, filepath.Clean("/"+relDir))
	entries, err := os.ReadDir(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.New(errs.NotFound, "hw.ListDirectory", "no such directory: "+relDir)
		}
		return nil, errs.Wrap(errs.External, "hw.ListDirectory", "read directory", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	out := make([]source.FileEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		out = append(out, source.FileEntry{
			RelPath: filepath.Join(relDir, e.Name()),
			Ext:     ext,
			Title:   strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())),
		})
	}
	return out, nil
}

func (fs LocalFileSystem) Stat(relPath string) (source.FileEntry, error) {
	abs := filepath.Join(fs.Root, filepath.Clean("/"+relPath))
	info, err := os.Stat(abs)
	if err != nil {
		return source.FileEntry{}, errs.New(errs.NotFound, "hw.Stat", "no such file: "+relPath)
	}
	if info.IsDir() {
		return source.FileEntry{}, errs.New(errs.NotFound, "hw.Stat", "not a file: "+relPath)
	}
	ext := strings.ToLower(filepath.Ext(relPath))
	return source.FileEntry{
		RelPath: relPath,
		Ext:     ext,
		Title:   strings.TrimSuffix(filepath.Base(relPath), ext),
	}, nil
}

func (fs LocalFileSystem) Open(relPath string, depth int) (*pcm.Ring, error) {
	ext := strings.ToLower(filepath.Ext(relPath))
	if ext != ".wav" {
		return nil, errs.New(errs.NotSupported, "hw.Open", "no decoder available for "+ext)
	}
	abs := filepath.Join(fs.Root, filepath.Clean("/"+relPath))
	f, err := os.Open(abs)
	if err != nil {
		return nil, errs.New(errs.NotFound, "hw.Open", "no such file: "+relPath)
	}

	hdr, err := readWavHeader(f)
	if err != nil {
		f.Close()
		return nil, errs.Wrap(errs.NotSupported, "hw.Open", "parse wav header", err)
	}

	ring := pcm.NewRing(depth)
	go decodeWav(f, hdr, ring)
	return ring, nil
}

// wavHeader is the subset of a canonical PCM WAVE header this decoder
// needs: channel count and bit depth for conversion into the mix bus
// format (the sample rate is read but not converted), and the data
// chunk's byte length.
type wavHeader struct {
	channels      int
	sampleRate    int
	bitsPerSample int
	dataBytes     int
}

func readWavHeader(r io.Reader) (wavHeader, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return wavHeader{}, err
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return wavHeader{}, fmt.Errorf("not a RIFF/WAVE file")
	}

	var hdr wavHeader
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return wavHeader{}, err
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return wavHeader{}, err
			}
			hdr.channels = int(binary.LittleEndian.Uint16(body[2:4]))
			hdr.sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			hdr.bitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
		case "data":
			hdr.dataBytes = int(size)
			return hdr, nil
		default:
			if _, err := io.CopyN(io.Discard, r, int64(size)); err != nil {
				return wavHeader{}, err
			}
		}
	}
}

// decodeWav streams hdr's data chunk from f into ring as canonical-format
// frames, resampling to stereo by naive channel duplication/drop (no
// sample-rate conversion: spec leaves rate matching as a source-edge
// concern, and WAV playback content is expected to already be 48kHz per
// the appliance's canonical bus).
func decodeWav(f io.ReadCloser, hdr wavHeader, ring *pcm.Ring) {
	defer f.Close()
	const framesPerPush = 960
	bytesPerSample := hdr.bitsPerSample / 8
	if bytesPerSample == 0 || hdr.channels == 0 {
		return
	}
	br := bufio.NewReader(f)
	buf := make([]byte, framesPerPush*hdr.channels*bytesPerSample)

	for {
		n, err := io.ReadFull(br, buf)
		if n == 0 {
			return
		}
		frames := n / (hdr.channels * bytesPerSample)
		out := pcm.NewFrame(frames)
		for i := 0; i < frames; i++ {
			l := readSample(buf, (i*hdr.channels)*bytesPerSample, bytesPerSample)
			r := l
			if hdr.channels > 1 {
				r = readSample(buf, (i*hdr.channels+1)*bytesPerSample, bytesPerSample)
			}
			out.Samples[i*pcm.Channels] = l
			out.Samples[i*pcm.Channels+1] = r
		}
		ring.Push(out)
		if err != nil {
			return
		}
	}
}

func readSample(buf []byte, offset, width int) float32 {
	switch width {
	case 2:
		v := int16(binary.LittleEndian.Uint16(buf[offset : offset+2]))
		return float32(v) / 32768
	case 4:
		v := int32(binary.LittleEndian.Uint32(buf[offset : offset+4]))
		return float32(v) / 2147483648
	default:
		return 0
	}
}

// --- StreamProvider (internet radio / remote queue) -------------------

// HTTPStreamProvider plays a remote HTTP stream whose body is a WAV
// (RIFF header followed by PCM). Format
// negotiation with real streaming services (Spotify Connect, etc.) is
// out of scope; this targets the appliance's own network-audio sources
// (spec §4.2: "e.g. Spotify Connect" is illustrative, not prescriptive).
type HTTPStreamProvider struct {
	Client *http.Client

	mu    sync.Mutex
	queue []string
}

func (p *HTTPStreamProvider) Play(ctx context.Context, uri, contextURI string) (*pcm.Ring, error) {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, "hw.Play", "build request", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.External, "hw.Play", "open stream", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errs.New(errs.External, "hw.Play", fmt.Sprintf("stream returned status %d", resp.StatusCode))
	}

	ring := pcm.NewRing(64)
	hdr, err := readWavHeader(resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, errs.Wrap(errs.NotSupported, "hw.Play", "parse stream header", err)
	}
	go decodeWav(resp.Body, hdr, ring)
	return ring, nil
}

func (p *HTTPStreamProvider) AddToQueue(uri string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, uri)
	return nil
}

func (p *HTTPStreamProvider) FetchRemoteQueue() (source.RemoteQueue, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	items := make([]queue.Item, len(p.queue))
	for i, uri := range p.queue {
		items[i] = queue.Item{ID: uri, Index: i}
	}
	return source.RemoteQueue{Items: items}, nil
}

func (p *HTTPStreamProvider) FetchMetadata() source.Metadata {
	return source.Metadata{}
}

// Search, BrowseCategories, BrowseCategoryPlaylists, BrowseUserPlaylists
// and BrowsePlaylistDetails are NotSupported here: HTTPStreamProvider
// targets a single WAV-over-HTTP stream endpoint (spec §4.2's "own
// network-audio sources"), not a browsable catalog. A catalog-backed
// provider (e.g. a Spotify Connect client) implements these instead.
func (p *HTTPStreamProvider) Search(ctx context.Context, query string, types []source.SearchType) (source.SearchResults, error) {
	return source.SearchResults{}, errs.New(errs.NotSupported, "hw.Search", "stream provider has no catalog to search")
}

func (p *HTTPStreamProvider) BrowseCategories(ctx context.Context) ([]source.Category, error) {
	return nil, errs.New(errs.NotSupported, "hw.BrowseCategories", "stream provider has no browsable catalog")
}

func (p *HTTPStreamProvider) BrowseCategoryPlaylists(ctx context.Context, categoryID string) ([]source.Playlist, error) {
	return nil, errs.New(errs.NotSupported, "hw.BrowseCategoryPlaylists", "stream provider has no browsable catalog")
}

func (p *HTTPStreamProvider) BrowseUserPlaylists(ctx context.Context) ([]source.Playlist, error) {
	return nil, errs.New(errs.NotSupported, "hw.BrowseUserPlaylists", "stream provider has no browsable catalog")
}

func (p *HTTPStreamProvider) BrowsePlaylistDetails(ctx context.Context, playlistURI string) (source.PlaylistDetails, error) {
	return source.PlaylistDetails{}, errs.New(errs.NotSupported, "hw.BrowsePlaylistDetails", "stream provider has no browsable catalog")
}

// --- Tuner (SDR / broadcast radio) ------------------------------------

// SilentTuner is the default Tuner when no RF hardware is attached: no
// SDR/rig-control library appears anywhere in the example pack (see
// DESIGN.md's "dependencies considered and not wired"), so real tuning
// hardware is wired in only via a custom build; this keeps SdrRadio
// constructible and testable on appliances without a tuner card.
type SilentTuner struct {
	ring *pcm.Ring
}

func NewSilentTuner() *SilentTuner { return &SilentTuner{ring: pcm.NewRing(8)} }

func (t *SilentTuner) Tune(band source.Band, frequencyKHz float64) error { return nil }
func (t *SilentTuner) SetGain(db float64) error                         { return nil }
func (t *SilentTuner) SetAutoGain(on bool) error                        { return nil }
func (t *SilentTuner) SetEqualizerMode(mode string) error                { return nil }
func (t *SilentTuner) SetDeviceVolume(v float64) error                  { return nil }

// Signal reports no reception at all: there is no RF front end behind
// this tuner to report a real strength or stereo pilot.
func (t *SilentTuner) Signal() (strength float64, stereo bool) { return 0, false }

func (t *SilentTuner) Capture() *pcm.Ring { return t.ring }

// feedSilence keeps the ring non-empty so Produce doesn't immediately
// report underrun for a tuner with nothing actually connected.
func (t *SilentTuner) feedSilence(ctx context.Context) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.ring.Push(pcm.NewFrame(960))
		}
	}
}

// Run starts the silence feed; callers that construct a SilentTuner
// should run this alongside the appliance's lifetime.
func (t *SilentTuner) Run(ctx context.Context) { t.feedSilence(ctx) }
