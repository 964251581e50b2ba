package output

import (
	"log/slog"
	"strconv"
	"sync"

	"github.com/gordonklaus/portaudio"

	"audiorack/internal/errs"
	"audiorack/internal/pcm"
)

// paStream abstracts a PortAudio playback stream for testing, the same
// split the teacher uses for its own stream handle
// (rustyguts-bken/client/audio.go's paStream interface).
type paStream interface {
	Start() error
	Stop() error
	Close() error
	Write() error
}

// StreamOpener opens a playback stream bound to deviceID, writing from
// buf on each Write() call.
type StreamOpener interface {
	OpenPlayback(deviceID string, buf []float32) (paStream, error)
}

const localFrameSize = 960 // 20ms @ 48kHz, matching the mixer tick granularity

// LocalOutput routes the mixer's master PCM to the chosen playback
// device over PortAudio. Device change is hot: the next tick picks up
// the new device at the frame boundary (spec §4.6).
type LocalOutput struct {
	base

	opener StreamOpener
	source func(frames int) pcm.Frame // pulls from the mixer/fan-out consumer

	mu       sync.Mutex
	deviceID string
	stream   paStream
	buf      []float32
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewLocalOutput constructs a LocalOutput bound to deviceID, pulling
// frames from source (typically a mixer.OutputStream consumer's Pull,
// adapted to produce silence on underrun).
func NewLocalOutput(id, deviceID string, opener StreamOpener, source func(frames int) pcm.Frame) *LocalOutput {
	return &LocalOutput{
		base:     newBase(id),
		opener:   opener,
		source:   source,
		deviceID: deviceID,
	}
}

func (o *LocalOutput) Initialize() error {
	if err := o.machine.Require("LocalOutput.Initialize", Created, Error); err != nil {
		return err
	}
	o.machine.Transition(Initializing)
	o.machine.Transition(Ready)
	return nil
}

// SetDevice hot-swaps the playback device at the next frame boundary.
func (o *LocalOutput) SetDevice(deviceID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	wasStreaming := o.State() == Streaming
	if wasStreaming {
		o.stopStreamLocked()
	}
	o.deviceID = deviceID
	if wasStreaming {
		return o.startStreamLocked()
	}
	return nil
}

func (o *LocalOutput) Start() error {
	if err := o.machine.Require("LocalOutput.Start", Ready, Stopped); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.startStreamLocked(); err != nil {
		o.machine.Fail(err)
		return err
	}
	o.machine.Transition(Streaming)
	return nil
}

func (o *LocalOutput) startStreamLocked() error {
	o.buf = make([]float32, localFrameSize*pcm.Channels)
	stream, err := o.opener.OpenPlayback(o.deviceID, o.buf)
	if err != nil {
		return errs.Wrap(errs.External, "LocalOutput.Start", "open playback stream", err)
	}
	if err := stream.Start(); err != nil {
		return errs.Wrap(errs.External, "LocalOutput.Start", "start playback stream", err)
	}
	o.stream = stream
	o.stopCh = make(chan struct{})
	o.wg.Add(1)
	go o.writeLoop(stream, o.buf, o.stopCh)
	return nil
}

func (o *LocalOutput) writeLoop(stream paStream, buf []float32, stop chan struct{}) {
	defer o.wg.Done()
	framesPerBuf := len(buf) / pcm.Channels
	for {
		select {
		case <-stop:
			return
		default:
		}
		f := o.source(framesPerBuf)
		vol := o.Volume()
		if o.Mute() {
			vol = 0
		}
		n := f.FrameCount()
		for i := 0; i < framesPerBuf; i++ {
			if i < n {
				buf[i*pcm.Channels] = f.Samples[i*pcm.Channels] * float32(vol)
				buf[i*pcm.Channels+1] = f.Samples[i*pcm.Channels+1] * float32(vol)
			} else {
				buf[i*pcm.Channels] = 0
				buf[i*pcm.Channels+1] = 0
			}
		}
		if err := stream.Write(); err != nil {
			slog.Warn("local output: playback write failed", "output_id", o.ID(), "error", err)
			return
		}
	}
}

func (o *LocalOutput) Stop() error {
	if err := o.machine.Require("LocalOutput.Stop", Streaming); err != nil {
		return err
	}
	o.machine.Transition(Stopping)
	o.mu.Lock()
	o.stopStreamLocked()
	o.mu.Unlock()
	o.machine.Transition(Stopped)
	return nil
}

func (o *LocalOutput) stopStreamLocked() {
	if o.stream == nil {
		return
	}
	close(o.stopCh)
	o.wg.Wait()
	o.stream.Stop()
	o.stream.Close()
	o.stream = nil
}

func (o *LocalOutput) Dispose() error {
	already := o.machine.Dispose()
	if already {
		return nil
	}
	o.mu.Lock()
	o.stopStreamLocked()
	o.mu.Unlock()
	return nil
}

// PortAudioStreamOpener opens real PortAudio output streams, the
// production StreamOpener.
type PortAudioStreamOpener struct{}

func (PortAudioStreamOpener) OpenPlayback(deviceID string, buf []float32) (paStream, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	dev, err := resolveDeviceByID(devices, deviceID)
	if err != nil {
		return nil, err
	}
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: pcm.Channels,
			Latency:  dev.DefaultLowOutputLatency,
		},
		SampleRate:      pcm.SampleRate,
		FramesPerBuffer: len(buf) / pcm.Channels,
	}
	return portaudio.OpenStream(params, buf)
}

func resolveDeviceByID(devices []*portaudio.DeviceInfo, deviceID string) (*portaudio.DeviceInfo, error) {
	if deviceID == "" {
		return portaudio.DefaultOutputDevice()
	}
	for i, d := range devices {
		if strconv.Itoa(i) == deviceID {
			return d, nil
		}
	}
	return nil, errs.New(errs.NotFound, "resolveDeviceByID", "no such output device: "+deviceID)
}
