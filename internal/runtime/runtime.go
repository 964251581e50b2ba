// Package runtime assembles every module into the running appliance
// and supervises its background tasks: the fan-out tick loop, the
// ducking ramp, visualization analysis, and the HTTP server. Grounded
// on the teacher's server composition root (server/main.go) but driven
// by golang.org/x/sync/errgroup instead of a hand-rolled WaitGroup, the
// pack's own idiom for "run N independent loops, stop all on the first
// fatal one, propagate cancellation" (this appliance's only user is
// itself, so the group's first error is acceptable to treat as fatal).
// Sources are not tasks in the group: the mixer mixes whatever each
// row's Produce returns, with no per-row error path, and never removes
// a row or publishes an Error state on a source's behalf.
package runtime

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"audiorack/internal/bus"
	"audiorack/internal/config"
	"audiorack/internal/devicemgr"
	"audiorack/internal/ducking"
	"audiorack/internal/fanout"
	"audiorack/internal/history"
	"audiorack/internal/httpapi"
	"audiorack/internal/mixer"
	"audiorack/internal/orchestrator"
	"audiorack/internal/output"
	"audiorack/internal/pcm"
	"audiorack/internal/source"
	"audiorack/internal/state"
	"audiorack/internal/store"
	"audiorack/internal/viz"
	"audiorack/internal/wshub"
)

const (
	mixFrameSize = 960 // 20ms @ 48kHz, the appliance's canonical tick granularity
	duckTickRate = 20 * time.Millisecond
	vizTickRate  = 40 * time.Millisecond // 25 Hz, above the spec's 20 Hz floor
)

// Runtime owns every long-lived component and exposes the wiring points
// cmd/audiorackd needs to attach concrete hardware (sources, outputs)
// before calling Run.
type Runtime struct {
	DB       *store.Store
	Bus      *bus.Bus
	Registry *orchestrator.Registry
	Mixer    *mixer.Mixer
	Duck     *ducking.Engine
	Events   *EventManager
	Devices  *devicemgr.Manager
	Config   *config.Manager
	History  *history.Recorder
	Fanout   *fanout.Fanout
	Viz      *viz.Service

	httpSrv *httpapi.Server
	wsHub   *wshub.Hub

	outputs  []output.Output
	httpAddr string
	clock    func() time.Time
}

// New assembles a Runtime from its already-constructed dependencies.
// Hardware-specific constructors (PortAudio openers, dnssd browsers,
// file systems) are cmd/audiorackd's responsibility; Runtime only
// wires the domain objects together.
func New(db *store.Store, deviceEnum devicemgr.Enumerator, httpAddr, streamEndpoint string, clock func() time.Time) *Runtime {
	b := bus.New()
	duck := ducking.New(ducking.Config{DuckPercentage: 70, AttackMs: 50, ReleaseMs: 400, Policy: ducking.FadeSmooth})
	registry := orchestrator.New(duck)
	mx := mixer.New()
	devices := devicemgr.New(deviceEnum)
	cfg := config.NewManager(db)
	hist := history.New(db, clock)
	events := NewEventManager(duck)
	fo := fanout.New(mx, mixFrameSize, 20*time.Millisecond)

	vizPull := fo.AddConsumer("viz")
	vizSvc := viz.NewService(
		adaptPuller(vizPull, mixFrameSize),
		viz.NewSpectrumAnalyzer(2048, true, 0.3, 48000),
		viz.NewLevelAnalyzer(500*time.Millisecond),
		viz.NewWaveformAnalyzer(512),
		vizTickRate,
	)

	rt := &Runtime{
		DB: db, Bus: b, Registry: registry, Mixer: mx, Duck: duck,
		Events: events, Devices: devices, Config: cfg, History: hist,
		Fanout: fo, Viz: vizSvc, httpAddr: httpAddr, clock: clock,
	}

	streamPull := fo.AddConsumer("http_stream")
	stream := output.NewHTTPStreamOutput("http_stream", 8, streamPull)
	rt.httpSrv = httpapi.New(registry, mx, devices, cfg, hist, stream, streamEndpoint)
	rt.wsHub = wshub.New(b)
	rt.wsHub.Register(rt.httpSrv.Echo(), "/ws/telemetry")
	rt.AddOutput(stream)

	vizSvc.OnSnapshot = func(snap viz.Snapshot) {
		b.Publish(bus.Event{Topic: bus.TopicSpectrum, Payload: snap.Spectrum})
		b.Publish(bus.Event{Topic: bus.TopicLevels, Payload: snap.Levels})
		b.Publish(bus.Event{Topic: bus.TopicWaveform, Payload: snap.Waveform})
	}

	return rt
}

// adaptPuller turns a fanout.Puller (pull N frames, silence on
// underrun) into the no-arg, ok-returning shape viz.Service expects.
// The fan-out ring never reports "no data" separately from silence, so
// ok is always true; viz treats an all-silent frame as is_active=false
// on its own (via RMS).
func adaptPuller(pull fanout.Puller, frames int) viz.Puller {
	return func() (pcm.Frame, bool) {
		return pull(frames), true
	}
}

// NewRadioPresetStore returns the source.PresetStore adapter for a radio
// with the given source id, bridging internal/store's int64-keyed rows
// to source.SdrRadio's string-ID contract.
func (rt *Runtime) NewRadioPresetStore(sourceID string) source.PresetStore {
	return newPresetStoreAdapter(rt.DB, sourceID)
}

// RegisterSource adds src to the registry and subscribes its state
// changes onto the bus (spec §2.9: state changes are published events).
func (rt *Runtime) RegisterSource(src source.Source) {
	rt.Registry.Register(src)
	src.Subscribe(func(ch state.Changed) {
		rt.Bus.Publish(bus.Event{Topic: bus.TopicStateChanged, Payload: ch})
	})
}

// AddOutput registers a background output (LocalOutput, HTTPStreamOutput,
// CastOutput) to be initialized/started/stopped alongside the runtime.
func (rt *Runtime) AddOutput(o output.Output) {
	rt.outputs = append(rt.outputs, o)
}

// Run starts every background task and blocks until ctx is cancelled or
// a task fails fatally.
func (rt *Runtime) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return rt.Fanout.Run(ctx) })
	g.Go(func() error { return rt.Viz.Run(ctx, rt.clock) })
	g.Go(func() error { return rt.runDuckTick(ctx) })

	for _, o := range rt.outputs {
		o := o
		if err := o.Initialize(); err != nil {
			return err
		}
		if err := o.Start(); err != nil {
			return err
		}
		g.Go(func() error {
			<-ctx.Done()
			return o.Stop()
		})
	}

	srv := &http.Server{Addr: rt.httpAddr, Handler: rt.httpSrv.Echo()}
	g.Go(func() error {
		slog.Info("runtime: http listening", "addr", rt.httpAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// runDuckTick advances the ducking ramp on its own duckTickRate ticker,
// separate from the mixer pull loop, and applies the resulting level to
// every row in Mixer.Rows(); no row is exempted here.
func (rt *Runtime) runDuckTick(ctx context.Context) error {
	ticker := time.NewTicker(duckTickRate)
	defer ticker.Stop()
	last := rt.clock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := rt.clock()
			dt := now.Sub(last)
			last = now
			level := rt.Duck.Tick(dt)
			for _, row := range rt.Mixer.Rows() {
				rt.Mixer.SetRowDuck(row.SourceID, level) //nolint:errcheck
			}
		}
	}
}
