// Package castout implements the CastOutput variant of the Output
// Fan-out: mDNS discovery of Chromecast-like receivers and session
// control over a narrow interface, with announce grounded on the
// pure-Go brutella/dnssd responder the pack already uses for service
// advertisement (doismellburning-samoyed/src/dns_sd.go).
package castout

import (
	"context"
	"log/slog"
	"sync"

	"github.com/brutella/dnssd"

	"audiorack/internal/errs"
	"audiorack/internal/output"
)

const castServiceType = "_googlecast._tcp"

// Device is one discovered Cast receiver (spec §4.6:
// "{id, friendly_name, ip, port, model}").
type Device struct {
	ID           string
	FriendlyName string
	IP           string
	Port         int
	Model        string
}

// Session drives the actual Cast protocol connection, abstracted since
// the receiver-app handshake is a third-party collaborator out of the
// core's scope.
type Session interface {
	Connect(d Device) error
	LoadMedia(streamURL string) error
	SetVolume(v float64) error
	SetMute(m bool) error
	Close() error
}

// Browser discovers Cast receivers via mDNS. Kept behind an interface
// because only dnssd's announce half is exercised by the pack; browsing
// is wired through a test double until a concrete browse implementation
// is available (see DESIGN.md).
type Browser interface {
	Browse(ctx context.Context) ([]Device, error)
}

// CastOutput connects to a Chromecast-like receiver, loads the stream
// endpoint as a live media source, and propagates volume/mute while
// Streaming (spec §4.6).
type CastOutput struct {
	id      string
	browser Browser
	session Session

	machine *output.Machine

	mu        sync.RWMutex
	volume    float64
	muted     bool
	device    Device
	streamURL string
}

func New(id string, browser Browser, session Session) *CastOutput {
	return &CastOutput{
		id:      id,
		browser: browser,
		session: session,
		machine: output.NewMachine(id),
		volume:  1.0,
	}
}

func (c *CastOutput) ID() string                  { return c.id }
func (c *CastOutput) State() output.State         { return c.machine.Current() }
func (c *CastOutput) OnStateChanged(fn func(output.Changed)) func() { return c.machine.Subscribe(fn) }

// Discover browses for available receivers (spec §4.6 "discovery via
// mDNS returns device records").
func (c *CastOutput) Discover(ctx context.Context) ([]Device, error) {
	return c.browser.Browse(ctx)
}

func (c *CastOutput) Initialize() error {
	return c.machine.Require("CastOutput.Initialize", output.Created, output.Error)
}

// Connect transitions Created/Ready/Error -> Ready via Connecting
// (spec §4.6: "connect(device) -> Ready").
func (c *CastOutput) Connect(d Device) error {
	if err := c.machine.Require("CastOutput.Connect", output.Created, output.Ready, output.Error); err != nil {
		return err
	}
	c.machine.Transition(output.Connecting)
	if err := c.session.Connect(d); err != nil {
		c.machine.Fail(err)
		return errs.Wrap(errs.External, "CastOutput.Connect", "connect to cast device", err)
	}
	c.mu.Lock()
	c.device = d
	c.mu.Unlock()
	c.machine.Transition(output.Ready)
	return nil
}

// SetStreamURL sets the preset stream URL loaded on Start (spec §4.6:
// "loads media at a preset stream URL").
func (c *CastOutput) SetStreamURL(url string) {
	c.mu.Lock()
	c.streamURL = url
	c.mu.Unlock()
}

func (c *CastOutput) Start() error {
	if err := c.machine.Require("CastOutput.Start", output.Ready, output.Stopped); err != nil {
		return err
	}
	c.mu.RLock()
	url := c.streamURL
	c.mu.RUnlock()
	if err := c.session.LoadMedia(url); err != nil {
		c.machine.Fail(err)
		return errs.Wrap(errs.External, "CastOutput.Start", "load media", err)
	}
	c.machine.Transition(output.Streaming)
	return nil
}

func (c *CastOutput) Stop() error {
	if err := c.machine.Require("CastOutput.Stop", output.Streaming); err != nil {
		return err
	}
	c.machine.Transition(output.Stopping)
	c.machine.Transition(output.Stopped)
	return nil
}

func (c *CastOutput) Dispose() error {
	already := c.machine.Dispose()
	if already {
		return nil
	}
	if err := c.session.Close(); err != nil {
		slog.Warn("cast output: close session failed", "error", err)
	}
	return nil
}

func (c *CastOutput) Volume() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.volume
}

// SetVolume propagates to the receiver only while Streaming (spec
// §4.6: "set_volume/set_mute propagate when Streaming").
func (c *CastOutput) SetVolume(v float64) error {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	c.mu.Lock()
	c.volume = v
	c.mu.Unlock()
	if c.State() == output.Streaming {
		return c.session.SetVolume(v)
	}
	return nil
}

func (c *CastOutput) Mute() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.muted
}

func (c *CastOutput) SetMute(m bool) error {
	c.mu.Lock()
	c.muted = m
	c.mu.Unlock()
	if c.State() == output.Streaming {
		return c.session.SetMute(m)
	}
	return nil
}

// DnssdAnnouncer advertises this appliance's own control surface over
// mDNS (spec §6 design note: discoverability of the appliance itself),
// mirroring the pack's announce/responder pairing.
type DnssdAnnouncer struct {
	responder *dnssd.Responder
	cancel    context.CancelFunc
}

// Announce registers an mDNS service record for this appliance's HTTP
// control API and starts responding to queries until Close is called.
func Announce(name string, port int) (*DnssdAnnouncer, error) {
	cfg := dnssd.Config{
		Name: name,
		Type: "_audiorack._tcp",
		Port: port,
	}
	svc, err := dnssd.NewService(cfg)
	if err != nil {
		return nil, errs.Wrap(errs.External, "castout.Announce", "create dnssd service", err)
	}
	responder, err := dnssd.NewResponder()
	if err != nil {
		return nil, errs.Wrap(errs.External, "castout.Announce", "create dnssd responder", err)
	}
	if _, err := responder.Add(svc); err != nil {
		return nil, errs.Wrap(errs.External, "castout.Announce", "register dnssd service", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := responder.Respond(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("castout: dnssd responder stopped", "error", err)
		}
	}()

	return &DnssdAnnouncer{responder: responder, cancel: cancel}, nil
}

// Close stops responding to mDNS queries.
func (a *DnssdAnnouncer) Close() {
	a.cancel()
}
