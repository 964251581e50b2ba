// Package orchestrator implements the Source Orchestrator: registry
// ownership, the one-primary-playing invariant, DTO assembly with
// default substitution at the serialization boundary, and
// identification-gated metadata overlay (spec §4.10).
package orchestrator

import (
	"sync"
	"time"

	"audiorack/internal/ducking"
	"audiorack/internal/errs"
	"audiorack/internal/queue"
	"audiorack/internal/source"
	"audiorack/internal/state"
)

// PlaybackStateDto is the combined current-primary snapshot (spec
// §4.10).
type PlaybackStateDto struct {
	IsPlaying      bool
	IsPaused       bool
	Volume         float64
	IsMuted        bool
	Balance        float64
	Position       *time.Duration
	Duration       *time.Duration
	ActiveSourceID string
	DuckingState   *ducking.State

	CanPlay     bool
	CanPause    bool
	CanStop     bool
	CanSeek     bool
	CanNext     bool
	CanPrevious bool
	CanShuffle  bool
	CanRepeat   bool
	CanQueue    bool

	IsShuffleEnabled bool
	RepeatMode       *queue.RepeatMode
}

// NowPlayingDto never returns null strings; defaults are substituted
// when no source is active (spec §4.10).
type NowPlayingDto struct {
	SourceType  string
	SourceName  string
	Title       string
	Artist      string
	Album       string
	AlbumArtURL string
	Position    *time.Duration
	Duration    *time.Duration
}

// TrackIdentified is emitted by an external identification service
// (spec §4.10).
type TrackIdentified struct {
	Track        string
	Artist       string
	Confidence   float64
	IdentifiedAt time.Time
}

// ShuffleRepeatSource is the subset of IPlayQueue the orchestrator
// reads for DTO assembly (capability gating on sources that have a
// queue). Implemented by source.FilePlayer; source.StreamingService
// does not implement it.
type ShuffleRepeatSource interface {
	ShuffleEnabled() bool
	RepeatMode() queue.RepeatMode
}

// Registry owns AudioSources by id and enforces the one-primary-playing
// invariant (spec §3: "Exactly one primary source may be in Playing or
// Paused at any time").
type Registry struct {
	mu      sync.Mutex
	sources map[string]source.Source
	primary string // id of the current primary source, "" if none
	ducking *ducking.Engine
}

// New returns an empty Registry driven by the given ducking engine
// (shared with the mixer wiring in internal/runtime).
func New(duckEngine *ducking.Engine) *Registry {
	return &Registry{sources: map[string]source.Source{}, ducking: duckEngine}
}

// Register adds a source to the registry. Does not change primary.
func (r *Registry) Register(s source.Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.ID()] = s
}

// Unregister removes a source, disposing it first if not already.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	s, ok := r.sources[id]
	if !ok {
		r.mu.Unlock()
		return errs.New(errs.NotFound, "Registry.Unregister", "no such source: "+id)
	}
	delete(r.sources, id)
	if r.primary == id {
		r.primary = ""
	}
	r.mu.Unlock()
	return s.Dispose()
}

func (r *Registry) Get(id string) (source.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sources[id]
	if !ok {
		return nil, errs.New(errs.NotFound, "Registry.Get", "no such source: "+id)
	}
	return s, nil
}

// All returns every registered source (spec §6 Sources "list available").
func (r *Registry) All() []source.Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]source.Source, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s)
	}
	return out
}

// Primary returns the current primary source, or nil if none.
func (r *Registry) Primary() source.Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.primary == "" {
		return nil
	}
	return r.sources[r.primary]
}

// SetPrimaryAndPlay enforces §3's one-primary invariant: if a different
// source is currently primary and Playing/Paused, it is stopped before
// the requested source starts (spec §4.10: "enforcing the
// one-primary-playing invariant by ensuring that starting a new primary
// source first stops the previous primary").
func (r *Registry) SetPrimaryAndPlay(id string) error {
	r.mu.Lock()
	next, ok := r.sources[id]
	if !ok {
		r.mu.Unlock()
		return errs.New(errs.NotFound, "Registry.SetPrimaryAndPlay", "no such source: "+id)
	}
	prevID := r.primary
	var prev source.Source
	if prevID != "" && prevID != id {
		prev = r.sources[prevID]
	}
	r.primary = id
	r.mu.Unlock()

	if prev != nil {
		st := prev.State()
		if st == state.Playing || st == state.Paused {
			if err := prev.Stop(); err != nil {
				return err
			}
		}
	}
	return next.Play()
}

// DeregisterEvent satisfies event.Deregisterer for event sources that
// self-stop; the orchestrator has no bookkeeping to do beyond what the
// event's own Dispose already covers, but this hook exists so runtime
// wiring has a single place to route deregistration (e.g. dropping the
// event's mixer row).
func (r *Registry) DeregisterEvent(id string) {}

// BuildPlaybackState assembles the DTO for the current primary, or a
// quiescent snapshot when none is active.
func (r *Registry) BuildPlaybackState(balance float64, muted bool) PlaybackStateDto {
	p := r.Primary()
	if p == nil {
		return PlaybackStateDto{Balance: balance, IsMuted: muted}
	}
	st := p.State()
	dto := PlaybackStateDto{
		IsPlaying:      st == state.Playing,
		IsPaused:       st == state.Paused,
		Volume:         p.Volume(),
		IsMuted:        muted,
		Balance:        balance,
		Duration:       p.Duration(),
		ActiveSourceID: p.ID(),
		CanPlay:        st == state.Ready || st == state.Stopped || st == state.Paused,
		CanPause:       st == state.Playing,
		CanStop:        st == state.Playing || st == state.Paused,
		CanSeek:        p.Capabilities().Seekable && (st == state.Playing || st == state.Paused),
		CanNext:        p.Capabilities().SupportsNext,
		CanPrevious:    p.Capabilities().SupportsPrevious,
		CanShuffle:     p.Capabilities().SupportsShuffle,
		CanRepeat:      p.Capabilities().SupportsRepeat,
		CanQueue:       p.Capabilities().HasQueue,
	}
	pos := p.Position()
	dto.Position = &pos

	if sr, ok := p.(ShuffleRepeatSource); ok {
		dto.IsShuffleEnabled = sr.ShuffleEnabled()
		mode := sr.RepeatMode()
		dto.RepeatMode = &mode
	}
	return dto
}

// BuildNowPlaying assembles the now-playing DTO, substituting defaults
// when no source is active (spec §4.10).
func (r *Registry) BuildNowPlaying() NowPlayingDto {
	p := r.Primary()
	if p == nil {
		return NowPlayingDto{
			SourceType:  "None",
			SourceName:  "No Source",
			Title:       "No Track",
			Artist:      "--",
			Album:       "--",
			AlbumArtURL: source.DefaultAlbumArtURL,
		}
	}
	md := p.Metadata().Defaulted()
	dto := NowPlayingDto{
		SourceType:  p.Type(),
		SourceName:  p.Name(),
		Title:       md.String(source.KeyTitle),
		Artist:      md.String(source.KeyArtist),
		Album:       md.String(source.KeyAlbum),
		AlbumArtURL: md.String(source.KeyAlbumArtURL),
		Duration:    p.Duration(),
	}
	pos := p.Position()
	dto.Position = &pos
	return dto
}

// MetadataOverlayTarget is satisfied by any source.Source variant that
// can have identification metadata merged in (all of them, via
// source.Base.MergeMetadata).
type MetadataOverlayTarget interface {
	MergeMetadata(updates source.Metadata)
}

// ApplyIdentification overlays identification metadata into the primary
// source's metadata map, but only when it is Playing or Paused (spec
// §4.10: "only when the source is Playing or Paused ... Events in
// states other than Playing/Paused are ignored"). Preserves any
// previously present Source/Device keys.
func (r *Registry) ApplyIdentification(event TrackIdentified) {
	p := r.Primary()
	if p == nil {
		return
	}
	st := p.State()
	if st != state.Playing && st != state.Paused {
		return
	}
	target, ok := p.(MetadataOverlayTarget)
	if !ok {
		return
	}
	target.MergeMetadata(source.Metadata{
		source.KeyTitle:              event.Track,
		source.KeyArtist:             event.Artist,
		source.KeyIdentificationConf: event.Confidence,
		source.KeyIdentifiedAt:       event.IdentifiedAt,
		source.KeyMetadataSource:     "Fingerprinting",
	})
}
