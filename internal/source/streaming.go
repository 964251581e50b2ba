package source

import (
	"context"
	"sync"
	"time"

	"audiorack/internal/pcm"
	"audiorack/internal/queue"
	"audiorack/internal/state"
)

// RemoteQueue describes the queue as reported by a streaming provider.
// StreamingService's local queue is a read-only mirror (spec §4.2:
// "remote queue mutation is not supported locally; it is driven by the
// streaming provider's own client").
type RemoteQueue struct {
	Items        []queue.Item
	CurrentIndex int
}

// SearchType names the catalog kinds search(query, types) can filter
// on (spec §6 Streaming row: "search(query, types)").
type SearchType string

const (
	SearchTrack    SearchType = "track"
	SearchAlbum    SearchType = "album"
	SearchArtist   SearchType = "artist"
	SearchPlaylist SearchType = "playlist"
)

// SearchItem is one catalog hit returned by Search, general enough to
// cover tracks, albums, artists or playlists via Type.
type SearchItem struct {
	URI    string
	Type   SearchType
	Title  string
	Artist string
	Album  string
}

// SearchResults is the full response to a catalog search.
type SearchResults struct {
	Items []SearchItem
}

// Category is a browse-category entry (spec §6 Streaming row: "browse
// categories").
type Category struct {
	ID   string
	Name string
}

// Playlist is a browse-result playlist summary (spec §6 Streaming row:
// "browse ... category playlists / user playlists").
type Playlist struct {
	URI        string
	Name       string
	Owner      string
	TrackCount int
}

// PlaylistDetails is the full contents of one playlist (spec §6
// Streaming row: "browse ... playlist details").
type PlaylistDetails struct {
	Playlist
	Tracks []SearchItem
}

// StreamProvider drives playback of a remote URI, abstracted the way
// the teacher abstracts its decode backend (rustyguts-bken/client/audio.go).
// Search and browse are part of the same abstraction so any catalog
// backend (Spotify Connect, an internet-radio directory, ...) can be
// swapped in without touching StreamingService.
type StreamProvider interface {
	Play(ctx context.Context, uri, contextURI string) (*pcm.Ring, error)
	AddToQueue(uri string) error
	FetchRemoteQueue() (RemoteQueue, error)
	FetchMetadata() Metadata

	Search(ctx context.Context, query string, types []SearchType) (SearchResults, error)
	BrowseCategories(ctx context.Context) ([]Category, error)
	BrowseCategoryPlaylists(ctx context.Context, categoryID string) ([]Playlist, error)
	BrowseUserPlaylists(ctx context.Context) ([]Playlist, error)
	BrowsePlaylistDetails(ctx context.Context, playlistURI string) (PlaylistDetails, error)
}

// StreamingService plays provider-hosted streams (e.g. Spotify Connect).
// Seekable only while Playing or Paused; queue is a read-only remote mirror (spec
// §4.2).
type StreamingService struct {
	*Base

	provider StreamProvider

	mu   sync.Mutex
	ring *pcm.Ring
}

func NewStreamingService(id, name string, provider StreamProvider) *StreamingService {
	caps := Capabilities{
		Seekable: true, HasQueue: true,
		SupportsNext: true, SupportsPrevious: true,
	}
	return &StreamingService{
		Base:     NewBase(id, name, "StreamingService", CategoryPrimary, caps),
		provider: provider,
		ring:     pcm.NewRing(ringDepth),
	}
}

func (s *StreamingService) Initialize(ctx context.Context) error {
	if err := s.RequireState("StreamingService.Initialize", state.Created, state.Error); err != nil {
		return err
	}
	s.Machine().Transition(state.Initializing)
	s.Machine().Transition(state.Ready)
	return nil
}

// PlayURI starts playback of a provider URI, optionally within a
// context (album/playlist) URI (spec §4.2 "play(uri, context_uri?)").
func (s *StreamingService) PlayURI(ctx context.Context, uri, contextURI string) error {
	if err := s.RequireState("StreamingService.PlayURI", state.Ready, state.Stopped, state.Paused, state.Playing); err != nil {
		return err
	}
	ring, err := s.provider.Play(ctx, uri, contextURI)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ring = ring
	s.mu.Unlock()
	s.SetMetadata(s.provider.FetchMetadata())
	s.SetPosition(0)
	if s.State() != state.Playing {
		s.Machine().Transition(state.Playing)
	}
	return nil
}

// AddToQueue enqueues a URI on the remote provider (spec §4.2).
func (s *StreamingService) AddToQueue(uri string) error {
	return s.provider.AddToQueue(uri)
}

// GetQueue mirrors the provider's remote queue read-only.
func (s *StreamingService) GetQueue() ([]queue.Item, error) {
	rq, err := s.provider.FetchRemoteQueue()
	if err != nil {
		return nil, err
	}
	return rq.Items, nil
}

// Search delegates to the provider's catalog search (spec §6 Streaming
// row: "search(query, types)").
func (s *StreamingService) Search(ctx context.Context, query string, types []SearchType) (SearchResults, error) {
	return s.provider.Search(ctx, query, types)
}

// BrowseCategories delegates to the provider's top-level browse
// categories (spec §6 Streaming row: "browse categories").
func (s *StreamingService) BrowseCategories(ctx context.Context) ([]Category, error) {
	return s.provider.BrowseCategories(ctx)
}

// BrowseCategoryPlaylists delegates to the provider's playlists within
// a category (spec §6 Streaming row: "browse ... category playlists").
func (s *StreamingService) BrowseCategoryPlaylists(ctx context.Context, categoryID string) ([]Playlist, error) {
	return s.provider.BrowseCategoryPlaylists(ctx, categoryID)
}

// BrowseUserPlaylists delegates to the provider's own-user playlists
// (spec §6 Streaming row: "browse ... user playlists").
func (s *StreamingService) BrowseUserPlaylists(ctx context.Context) ([]Playlist, error) {
	return s.provider.BrowseUserPlaylists(ctx)
}

// BrowsePlaylistDetails delegates to the provider's full playlist
// contents (spec §6 Streaming row: "browse ... playlist details").
func (s *StreamingService) BrowsePlaylistDetails(ctx context.Context, playlistURI string) (PlaylistDetails, error) {
	return s.provider.BrowsePlaylistDetails(ctx, playlistURI)
}

// RemoveFromQueue, ClearQueue, MoveQueueItem and JumpToIndex are not
// supported locally: the remote provider owns queue mutation (spec
// §4.2).
func (s *StreamingService) RemoveFromQueue(int) error   { return ErrNotSupported("StreamingService.RemoveFromQueue") }
func (s *StreamingService) ClearQueue() error           { return ErrNotSupported("StreamingService.ClearQueue") }
func (s *StreamingService) MoveQueueItem(int, int) error { return ErrNotSupported("StreamingService.MoveQueueItem") }
func (s *StreamingService) JumpToIndex(int) error        { return ErrNotSupported("StreamingService.JumpToIndex") }

func (s *StreamingService) Play() error {
	if err := s.RequireState("StreamingService.Play", state.Ready, state.Stopped, state.Paused); err != nil {
		return err
	}
	s.Machine().Transition(state.Playing)
	return nil
}

func (s *StreamingService) Pause() error {
	if err := s.RequireState("StreamingService.Pause", state.Playing); err != nil {
		return err
	}
	s.Machine().Transition(state.Paused)
	return nil
}

func (s *StreamingService) Resume() error {
	if err := s.RequireState("StreamingService.Resume", state.Paused); err != nil {
		return err
	}
	s.Machine().Transition(state.Playing)
	return nil
}

func (s *StreamingService) Stop() error {
	if err := s.RequireState("StreamingService.Stop", state.Playing, state.Paused); err != nil {
		return err
	}
	s.Machine().Transition(state.Stopped)
	return nil
}

// Seek is only valid while Playing or Paused (spec §4.2: "seekable only
// while actively streaming").
func (s *StreamingService) Seek(pos time.Duration) error {
	if err := s.RequireState("StreamingService.Seek", state.Playing, state.Paused); err != nil {
		return err
	}
	s.SetPosition(pos)
	return nil
}

func (s *StreamingService) Dispose() error {
	already := s.Machine().Dispose()
	if already {
		return nil
	}
	return nil
}

func (s *StreamingService) SoundComponent() SampleProducer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &RingProducer{Ring: s.ring}
}
