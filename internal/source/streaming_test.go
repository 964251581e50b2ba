package source

import (
	"context"
	"testing"
	"time"

	"audiorack/internal/errs"
	"audiorack/internal/pcm"
	"audiorack/internal/queue"
)

type fakeStreamProvider struct {
	playedURI   string
	playedCtx   string
	ring        *pcm.Ring
	remoteQueue RemoteQueue
	metadata    Metadata
	playErr     error
	addQueueErr error
	addedURIs   []string

	searchResults    SearchResults
	categories       []Category
	categoryLists    []Playlist
	userLists        []Playlist
	playlistDetails  PlaylistDetails
	searchedQuery    string
	searchedTypes    []SearchType
	browsedCategory  string
	browsedPlaylist  string
}

func newFakeStreamProvider() *fakeStreamProvider {
	return &fakeStreamProvider{ring: pcm.NewRing(8), metadata: Metadata{KeyTitle: "Remote Track"}}
}

func (p *fakeStreamProvider) Play(ctx context.Context, uri, contextURI string) (*pcm.Ring, error) {
	if p.playErr != nil {
		return nil, p.playErr
	}
	p.playedURI = uri
	p.playedCtx = contextURI
	return p.ring, nil
}

func (p *fakeStreamProvider) AddToQueue(uri string) error {
	if p.addQueueErr != nil {
		return p.addQueueErr
	}
	p.addedURIs = append(p.addedURIs, uri)
	return nil
}

func (p *fakeStreamProvider) FetchRemoteQueue() (RemoteQueue, error) { return p.remoteQueue, nil }
func (p *fakeStreamProvider) FetchMetadata() Metadata                { return p.metadata }

func (p *fakeStreamProvider) Search(ctx context.Context, query string, types []SearchType) (SearchResults, error) {
	p.searchedQuery = query
	p.searchedTypes = types
	return p.searchResults, nil
}

func (p *fakeStreamProvider) BrowseCategories(ctx context.Context) ([]Category, error) {
	return p.categories, nil
}

func (p *fakeStreamProvider) BrowseCategoryPlaylists(ctx context.Context, categoryID string) ([]Playlist, error) {
	p.browsedCategory = categoryID
	return p.categoryLists, nil
}

func (p *fakeStreamProvider) BrowseUserPlaylists(ctx context.Context) ([]Playlist, error) {
	return p.userLists, nil
}

func (p *fakeStreamProvider) BrowsePlaylistDetails(ctx context.Context, playlistURI string) (PlaylistDetails, error) {
	p.browsedPlaylist = playlistURI
	return p.playlistDetails, nil
}

func TestStreamingServicePlayURITransitionsToPlaying(t *testing.T) {
	provider := newFakeStreamProvider()
	s := NewStreamingService("spotify-1", "Spotify", provider)
	s.Initialize(context.Background())

	if err := s.PlayURI(context.Background(), "spotify:track:1", "spotify:album:1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.playedURI != "spotify:track:1" || provider.playedCtx != "spotify:album:1" {
		t.Fatalf("provider did not receive expected uri/context")
	}
	if s.Metadata().String(KeyTitle) != "Remote Track" {
		t.Fatal("expected metadata from provider")
	}
}

func TestStreamingServiceQueueMutationNotSupported(t *testing.T) {
	provider := newFakeStreamProvider()
	s := NewStreamingService("spotify-1", "Spotify", provider)
	s.Initialize(context.Background())

	if err := s.RemoveFromQueue(0); !errs.Is(err, errs.NotSupported) {
		t.Fatalf("expected NotSupported for RemoveFromQueue, got %v", err)
	}
	if err := s.ClearQueue(); !errs.Is(err, errs.NotSupported) {
		t.Fatalf("expected NotSupported for ClearQueue, got %v", err)
	}
	if err := s.MoveQueueItem(0, 1); !errs.Is(err, errs.NotSupported) {
		t.Fatalf("expected NotSupported for MoveQueueItem, got %v", err)
	}
	if err := s.JumpToIndex(0); !errs.Is(err, errs.NotSupported) {
		t.Fatalf("expected NotSupported for JumpToIndex, got %v", err)
	}
}

func TestStreamingServiceGetQueueMirrorsRemote(t *testing.T) {
	provider := newFakeStreamProvider()
	provider.remoteQueue = RemoteQueue{
		Items:        []queue.Item{{ID: "a", Title: "Track A"}},
		CurrentIndex: 0,
	}
	s := NewStreamingService("spotify-1", "Spotify", provider)
	s.Initialize(context.Background())

	items, err := s.GetQueue()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].ID != "a" {
		t.Fatalf("unexpected queue mirror: %#v", items)
	}
}

func TestStreamingServiceSeekOnlyWhilePlayingOrPaused(t *testing.T) {
	provider := newFakeStreamProvider()
	s := NewStreamingService("spotify-1", "Spotify", provider)
	s.Initialize(context.Background())

	if err := s.Seek(time.Second); !errs.Is(err, errs.IllegalState) {
		t.Fatalf("expected IllegalState before playback, got %v", err)
	}

	s.PlayURI(context.Background(), "spotify:track:1", "")
	if err := s.Seek(5 * time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStreamingServiceSearchDelegates(t *testing.T) {
	provider := newFakeStreamProvider()
	provider.searchResults = SearchResults{Items: []SearchItem{{URI: "spotify:track:1", Type: SearchTrack, Title: "Song"}}}
	s := NewStreamingService("spotify-1", "Spotify", provider)
	s.Initialize(context.Background())

	results, err := s.Search(context.Background(), "song", []SearchType{SearchTrack, SearchAlbum})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.searchedQuery != "song" || len(provider.searchedTypes) != 2 {
		t.Fatalf("expected query/types forwarded to provider, got %q %v", provider.searchedQuery, provider.searchedTypes)
	}
	if len(results.Items) != 1 || results.Items[0].Title != "Song" {
		t.Fatalf("unexpected search results: %#v", results)
	}
}

func TestStreamingServiceBrowseDelegates(t *testing.T) {
	provider := newFakeStreamProvider()
	provider.categories = []Category{{ID: "podcasts", Name: "Podcasts"}}
	provider.categoryLists = []Playlist{{URI: "spotify:playlist:1", Name: "Top Podcasts"}}
	provider.userLists = []Playlist{{URI: "spotify:playlist:2", Name: "My Mix"}}
	provider.playlistDetails = PlaylistDetails{
		Playlist: Playlist{URI: "spotify:playlist:1", Name: "Top Podcasts"},
		Tracks:   []SearchItem{{URI: "spotify:track:9", Title: "Episode 1"}},
	}
	s := NewStreamingService("spotify-1", "Spotify", provider)
	s.Initialize(context.Background())

	cats, err := s.BrowseCategories(context.Background())
	if err != nil || len(cats) != 1 || cats[0].ID != "podcasts" {
		t.Fatalf("unexpected categories: %#v, err %v", cats, err)
	}

	lists, err := s.BrowseCategoryPlaylists(context.Background(), "podcasts")
	if err != nil || provider.browsedCategory != "podcasts" || len(lists) != 1 {
		t.Fatalf("unexpected category playlists: %#v, err %v", lists, err)
	}

	userLists, err := s.BrowseUserPlaylists(context.Background())
	if err != nil || len(userLists) != 1 || userLists[0].Name != "My Mix" {
		t.Fatalf("unexpected user playlists: %#v, err %v", userLists, err)
	}

	details, err := s.BrowsePlaylistDetails(context.Background(), "spotify:playlist:1")
	if err != nil || provider.browsedPlaylist != "spotify:playlist:1" || len(details.Tracks) != 1 {
		t.Fatalf("unexpected playlist details: %#v, err %v", details, err)
	}
}

func TestStreamingServiceAddToQueueDelegates(t *testing.T) {
	provider := newFakeStreamProvider()
	s := NewStreamingService("spotify-1", "Spotify", provider)
	s.Initialize(context.Background())

	if err := s.AddToQueue("spotify:track:2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(provider.addedURIs) != 1 || provider.addedURIs[0] != "spotify:track:2" {
		t.Fatalf("expected uri forwarded to provider, got %#v", provider.addedURIs)
	}
}
