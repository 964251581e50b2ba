package source

import (
	"context"
	"sort"
	"sync"
	"time"

	"audiorack/internal/errs"
	"audiorack/internal/pcm"
	"audiorack/internal/queue"
	"audiorack/internal/state"
)

// allowedExtensions is FilePlayer's format allow-list (spec §4.2).
var allowedExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".wav":  true,
	".ogg":  true,
	".m4a":  true,
	".aac":  true,
}

// FileEntry describes one file the FileSystem abstraction exposes, kept
// minimal enough to unit test without real decoders.
type FileEntry struct {
	RelPath  string
	Ext      string
	Title    string
	Artist   string
	Album    string
	Duration *time.Duration
}

// FileSystem abstracts directory listing and decode so FilePlayer can be
// tested without real audio files, mirroring the teacher's paStream
// test-double split (rustyguts-bken/client/audio.go).
type FileSystem interface {
	// ListDirectory returns the files directly under relDir, sorted by
	// name. Returns NotFound/Empty per spec §4.2.
	ListDirectory(relDir string) ([]FileEntry, error)
	// Stat returns one file's entry, or NotFound/UnsupportedFormat.
	Stat(relPath string) (FileEntry, error)
	// Open returns a ring that a background decode task fills with
	// relPath's PCM, sized depth frames deep.
	Open(relPath string, depth int) (*pcm.Ring, error)
}

// Prefs persists FilePlayer's last-played state across restarts (spec
// §4.2). Dispose saves last_played, position_ms, shuffle and repeat;
// Initialize restores shuffle, repeat and position, and does not apply
// the saved last_played.
type Prefs interface {
	LoadSourcePrefs(sourceID string) (lastPlayed string, positionMs int64, shuffle bool, repeat queue.RepeatMode, ok bool)
	SaveSourcePrefs(sourceID, lastPlayed string, positionMs int64, shuffle bool, repeat queue.RepeatMode)
}

const ringDepth = 64 // ~1.3s of 20ms frames, generous headroom for decode jitter

// FilePlayer plays local files with a full IPlayQueue (spec §4.2, §4.7).
type FilePlayer struct {
	*Base

	fs    FileSystem
	prefs Prefs

	mu  sync.Mutex
	q   *queue.Queue
	ring *pcm.Ring
}

// NewFilePlayer constructs a FilePlayer. seed drives deterministic
// shuffle (spec §8 S6).
func NewFilePlayer(id, name string, fs FileSystem, prefs Prefs, seed int64) *FilePlayer {
	caps := Capabilities{
		Seekable: true, HasQueue: true, SupportsNext: true,
		SupportsPrevious: true, SupportsShuffle: true, SupportsRepeat: true,
	}
	fp := &FilePlayer{
		Base: NewBase(id, name, "FilePlayer", CategoryPrimary, caps),
		fs:   fs,
		prefs: prefs,
		q:    queue.New(seed),
		ring: pcm.NewRing(ringDepth),
	}
	return fp
}

// Initialize restores persisted prefs (spec §4.2).
func (fp *FilePlayer) Initialize(ctx context.Context) error {
	if err := fp.RequireState("FilePlayer.Initialize", state.Created, state.Error); err != nil {
		return err
	}
	fp.Machine().Transition(state.Initializing)

	if fp.prefs != nil {
		if lastPlayed, posMs, shuffle, repeat, ok := fp.prefs.LoadSourcePrefs(fp.ID()); ok {
			fp.q.SetRepeatMode(repeat)
			fp.q.SetShuffle(shuffle)
			fp.SetPosition(time.Duration(posMs) * time.Millisecond)
			_ = lastPlayed
		}
	}

	fp.Machine().Transition(state.Ready)
	return nil
}

// LoadFile loads a single file as a one-item queue (spec §4.2).
func (fp *FilePlayer) LoadFile(relPath string) error {
	entry, err := fp.statChecked(relPath)
	if err != nil {
		return err
	}
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.q.Reset([]queue.Item{toQueueItem(entry, 0)})
	fp.syncCurrentMetadataLocked()
	return nil
}

// LoadDirectory loads every allow-listed file directly under relDir
// (spec §4.2). When shuffle is already enabled, the resolved list is
// shuffled here, at load time, not on first play.
func (fp *FilePlayer) LoadDirectory(relDir string) error {
	entries, err := fp.fs.ListDirectory(relDir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return errs.New(errs.NotFound, "FilePlayer.LoadDirectory", "directory is empty")
	}

	var filtered []FileEntry
	for _, e := range entries {
		if allowedExtensions[e.Ext] {
			filtered = append(filtered, e)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].RelPath < filtered[j].RelPath })

	items := make([]queue.Item, len(filtered))
	for i, e := range filtered {
		items[i] = toQueueItem(e, i)
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()
	wasShuffled := fp.q.Shuffled()
	fp.q.Reset(items)
	if wasShuffled {
		fp.q.SetShuffle(true)
	}
	fp.syncCurrentMetadataLocked()
	return nil
}

func (fp *FilePlayer) statChecked(relPath string) (FileEntry, error) {
	entry, err := fp.fs.Stat(relPath)
	if err != nil {
		return FileEntry{}, err
	}
	if !allowedExtensions[entry.Ext] {
		return FileEntry{}, errs.New(errs.InvalidArgument, "FilePlayer.LoadFile", "unsupported format: "+entry.Ext)
	}
	return entry, nil
}

func toQueueItem(e FileEntry, idx int) queue.Item {
	return queue.Item{ID: e.RelPath, Title: e.Title, Artist: e.Artist, Album: e.Album, Duration: e.Duration, Index: idx}
}

func (fp *FilePlayer) syncCurrentMetadataLocked() {
	cur, ok := fp.q.Current()
	if !ok {
		fp.SetMetadata(Metadata{})
		fp.SetDuration(nil)
		return
	}
	md := Metadata{
		KeyTitle:  cur.Title,
		KeyArtist: cur.Artist,
		KeyAlbum:  cur.Album,
	}
	if cur.AlbumArtURL != "" {
		md[KeyAlbumArtURL] = cur.AlbumArtURL
	}
	fp.SetMetadata(md)
	fp.SetDuration(cur.Duration)
	fp.SetPosition(0)
}

// Play starts (or resumes) playback of the current queue item (spec §4.2).
func (fp *FilePlayer) Play() error {
	if err := fp.RequireState("FilePlayer.Play", state.Ready, state.Stopped, state.Paused); err != nil {
		return err
	}
	fp.mu.Lock()
	if _, ok := fp.q.Current(); !ok {
		fp.mu.Unlock()
		return errs.New(errs.NotFound, "FilePlayer.Play", "queue is empty")
	}
	fp.mu.Unlock()
	fp.Machine().Transition(state.Playing)
	return nil
}

func (fp *FilePlayer) Pause() error {
	if err := fp.RequireState("FilePlayer.Pause", state.Playing); err != nil {
		return err
	}
	fp.Machine().Transition(state.Paused)
	return nil
}

func (fp *FilePlayer) Resume() error {
	if err := fp.RequireState("FilePlayer.Resume", state.Paused); err != nil {
		return err
	}
	fp.Machine().Transition(state.Playing)
	return nil
}

func (fp *FilePlayer) Stop() error {
	if err := fp.RequireState("FilePlayer.Stop", state.Playing, state.Paused); err != nil {
		return err
	}
	fp.Machine().Transition(state.Stopped)
	return nil
}

// Seek sets the playback position (spec §4.2; FilePlayer is always
// seekable).
func (fp *FilePlayer) Seek(pos time.Duration) error {
	if err := fp.RequireState("FilePlayer.Seek", state.Playing, state.Paused); err != nil {
		return err
	}
	fp.SetPosition(pos)
	return nil
}

func (fp *FilePlayer) Dispose() error {
	already := fp.Machine().Dispose()
	if already {
		return nil
	}
	if fp.prefs != nil {
		fp.mu.Lock()
		cur, _ := fp.q.Current()
		fp.prefs.SaveSourcePrefs(fp.ID(), cur.ID, fp.Position().Milliseconds(), fp.q.Shuffled(), fp.q.RepeatMode())
		fp.mu.Unlock()
	}
	return nil
}

func (fp *FilePlayer) SoundComponent() SampleProducer { return &RingProducer{Ring: fp.ring} }

// --- IPlayQueue (spec §4.7) ---

func (fp *FilePlayer) GetQueue() []queue.Item {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.q.Items()
}

func (fp *FilePlayer) AddToQueue(item queue.Item, position *int) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.q.Add(item, position)
}

func (fp *FilePlayer) RemoveFromQueue(index int) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	becameEmpty, err := fp.q.Remove(index)
	if err != nil {
		return err
	}
	if becameEmpty && (fp.State() == state.Playing || fp.State() == state.Paused) {
		fp.Machine().Transition(state.Stopped)
	}
	fp.syncCurrentMetadataLocked()
	return nil
}

func (fp *FilePlayer) ClearQueue() {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.q.Clear()
	if fp.State() == state.Playing || fp.State() == state.Paused {
		fp.Machine().Transition(state.Stopped)
	}
	fp.syncCurrentMetadataLocked()
}

func (fp *FilePlayer) MoveQueueItem(from, to int) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.q.Move(from, to)
}

func (fp *FilePlayer) JumpToIndex(index int) error {
	fp.mu.Lock()
	if err := fp.q.JumpTo(index); err != nil {
		fp.mu.Unlock()
		return err
	}
	fp.syncCurrentMetadataLocked()
	fp.mu.Unlock()
	return fp.playAfterNavigation()
}

func (fp *FilePlayer) playAfterNavigation() error {
	switch fp.State() {
	case state.Ready, state.Stopped, state.Paused:
		fp.Machine().Transition(state.Playing)
	}
	return nil
}

// Next advances the queue per RepeatMode (spec §4.7).
func (fp *FilePlayer) Next() error {
	fp.mu.Lock()
	ended := fp.q.Next()
	fp.syncCurrentMetadataLocked()
	fp.mu.Unlock()
	if ended {
		if fp.State() == state.Playing || fp.State() == state.Paused {
			fp.Machine().Transition(state.Stopped)
		}
		return nil
	}
	return fp.playAfterNavigation()
}

// Previous implements the ">3s seeks to 0" rule (spec §4.7).
func (fp *FilePlayer) Previous() error {
	if fp.Position() > 3*time.Second {
		fp.SetPosition(0)
		return nil
	}
	fp.mu.Lock()
	fp.q.Previous()
	fp.syncCurrentMetadataLocked()
	fp.mu.Unlock()
	return fp.playAfterNavigation()
}

// SetShuffle toggles queue shuffling (spec §4.7).
func (fp *FilePlayer) SetShuffle(on bool) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.q.SetShuffle(on)
}

func (fp *FilePlayer) ShuffleEnabled() bool {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.q.Shuffled()
}

func (fp *FilePlayer) SetRepeatMode(mode queue.RepeatMode) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.q.SetRepeatMode(mode)
}

func (fp *FilePlayer) RepeatMode() queue.RepeatMode {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.q.RepeatMode()
}
