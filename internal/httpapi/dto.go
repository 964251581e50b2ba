package httpapi

import (
	"audiorack/internal/queue"
	"audiorack/internal/source"
)

// playbackUpdateRequest models the Playback "update" operation's
// request body (spec §6: action ∈ {None, Play, Pause, Stop, Seek}).
type playbackUpdateRequest struct {
	SourceID     string   `json:"source_id,omitempty"`
	Action       string   `json:"action"`
	Volume       *float64 `json:"volume,omitempty"`
	Balance      *float64 `json:"balance,omitempty"`
	IsMuted      *bool    `json:"is_muted,omitempty"`
	SeekPosition *int64   `json:"seek_position_ms,omitempty"`
}

type volumeRequest struct {
	Volume  *float64 `json:"volume,omitempty"`
	Muted   *bool    `json:"is_muted,omitempty"`
	Balance *float64 `json:"balance,omitempty"`
}

type volumeDto struct {
	Volume  float64 `json:"volume"`
	IsMuted bool    `json:"is_muted"`
	Balance float64 `json:"balance"`
}

type selectSourceRequest struct {
	SourceID string `json:"source_id"`
}

type queueItemDto struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Index      int    `json:"index"`
	IsCurrent  bool   `json:"is_current"`
}

func toQueueItemDto(it queue.Item) queueItemDto {
	dto := queueItemDto{ID: it.ID, Title: it.Title, Artist: it.Artist, Album: it.Album, Index: it.Index, IsCurrent: it.IsCurrent}
	if it.Duration != nil {
		dto.DurationMs = it.Duration.Milliseconds()
	}
	return dto
}

type addToQueueRequest struct {
	Item     queueItemDto `json:"item"`
	Position *int         `json:"position,omitempty"`
}

type moveQueueRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type radioFrequencyRequest struct {
	Band      string  `json:"band"`
	Frequency float64 `json:"frequency"`
}

type radioGainRequest struct {
	DB float64 `json:"db"`
}

type radioAutoGainRequest struct {
	On bool `json:"on"`
}

type radioStepRequest struct {
	Up bool `json:"up"`
}

type radioStateDto struct {
	Band           string  `json:"band"`
	Frequency      float64 `json:"frequency"`
	Step           float64 `json:"step"`
	SignalStrength float64 `json:"signal_strength"`
	Stereo         bool    `json:"stereo"`
	IsScanning     bool    `json:"is_scanning"`
	ScanDirection  string  `json:"scan_direction,omitempty"`
	EqualizerMode  string  `json:"equalizer_mode"`
	DeviceVolume   float64 `json:"device_volume"`
	Gain           float64 `json:"gain"`
	AutoGain       bool    `json:"auto_gain"`
	Running        bool    `json:"running"`
}

func toRadioStateDto(st source.RadioState) radioStateDto {
	return radioStateDto{
		Band:           string(st.Band),
		Frequency:      st.Frequency,
		Step:           st.Step,
		SignalStrength: st.SignalStrength,
		Stereo:         st.Stereo,
		IsScanning:     st.IsScanning,
		ScanDirection:  string(st.ScanDirection),
		EqualizerMode:  st.EqualizerMode,
		DeviceVolume:   st.DeviceVolume,
		Gain:           st.Gain,
		AutoGain:       st.AutoGain,
		Running:        st.Running,
	}
}

type radioScanRequest struct {
	Direction string `json:"direction"`
}

type radioDeviceVolumeRequest struct {
	Volume float64 `json:"volume"`
}

type radioEqualizerModeRequest struct {
	Mode string `json:"mode"`
}

type radioPresetRequest struct {
	Name string `json:"name"`
}

type radioPresetDto struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Band      string  `json:"band"`
	Frequency float64 `json:"frequency"`
}

type outputDeviceRequest struct {
	DeviceID string `json:"device_id"`
}

type historyRecordRequest struct {
	SourceID string `json:"source_id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
}

type configSectionUpdateRequest struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type searchItemDto struct {
	URI    string `json:"uri"`
	Type   string `json:"type"`
	Title  string `json:"title"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
}

func toSearchItemDto(it source.SearchItem) searchItemDto {
	return searchItemDto{URI: it.URI, Type: string(it.Type), Title: it.Title, Artist: it.Artist, Album: it.Album}
}

type searchResultsDto struct {
	Items []searchItemDto `json:"items"`
}

func toSearchResultsDto(r source.SearchResults) searchResultsDto {
	out := make([]searchItemDto, len(r.Items))
	for i, it := range r.Items {
		out[i] = toSearchItemDto(it)
	}
	return searchResultsDto{Items: out}
}

type categoryDto struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func toCategoryDto(c source.Category) categoryDto {
	return categoryDto{ID: c.ID, Name: c.Name}
}

type playlistDto struct {
	URI        string `json:"uri"`
	Name       string `json:"name"`
	Owner      string `json:"owner,omitempty"`
	TrackCount int    `json:"track_count"`
}

func toPlaylistDto(p source.Playlist) playlistDto {
	return playlistDto{URI: p.URI, Name: p.Name, Owner: p.Owner, TrackCount: p.TrackCount}
}

type playlistDetailsDto struct {
	playlistDto
	Tracks []searchItemDto `json:"tracks"`
}

func toPlaylistDetailsDto(d source.PlaylistDetails) playlistDetailsDto {
	tracks := make([]searchItemDto, len(d.Tracks))
	for i, t := range d.Tracks {
		tracks[i] = toSearchItemDto(t)
	}
	return playlistDetailsDto{playlistDto: toPlaylistDto(d.Playlist), Tracks: tracks}
}
