package source

// MetadataKey names a standard metadata field (spec §3).
type MetadataKey string

const (
	KeyTitle                 MetadataKey = "Title"
	KeyArtist                MetadataKey = "Artist"
	KeyAlbum                 MetadataKey = "Album"
	KeyAlbumArtURL           MetadataKey = "AlbumArtUrl"
	KeyDuration              MetadataKey = "Duration"
	KeyTrackNumber           MetadataKey = "TrackNumber"
	KeyGenre                 MetadataKey = "Genre"
	KeyYear                  MetadataKey = "Year"
	KeySource                MetadataKey = "Source"
	KeyDevice                MetadataKey = "Device"
	KeyIdentificationConf    MetadataKey = "IdentificationConfidence"
	KeyIdentifiedAt          MetadataKey = "IdentifiedAt"
	KeyMetadataSource        MetadataKey = "MetadataSource"
)

// DefaultAlbumArtURL is substituted when no art is known (spec §3).
const DefaultAlbumArtURL = "/images/default-album-art.png"

// Metadata is a key->typed-value map. Title always has a default
// substitution so KeyTitle is never absent after Defaulted() (spec §3
// invariant "metadata[Title] != null always").
type Metadata map[MetadataKey]any

// Clone returns a shallow copy.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Defaulted returns a copy of m with standard defaults substituted for
// any absent Title/Artist/Album/AlbumArtUrl keys (spec §3 and Design
// Notes: "default-metadata substitution ... enforced at the
// serialization boundary, not within the source").
func (m Metadata) Defaulted() Metadata {
	out := m.Clone()
	if out == nil {
		out = Metadata{}
	}
	setDefault(out, KeyTitle, "No Track")
	setDefault(out, KeyArtist, "--")
	setDefault(out, KeyAlbum, "--")
	setDefault(out, KeyAlbumArtURL, DefaultAlbumArtURL)
	return out
}

func setDefault(m Metadata, key MetadataKey, def string) {
	if _, ok := m[key]; !ok {
		m[key] = def
	}
}

func (m Metadata) String(key MetadataKey) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
