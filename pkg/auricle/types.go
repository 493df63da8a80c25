package auricle

// Status is the canonical playback status.
type Status string

// Playback statuses as they appear on the wire.
const (
	StatusPlay  Status = "play"
	StatusPause Status = "pause"
	StatusStop  Status = "stop"
)

// IsActive reports whether the status describes a live playback session.
func (s Status) IsActive() bool {
	return s == StatusPlay || s == StatusPause
}

// Track is a queue entry. Entries are created from client- or
// library-submitted items and overwritten in place when resolution
// completes; position is never stored on the entry itself.
type Track struct {
	ID          string `json:"id,omitempty"`
	URI         string `json:"uri"`
	Service     string `json:"service,omitempty"`
	Type        string `json:"type,omitempty"`
	Name        string `json:"name,omitempty"`
	Artist      string `json:"artist,omitempty"`
	Album       string `json:"album,omitempty"`
	TrackNumber int    `json:"tracknumber,omitempty"`
	Year        int    `json:"year,omitempty"`
	AlbumArt    string `json:"albumart,omitempty"`
	Duration    int    `json:"duration,omitempty"`
	OffsetMS    int64  `json:"offsetMs,omitempty"`
	Samplerate  string `json:"samplerate,omitempty"`
	Bitdepth    string `json:"bitdepth,omitempty"`
	Channels    int    `json:"channels,omitempty"`
	Bitrate     string `json:"bitrate,omitempty"`
}

// TrackBlock is a maximal run of contiguous queue entries sharing one
// backend service, handed to backends that accept multi-track batches.
type TrackBlock struct {
	Service    string   `json:"service"`
	URIs       []string `json:"uris"`
	StartIndex int      `json:"startindex"`
}

// State is the full canonical player snapshot broadcast to clients.
// Every change publishes a complete snapshot; partial updates are
// never emitted.
type State struct {
	Status           Status `json:"status"`
	Position         int    `json:"position"`
	Title            string `json:"title,omitempty"`
	Artist           string `json:"artist,omitempty"`
	Album            string `json:"album,omitempty"`
	AlbumArt         string `json:"albumart,omitempty"`
	URI              string `json:"uri,omitempty"`
	TrackType        string `json:"trackType,omitempty"`
	Service          string `json:"service,omitempty"`
	Seek             int64  `json:"seek"`
	Duration         int    `json:"duration"`
	Samplerate       string `json:"samplerate,omitempty"`
	Bitdepth         string `json:"bitdepth,omitempty"`
	Channels         int    `json:"channels,omitempty"`
	Bitrate          string `json:"bitrate,omitempty"`
	Volume           int    `json:"volume"`
	Mute             bool   `json:"mute"`
	Random           bool   `json:"random"`
	Repeat           bool   `json:"repeat"`
	RepeatSingle     bool   `json:"repeatSingle"`
	Consume          bool   `json:"consume"`
	Volatile         bool   `json:"volatile"`
	StopAfterCurrent bool   `json:"stopAfterCurrent"`
	Updated          int64  `json:"updated"`
}

// BackendStatus is a backend's native status report. Missing fields
// pass through as nil and leave the canonical state untouched.
type BackendStatus struct {
	Status     *Status `json:"status,omitempty"`
	Seek       *int64  `json:"seek,omitempty"`
	Duration   *int    `json:"duration,omitempty"`
	Title      *string `json:"title,omitempty"`
	Artist     *string `json:"artist,omitempty"`
	Album      *string `json:"album,omitempty"`
	AlbumArt   *string `json:"albumart,omitempty"`
	URI        *string `json:"uri,omitempty"`
	TrackType  *string `json:"trackType,omitempty"`
	Samplerate *string `json:"samplerate,omitempty"`
	Bitdepth   *string `json:"bitdepth,omitempty"`
	Channels   *int    `json:"channels,omitempty"`
	Bitrate    *string `json:"bitrate,omitempty"`
	Volume     *int    `json:"volume,omitempty"`
	Mute       *bool   `json:"mute,omitempty"`
}

// Toast is a transient user-visible notification.
type Toast struct {
	Kind    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
	TS      int64  `json:"ts"`
}
