package player

import (
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/auricle-audio/auricle/pkg/auricle"
)

// AudioDefaults fills resolver gaps in a track's audio profile.
type AudioDefaults struct {
	Samplerate string
	Bitdepth   string
	Channels   int
}

// NormalizeURI maps library aliases onto their mount path so the same
// track compares equal regardless of how it was browsed.
func NormalizeURI(uri string) string {
	return strings.Replace(uri, "music-library", "mnt", 1)
}

// sameTrackList compares two track runs by normalized URI, in order.
func sameTrackList(a, b []auricle.Track) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if NormalizeURI(a[i].URI) != NormalizeURI(b[i].URI) {
			return false
		}
	}
	return true
}

// stampTracks assigns entry identity and applies audio-profile
// defaults to freshly resolved tracks.
func stampTracks(tracks []auricle.Track, defaults AudioDefaults) []auricle.Track {
	return lo.Map(tracks, func(track auricle.Track, _ int) auricle.Track {
		if track.ID == "" {
			track.ID = uuid.NewString()
		}
		if track.Samplerate == "" {
			track.Samplerate = defaults.Samplerate
		}
		if track.Bitdepth == "" {
			track.Bitdepth = defaults.Bitdepth
		}
		if track.Channels == 0 {
			track.Channels = defaults.Channels
		}
		return track
	})
}
