package rendererlocal

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dhowden/tag"
	"go.uber.org/zap"

	"github.com/auricle-audio/auricle/internal/player"
	"github.com/auricle-audio/auricle/pkg/auricle"
)

// ServiceName is the backend service identifier.
const ServiceName = "local"

// Driver is the playback pipeline behind the local backend. The
// concrete implementation is selected by build tag.
type Driver interface {
	Play(url string, positionMS int64) error
	Pause() error
	Resume() error
	Stop() error
	Seek(positionMS int64) error
	SetVolume(volume float64) error
	SetMute(mute bool) error
	Position() (int64, int64, bool)
	SetEOSHandler(fn func())
}

// Config configures the local renderer backend.
type Config struct {
	MusicRoot    string
	PollInterval time.Duration
}

// Backend plays files from the local music library. It holds the
// track run handed over by the player core but only ever plays the
// head of it; advancement decisions stay with the core.
type Backend struct {
	log    *zap.Logger
	driver Driver
	status player.StatusSink
	config Config

	mu      sync.Mutex
	tracks  []auricle.Track
	playing bool
}

var audioExtensions = map[string]bool{
	".flac": true,
	".mp3":  true,
	".ogg":  true,
	".opus": true,
	".m4a":  true,
	".wav":  true,
	".aiff": true,
}

// NewBackend creates the local backend.
func NewBackend(log *zap.Logger, driver Driver, status player.StatusSink, cfg Config) *Backend {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	backend := &Backend{log: log, driver: driver, status: status, config: cfg}
	driver.SetEOSHandler(backend.onEOS)
	return backend
}

// Run publishes position updates while playing, until ctx ends.
func (b *Backend) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = b.driver.Stop()
			return nil
		case <-ticker.C:
			b.publishPosition()
		}
	}
}

// ExplodeURI expands a library URI. Directories walk into their audio
// files, sorted by path; single files resolve to one tagged entry.
func (b *Backend) ExplodeURI(ctx context.Context, item auricle.Track) ([]auricle.Track, error) {
	path := b.libraryPath(item.URI)
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		track, err := b.trackFromFile(item.URI, path)
		if err != nil {
			return nil, err
		}
		return []auricle.Track{track}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && audioExtensions[strings.ToLower(filepath.Ext(p))] {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	tracks := make([]auricle.Track, 0, len(files))
	for _, file := range files {
		relative, err := filepath.Rel(b.config.MusicRoot, file)
		if err != nil {
			relative = file
		}
		track, err := b.trackFromFile(filepath.Join("mnt", relative), file)
		if err != nil {
			b.log.Warn("skipping unreadable file", zap.String("path", file), zap.Error(err))
			continue
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

// ClearAddPlayTracks replaces the native track run and starts the
// head entry.
func (b *Backend) ClearAddPlayTracks(ctx context.Context, tracks []auricle.Track) error {
	if len(tracks) == 0 {
		return errors.New("no tracks")
	}

	b.mu.Lock()
	b.tracks = tracks
	b.mu.Unlock()

	return b.startTrack(tracks[0])
}

// Play restarts the head of the current run.
func (b *Backend) Play(ctx context.Context) error {
	b.mu.Lock()
	if len(b.tracks) == 0 {
		b.mu.Unlock()
		return errors.New("nothing loaded")
	}
	head := b.tracks[0]
	b.mu.Unlock()
	return b.startTrack(head)
}

// Pause pauses the pipeline.
func (b *Backend) Pause(ctx context.Context) error {
	if err := b.driver.Pause(); err != nil {
		return err
	}
	b.setPlaying(false)
	b.reportStatus(auricle.StatusPause, nil)
	return nil
}

// Resume resumes a paused pipeline.
func (b *Backend) Resume(ctx context.Context) error {
	if err := b.driver.Resume(); err != nil {
		return err
	}
	b.setPlaying(true)
	b.reportStatus(auricle.StatusPlay, nil)
	return nil
}

// Stop tears the pipeline down.
func (b *Backend) Stop(ctx context.Context) error {
	if err := b.driver.Stop(); err != nil {
		return err
	}
	b.setPlaying(false)
	b.reportStatus(auricle.StatusStop, nil)
	return nil
}

// Seek jumps within the current track.
func (b *Backend) Seek(ctx context.Context, positionMS int64) error {
	if err := b.driver.Seek(positionMS); err != nil {
		return err
	}
	b.reportStatus(auricle.StatusPlay, &positionMS)
	return nil
}

func (b *Backend) startTrack(track auricle.Track) error {
	url := track.URI
	if !strings.Contains(url, "://") {
		url = "file://" + b.libraryPath(track.URI)
	}

	b.log.Info("starting track", zap.String("uri", track.URI))
	if err := b.driver.Play(url, track.OffsetMS); err != nil {
		return err
	}
	b.setPlaying(true)
	offset := track.OffsetMS
	b.reportStatus(auricle.StatusPlay, &offset)
	return nil
}

func (b *Backend) onEOS() {
	b.setPlaying(false)
	if b.status != nil {
		b.status.TrackEnded(ServiceName)
	}
}

func (b *Backend) setPlaying(playing bool) {
	b.mu.Lock()
	b.playing = playing
	b.mu.Unlock()
}

func (b *Backend) publishPosition() {
	b.mu.Lock()
	playing := b.playing
	b.mu.Unlock()
	if !playing || b.status == nil {
		return
	}

	posMS, durMS, ok := b.driver.Position()
	if !ok {
		return
	}
	status := auricle.StatusPlay
	report := auricle.BackendStatus{Status: &status, Seek: &posMS}
	if durMS > 0 {
		duration := int(durMS / 1000)
		report.Duration = &duration
	}
	b.status.PushStatus(ServiceName, report)
}

func (b *Backend) reportStatus(status auricle.Status, seekMS *int64) {
	if b.status == nil {
		return
	}
	b.status.PushStatus(ServiceName, auricle.BackendStatus{Status: &status, Seek: seekMS})
}

// libraryPath maps a queue URI onto the filesystem.
func (b *Backend) libraryPath(uri string) string {
	normalized := strings.Replace(uri, "music-library", "mnt", 1)
	if rest, ok := strings.CutPrefix(normalized, "mnt/"); ok && b.config.MusicRoot != "" {
		return filepath.Join(b.config.MusicRoot, rest)
	}
	return normalized
}

func (b *Backend) trackFromFile(uri, path string) (auricle.Track, error) {
	track := auricle.Track{
		URI:     uri,
		Service: ServiceName,
		Type:    "song",
		Name:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
	}

	file, err := os.Open(path)
	if err != nil {
		return auricle.Track{}, err
	}
	defer file.Close()

	meta, err := tag.ReadFrom(file)
	if err != nil {
		// untagged files still play, with the filename as title
		return track, nil
	}

	if meta.Title() != "" {
		track.Name = meta.Title()
	}
	track.Artist = meta.Artist()
	track.Album = meta.Album()
	track.Year = meta.Year()
	if number, _ := meta.Track(); number > 0 {
		track.TrackNumber = number
	}
	return track, nil
}
