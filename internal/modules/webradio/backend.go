package webradio

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/auricle-audio/auricle/internal/player"
	"github.com/auricle-audio/auricle/pkg/auricle"
)

// ServiceName is the backend service identifier.
const ServiceName = "webradio"

// StreamDriver starts and stops a live stream. Pause and seek are
// meaningless for radio, so the backend deliberately exposes neither.
type StreamDriver interface {
	Play(url string, offsetMS int64) error
	Stop() error
}

// Config configures the webradio backend.
type Config struct {
	UserAgent    string
	FetchTimeout time.Duration
}

// Backend plays internet radio streams. Station directory URIs
// pointing at RSS/Atom feeds explode into one entry per feed item;
// direct stream URLs resolve to themselves.
type Backend struct {
	log    *zap.Logger
	driver StreamDriver
	status player.StatusSink
	http   *http.Client
	config Config

	mu      sync.Mutex
	current string
}

// NewBackend creates the webradio backend.
func NewBackend(log *zap.Logger, driver StreamDriver, status player.StatusSink, cfg Config) *Backend {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "auricle-webradio"
	}
	return &Backend{
		log:    log,
		driver: driver,
		status: status,
		http:   &http.Client{Timeout: cfg.FetchTimeout},
		config: cfg,
	}
}

// ExplodeURI expands a station URI. Feed URLs become one entry per
// item; anything else is treated as a direct stream.
func (b *Backend) ExplodeURI(ctx context.Context, item auricle.Track) ([]auricle.Track, error) {
	if item.URI == "" {
		return nil, errors.New("uri required")
	}
	if isFeedURI(item.URI) {
		return b.explodeFeed(ctx, item)
	}

	track := item
	track.Service = ServiceName
	track.Type = "webradio"
	if track.Name == "" {
		track.Name = item.URI
	}
	return []auricle.Track{track}, nil
}

// ClearAddPlayTracks starts streaming the first track. Radio has no
// native queue, the rest of the run stays with the caller.
func (b *Backend) ClearAddPlayTracks(ctx context.Context, tracks []auricle.Track) error {
	if len(tracks) == 0 {
		return errors.New("no tracks")
	}
	return b.startStream(tracks[0])
}

// Play restarts the last tuned stream.
func (b *Backend) Play(ctx context.Context) error {
	b.mu.Lock()
	url := b.current
	b.mu.Unlock()
	if url == "" {
		return errors.New("no station tuned")
	}
	return b.startStream(auricle.Track{URI: url})
}

// Stop stops the stream.
func (b *Backend) Stop(ctx context.Context) error {
	if err := b.driver.Stop(); err != nil {
		return err
	}
	b.reportStatus(auricle.StatusStop)
	return nil
}

func (b *Backend) startStream(track auricle.Track) error {
	b.mu.Lock()
	b.current = track.URI
	b.mu.Unlock()

	b.log.Info("tuning stream", zap.String("url", track.URI))
	if err := b.driver.Play(track.URI, 0); err != nil {
		return err
	}
	b.reportStatus(auricle.StatusPlay)
	return nil
}

func (b *Backend) reportStatus(status auricle.Status) {
	if b.status == nil {
		return
	}
	trackType := "webradio"
	b.status.PushStatus(ServiceName, auricle.BackendStatus{
		Status:    &status,
		TrackType: &trackType,
	})
}

func (b *Backend) explodeFeed(ctx context.Context, item auricle.Track) ([]auricle.Track, error) {
	body, err := b.fetch(ctx, item.URI)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return nil, err
	}

	station := strings.TrimSpace(feed.Title)
	var image string
	if feed.Image != nil {
		image = feed.Image.URL
	}

	tracks := make([]auricle.Track, 0, len(feed.Items))
	for _, entry := range feed.Items {
		url := pickEnclosure(entry)
		if url == "" {
			continue
		}
		name := strings.TrimSpace(entry.Title)
		if name == "" {
			name = url
		}
		tracks = append(tracks, auricle.Track{
			URI:      url,
			Service:  ServiceName,
			Type:     "webradio",
			Name:     name,
			Artist:   station,
			AlbumArt: image,
		})
	}
	if len(tracks) == 0 {
		return nil, errors.New("feed has no playable entries")
	}
	return tracks, nil
}

func (b *Backend) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", b.config.UserAgent)

	resp, err := b.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.New("feed fetch failed: " + resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func pickEnclosure(item *gofeed.Item) string {
	if item == nil {
		return ""
	}
	for _, enclosure := range item.Enclosures {
		if enclosure == nil || enclosure.URL == "" {
			continue
		}
		if enclosure.Type == "" || strings.HasPrefix(enclosure.Type, "audio/") {
			return enclosure.URL
		}
	}
	return item.Link
}

func isFeedURI(uri string) bool {
	lower := strings.ToLower(uri)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return false
	}
	return strings.HasSuffix(lower, ".xml") ||
		strings.HasSuffix(lower, ".rss") ||
		strings.Contains(lower, "/feed")
}
