package player

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/auricle-audio/auricle/pkg/auricle"
)

// ResolverConfig tunes the track resolver.
type ResolverConfig struct {
	DefaultService  string
	CacheTTL        time.Duration
	CallTimeout     time.Duration
	PrefetchStagger time.Duration
	Defaults        AudioDefaults
}

// Resolver turns abstract queue entries into playable descriptors by
// delegating to the owning backend's explode operation. Resolved
// entries are cached with a bounded lifetime, and upcoming entries can
// be prefetched speculatively in the background.
type Resolver struct {
	log      *zap.Logger
	backends BackendCaller
	config   ResolverConfig

	mu          sync.Mutex
	cache       map[string]cacheEntry
	prefetchGen int64
	timers      []*time.Timer
}

type cacheEntry struct {
	tracks  []auricle.Track
	expires time.Time
}

// NewResolver creates a resolver with defaults filled in.
func NewResolver(log *zap.Logger, backends BackendCaller, cfg ResolverConfig) *Resolver {
	if cfg.DefaultService == "" {
		cfg.DefaultService = "local"
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 5 * time.Second
	}
	if cfg.PrefetchStagger <= 0 {
		cfg.PrefetchStagger = 50 * time.Millisecond
	}
	return &Resolver{
		log:      log,
		backends: backends,
		config:   cfg,
		cache:    map[string]cacheEntry{},
	}
}

// Resolve explodes one queue entry into zero or more playable tracks.
// Failures are soft: a nil result means the entry contributes nothing
// and the caller carries on.
func (r *Resolver) Resolve(ctx context.Context, item auricle.Track) []auricle.Track {
	if item.URI == "" {
		return nil
	}

	// Direct hardware URIs resolve from the literal entry.
	if strings.HasPrefix(item.URI, "cdda:") {
		if item.AlbumArt == "" {
			item.AlbumArt = "/albumart"
		}
		return stampTracks([]auricle.Track{item}, r.config.Defaults)
	}

	if strings.HasSuffix(strings.ToLower(item.URI), ".cue") {
		tracks, err := ExplodeCueFile(item.URI)
		if err != nil {
			r.log.Warn("cannot explode cue sheet", zap.String("uri", item.URI), zap.Error(err))
			return nil
		}
		return stampTracks(tracks, r.config.Defaults)
	}

	service := r.serviceFor(item)

	if cached, ok := r.cached(item.URI); ok {
		r.log.Debug("using cached resolution", zap.String("uri", item.URI))
		return cached
	}

	callCtx, cancel := context.WithTimeout(ctx, r.config.CallTimeout)
	defer cancel()

	tracks, err := r.backends.ExplodeURI(callCtx, service, item)
	if err != nil {
		r.log.Warn("cannot explode uri",
			zap.String("uri", item.URI),
			zap.String("service", service),
			zap.Error(err))
		return nil
	}
	if len(tracks) == 0 {
		return nil
	}

	tracks = stampTracks(tracks, r.config.Defaults)
	r.store(item.URI, tracks)
	return tracks
}

// Prefetch schedules staggered background resolutions for up to limit
// upcoming song entries so the cache is warm by the time playback
// reaches them. A new batch supersedes any pending one wholesale.
func (r *Resolver) Prefetch(items []auricle.Track, limit int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelLocked()
	gen := r.prefetchGen

	delay := r.config.PrefetchStagger
	scheduled := 0
	for _, item := range items {
		if scheduled >= limit {
			break
		}
		if item.URI == "" || item.Type != "song" {
			continue
		}
		if _, ok := r.cache[item.URI]; ok {
			continue
		}

		track := item
		r.timers = append(r.timers, time.AfterFunc(delay, func() {
			r.prefetchOne(gen, track)
		}))
		delay += r.config.PrefetchStagger
		scheduled++
	}
	if scheduled > 0 {
		r.log.Debug("prefetch scheduled", zap.Int("items", scheduled))
	}
}

// CancelPrefetch drops the whole pending prefetch batch.
func (r *Resolver) CancelPrefetch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelLocked()
}

func (r *Resolver) cancelLocked() {
	for _, timer := range r.timers {
		timer.Stop()
	}
	r.timers = nil
	r.prefetchGen++
}

func (r *Resolver) prefetchOne(gen int64, item auricle.Track) {
	r.mu.Lock()
	stale := gen != r.prefetchGen
	r.mu.Unlock()
	if stale {
		return
	}
	r.log.Debug("preloading", zap.String("uri", item.URI))
	r.Resolve(context.Background(), item)
}

func (r *Resolver) serviceFor(item auricle.Track) string {
	if item.Service != "" {
		return item.Service
	}
	if strings.HasPrefix(item.URI, "spotify:") {
		return "spop"
	}
	return r.config.DefaultService
}

func (r *Resolver) cached(uri string) ([]auricle.Track, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.cache[uri]
	if !ok || time.Now().After(entry.expires) {
		delete(r.cache, uri)
		return nil, false
	}
	tracks := make([]auricle.Track, len(entry.tracks))
	copy(tracks, entry.tracks)
	return tracks, true
}

func (r *Resolver) store(uri string, tracks []auricle.Track) {
	stored := make([]auricle.Track, len(tracks))
	copy(stored, tracks)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[uri] = cacheEntry{tracks: stored, expires: time.Now().Add(r.config.CacheTTL)}
}
