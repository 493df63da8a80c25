package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/auricle-audio/auricle/internal/player"
	"github.com/auricle-audio/auricle/pkg/auricle"
)

// Backend categories, looked up in order by the dispatcher.
const (
	CategoryMusicService   = "music_service"
	CategoryAudioInterface = "audio_interface"
)

// Capability interfaces. A backend implements whichever subset it
// supports; the dispatcher discovers support by type assertion at
// call time.
type (
	// URIExploder expands an abstract URI into playable tracks.
	URIExploder interface {
		ExplodeURI(ctx context.Context, item auricle.Track) ([]auricle.Track, error)
	}

	// BatchLoader replaces the backend's native queue with a track
	// run and starts playback on the first entry.
	BatchLoader interface {
		ClearAddPlayTracks(ctx context.Context, tracks []auricle.Track) error
	}

	// Player starts playback of whatever the backend currently holds.
	Player interface {
		Play(ctx context.Context) error
	}

	Pauser interface {
		Pause(ctx context.Context) error
	}

	Resumer interface {
		Resume(ctx context.Context) error
	}

	Stopper interface {
		Stop(ctx context.Context) error
	}

	Seeker interface {
		Seek(ctx context.Context, positionMS int64) error
	}
)

// Registry holds playback backends by category and service name.
// Registration normally happens once at startup, before dispatch
// begins, but the lock keeps late registration safe.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]map[string]any
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{backends: map[string]map[string]any{}}
}

// Register adds a backend under a category and service name.
func (r *Registry) Register(category, name string, backend any) error {
	if category == "" || name == "" || backend == nil {
		return fmt.Errorf("invalid registration %q/%q", category, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.backends[category][name]; ok {
		return fmt.Errorf("backend %s/%s already registered", category, name)
	}
	if r.backends[category] == nil {
		r.backends[category] = map[string]any{}
	}
	r.backends[category][name] = backend
	return nil
}

// Lookup finds a backend by service name, trying music services
// before audio interfaces.
func (r *Registry) Lookup(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, category := range []string{CategoryMusicService, CategoryAudioInterface} {
		if backend, ok := r.backends[category][name]; ok {
			return backend, true
		}
	}
	return nil, false
}

// Services returns the registered service names, sorted.
func (r *Registry) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for _, category := range r.backends {
		for name := range category {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Dispatcher routes capability calls to registered backends. A
// missing backend or capability yields player.ErrUnavailable from the
// caller's side; a panicking backend is contained and surfaces as an
// ordinary error.
type Dispatcher struct {
	log      *zap.Logger
	registry *Registry
}

// NewDispatcher creates a dispatcher over a registry.
func NewDispatcher(log *zap.Logger, registry *Registry) *Dispatcher {
	return &Dispatcher{log: log, registry: registry}
}

func capability[T any](r *Registry, service string) (T, error) {
	var zero T
	backend, ok := r.Lookup(service)
	if !ok {
		return zero, fmt.Errorf("no backend for service %s: %w", service, player.ErrUnavailable)
	}
	typed, ok := backend.(T)
	if !ok {
		return zero, fmt.Errorf("service %s lacks %T: %w", service, zero, player.ErrUnavailable)
	}
	return typed, nil
}

// call runs one capability invocation with panic containment. A
// misbehaving backend must never take the player core down with it.
func (d *Dispatcher) call(service, operation string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("backend panicked",
				zap.String("service", service),
				zap.String("operation", operation),
				zap.Any("panic", r))
			err = fmt.Errorf("backend %s panicked in %s: %v", service, operation, r)
		}
	}()
	return fn()
}

func (d *Dispatcher) ExplodeURI(ctx context.Context, service string, item auricle.Track) ([]auricle.Track, error) {
	backend, err := capability[URIExploder](d.registry, service)
	if err != nil {
		return nil, err
	}
	var tracks []auricle.Track
	err = d.call(service, "explodeUri", func() error {
		var callErr error
		tracks, callErr = backend.ExplodeURI(ctx, item)
		return callErr
	})
	return tracks, err
}

func (d *Dispatcher) ClearAddPlayTracks(ctx context.Context, service string, tracks []auricle.Track) error {
	backend, err := capability[BatchLoader](d.registry, service)
	if err != nil {
		return err
	}
	return d.call(service, "clearAddPlayTracks", func() error {
		return backend.ClearAddPlayTracks(ctx, tracks)
	})
}

func (d *Dispatcher) Play(ctx context.Context, service string) error {
	backend, err := capability[Player](d.registry, service)
	if err != nil {
		return err
	}
	return d.call(service, "play", func() error { return backend.Play(ctx) })
}

func (d *Dispatcher) Pause(ctx context.Context, service string) error {
	backend, err := capability[Pauser](d.registry, service)
	if err != nil {
		return err
	}
	return d.call(service, "pause", func() error { return backend.Pause(ctx) })
}

func (d *Dispatcher) Resume(ctx context.Context, service string) error {
	backend, err := capability[Resumer](d.registry, service)
	if err != nil {
		return err
	}
	return d.call(service, "resume", func() error { return backend.Resume(ctx) })
}

func (d *Dispatcher) Stop(ctx context.Context, service string) error {
	backend, err := capability[Stopper](d.registry, service)
	if err != nil {
		return err
	}
	return d.call(service, "stop", func() error { return backend.Stop(ctx) })
}

func (d *Dispatcher) Seek(ctx context.Context, service string, positionMS int64) error {
	backend, err := capability[Seeker](d.registry, service)
	if err != nil {
		return err
	}
	return d.call(service, "seek", func() error { return backend.Seek(ctx, positionMS) })
}
