package player

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/auricle-audio/auricle/pkg/auricle"
)

func newTestResolver(t *testing.T, backend *fakeBackend, cfg ResolverConfig) *Resolver {
	t.Helper()
	return NewResolver(zap.NewNop(), backend, cfg)
}

func TestResolveUsesCache(t *testing.T) {
	backend := newFakeBackend()
	resolver := newTestResolver(t, backend, ResolverConfig{})
	item := auricle.Track{URI: "mnt/a.flac", Service: "local", Type: "song"}

	first := resolver.Resolve(context.Background(), item)
	second := resolver.Resolve(context.Background(), item)

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected single-track resolutions, got %d and %d", len(first), len(second))
	}
	explodes := 0
	for _, call := range backend.callLog() {
		if strings.HasPrefix(call, "explode:") {
			explodes++
		}
	}
	if explodes != 1 {
		t.Fatalf("expected one backend call, got %d", explodes)
	}
	if first[0].ID != second[0].ID {
		t.Fatal("cached resolution must keep entry identity")
	}
}

func TestResolveExpiredCacheRefetches(t *testing.T) {
	backend := newFakeBackend()
	resolver := newTestResolver(t, backend, ResolverConfig{CacheTTL: time.Nanosecond})
	item := auricle.Track{URI: "mnt/a.flac", Service: "local", Type: "song"}

	resolver.Resolve(context.Background(), item)
	time.Sleep(time.Millisecond)
	resolver.Resolve(context.Background(), item)

	explodes := 0
	for _, call := range backend.callLog() {
		if strings.HasPrefix(call, "explode:") {
			explodes++
		}
	}
	if explodes != 2 {
		t.Fatalf("expected refetch after expiry, got %d calls", explodes)
	}
}

func TestResolveFailureIsSoft(t *testing.T) {
	backend := newFakeBackend()
	backend.explode = func(service string, item auricle.Track) ([]auricle.Track, error) {
		return nil, errors.New("backend down")
	}
	resolver := newTestResolver(t, backend, ResolverConfig{})

	got := resolver.Resolve(context.Background(), auricle.Track{URI: "mnt/a.flac", Type: "song"})
	if got != nil {
		t.Fatalf("failure must resolve to nothing, got %v", got)
	}
}

func TestResolveCddaBypassesBackend(t *testing.T) {
	backend := newFakeBackend()
	resolver := newTestResolver(t, backend, ResolverConfig{})

	got := resolver.Resolve(context.Background(), auricle.Track{URI: "cdda://1", Service: "cd"})
	if len(got) != 1 {
		t.Fatalf("expected literal entry, got %d", len(got))
	}
	if got[0].AlbumArt != "/albumart" {
		t.Fatalf("expected default album art, got %q", got[0].AlbumArt)
	}
	if len(backend.callLog()) != 0 {
		t.Fatalf("cdda must not hit a backend, calls: %v", backend.callLog())
	}
}

func TestResolveInfersServiceFromURI(t *testing.T) {
	backend := newFakeBackend()
	resolver := newTestResolver(t, backend, ResolverConfig{DefaultService: "local"})

	resolver.Resolve(context.Background(), auricle.Track{URI: "spotify:track:123"})
	resolver.Resolve(context.Background(), auricle.Track{URI: "mnt/a.flac"})

	calls := backend.callLog()
	if calls[0] != "explode:spop:spotify:track:123" {
		t.Fatalf("spotify uri must route to spop, got %s", calls[0])
	}
	if calls[1] != "explode:local:mnt/a.flac" {
		t.Fatalf("bare uri must route to the default service, got %s", calls[1])
	}
}

func TestResolveAppliesAudioDefaults(t *testing.T) {
	backend := newFakeBackend()
	resolver := newTestResolver(t, backend, ResolverConfig{
		Defaults: AudioDefaults{Samplerate: "44.1 kHz", Bitdepth: "16 bit", Channels: 2},
	})

	got := resolver.Resolve(context.Background(), auricle.Track{URI: "mnt/a.flac", Type: "song"})
	if got[0].Samplerate != "44.1 kHz" || got[0].Bitdepth != "16 bit" || got[0].Channels != 2 {
		t.Fatalf("defaults not applied: %+v", got[0])
	}
}

func TestPrefetchWarmsCache(t *testing.T) {
	backend := newFakeBackend()
	resolver := newTestResolver(t, backend, ResolverConfig{PrefetchStagger: time.Millisecond})

	items := []auricle.Track{
		{URI: "mnt/a.flac", Service: "local", Type: "song"},
		{URI: "mnt/folder", Service: "local", Type: "folder"},
		{URI: "mnt/b.flac", Service: "local", Type: "song"},
	}
	resolver.Prefetch(items, 10)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := resolver.cached("mnt/a.flac"); ok {
			if _, ok := resolver.cached("mnt/b.flac"); ok {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, ok := resolver.cached("mnt/a.flac"); !ok {
		t.Fatal("prefetch did not warm the cache")
	}
	if _, ok := resolver.cached("mnt/folder"); ok {
		t.Fatal("non-song entries must not be prefetched")
	}
}

func TestCancelPrefetchDropsPendingBatch(t *testing.T) {
	backend := newFakeBackend()
	resolver := newTestResolver(t, backend, ResolverConfig{PrefetchStagger: 100 * time.Millisecond})

	resolver.Prefetch([]auricle.Track{{URI: "mnt/a.flac", Type: "song"}}, 10)
	resolver.CancelPrefetch()
	time.Sleep(250 * time.Millisecond)

	if len(backend.callLog()) != 0 {
		t.Fatalf("cancelled prefetch still resolved: %v", backend.callLog())
	}
}

func TestPrefetchHonorsLimit(t *testing.T) {
	backend := newFakeBackend()
	resolver := newTestResolver(t, backend, ResolverConfig{PrefetchStagger: time.Millisecond})

	items := []auricle.Track{
		{URI: "mnt/a.flac", Type: "song"},
		{URI: "mnt/b.flac", Type: "song"},
		{URI: "mnt/c.flac", Type: "song"},
	}
	resolver.Prefetch(items, 2)

	time.Sleep(200 * time.Millisecond)
	if _, ok := resolver.cached("mnt/c.flac"); ok {
		t.Fatal("prefetch exceeded its limit")
	}
}

func TestNormalizeURI(t *testing.T) {
	if got := NormalizeURI("music-library/rock/a.flac"); got != "mnt/rock/a.flac" {
		t.Fatalf("unexpected normalization: %s", got)
	}
	if got := NormalizeURI("mnt/rock/a.flac"); got != "mnt/rock/a.flac" {
		t.Fatalf("mount paths must pass through: %s", got)
	}
}
