package registry

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/auricle-audio/auricle/internal/player"
	"github.com/auricle-audio/auricle/pkg/auricle"
)

// playOnlyBackend supports play and stop but nothing else.
type playOnlyBackend struct {
	played  int
	stopped int
	fail    error
}

func (b *playOnlyBackend) Play(ctx context.Context) error {
	b.played++
	return b.fail
}

func (b *playOnlyBackend) Stop(ctx context.Context) error {
	b.stopped++
	return b.fail
}

type panickyBackend struct{}

func (b *panickyBackend) Play(ctx context.Context) error {
	panic("driver went away")
}

func newTestDispatcher(t *testing.T) (*Registry, *Dispatcher) {
	t.Helper()
	reg := New()
	return reg, NewDispatcher(zap.NewNop(), reg)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	reg := New()
	if err := reg.Register(CategoryMusicService, "webradio", &playOnlyBackend{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(CategoryMusicService, "webradio", &playOnlyBackend{}); err == nil {
		t.Fatal("duplicate registration must fail")
	}
}

func TestLookupPrefersMusicServices(t *testing.T) {
	reg := New()
	music := &playOnlyBackend{}
	iface := &playOnlyBackend{}
	if err := reg.Register(CategoryAudioInterface, "dual", iface); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(CategoryMusicService, "dual", music); err != nil {
		t.Fatal(err)
	}

	got, ok := reg.Lookup("dual")
	if !ok || got != any(music) {
		t.Fatal("music service must shadow the audio interface")
	}
}

func TestDispatchMissingBackend(t *testing.T) {
	_, dispatcher := newTestDispatcher(t)
	err := dispatcher.Play(context.Background(), "ghost")
	if !errors.Is(err, player.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestDispatchMissingCapability(t *testing.T) {
	reg, dispatcher := newTestDispatcher(t)
	if err := reg.Register(CategoryMusicService, "webradio", &playOnlyBackend{}); err != nil {
		t.Fatal(err)
	}

	err := dispatcher.Pause(context.Background(), "webradio")
	if !errors.Is(err, player.ErrUnavailable) {
		t.Fatalf("capability gap must map to ErrUnavailable, got %v", err)
	}
}

func TestDispatchRoutesToBackend(t *testing.T) {
	reg, dispatcher := newTestDispatcher(t)
	backend := &playOnlyBackend{}
	if err := reg.Register(CategoryMusicService, "webradio", backend); err != nil {
		t.Fatal(err)
	}

	if err := dispatcher.Play(context.Background(), "webradio"); err != nil {
		t.Fatalf("play: %v", err)
	}
	if err := dispatcher.Stop(context.Background(), "webradio"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if backend.played != 1 || backend.stopped != 1 {
		t.Fatalf("calls not routed: %+v", backend)
	}
}

func TestDispatchBackendErrorIsNotUnavailable(t *testing.T) {
	reg, dispatcher := newTestDispatcher(t)
	backend := &playOnlyBackend{fail: errors.New("pipeline stall")}
	if err := reg.Register(CategoryMusicService, "local", backend); err != nil {
		t.Fatal(err)
	}

	err := dispatcher.Play(context.Background(), "local")
	if err == nil || errors.Is(err, player.ErrUnavailable) {
		t.Fatalf("backend fault must pass through as-is, got %v", err)
	}
}

func TestDispatchContainsPanics(t *testing.T) {
	reg, dispatcher := newTestDispatcher(t)
	if err := reg.Register(CategoryMusicService, "flaky", &panickyBackend{}); err != nil {
		t.Fatal(err)
	}

	err := dispatcher.Play(context.Background(), "flaky")
	if err == nil {
		t.Fatal("panic must surface as an error")
	}
	if errors.Is(err, player.ErrUnavailable) {
		t.Fatal("a panic is a fault, not a capability gap")
	}
}

func TestExplodeURIDispatch(t *testing.T) {
	reg, dispatcher := newTestDispatcher(t)
	backend := &explodingBackend{}
	if err := reg.Register(CategoryMusicService, "local", backend); err != nil {
		t.Fatal(err)
	}

	tracks, err := dispatcher.ExplodeURI(context.Background(), "local", auricle.Track{URI: "mnt/a.flac"})
	if err != nil {
		t.Fatalf("explode: %v", err)
	}
	if len(tracks) != 1 || tracks[0].URI != "mnt/a.flac" {
		t.Fatalf("unexpected tracks: %v", tracks)
	}
}

type explodingBackend struct{}

func (b *explodingBackend) ExplodeURI(ctx context.Context, item auricle.Track) ([]auricle.Track, error) {
	return []auricle.Track{item}, nil
}

func TestServicesSorted(t *testing.T) {
	reg := New()
	_ = reg.Register(CategoryMusicService, "webradio", &playOnlyBackend{})
	_ = reg.Register(CategoryAudioInterface, "local", &playOnlyBackend{})

	services := reg.Services()
	if len(services) != 2 || services[0] != "local" || services[1] != "webradio" {
		t.Fatalf("unexpected services: %v", services)
	}
}
