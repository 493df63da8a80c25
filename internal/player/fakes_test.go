package player

import (
	"context"
	"fmt"
	"sync"

	"github.com/auricle-audio/auricle/pkg/auricle"
)

// fakeBackend records dispatch calls and lets tests inject explode
// results and capability gaps per method.
type fakeBackend struct {
	mu      sync.Mutex
	calls   []string
	batches [][]auricle.Track
	explode func(service string, item auricle.Track) ([]auricle.Track, error)
	missing map[string]bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		missing: map[string]bool{},
		explode: func(service string, item auricle.Track) ([]auricle.Track, error) {
			track := item
			if track.Type == "" {
				track.Type = "song"
			}
			return []auricle.Track{track}, nil
		},
	}
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := make([]string, len(f.calls))
	copy(calls, f.calls)
	return calls
}

func (f *fakeBackend) lastBatch() []auricle.Track {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		return nil
	}
	return f.batches[len(f.batches)-1]
}

func (f *fakeBackend) gap(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[method] {
		return ErrUnavailable
	}
	return nil
}

func (f *fakeBackend) ExplodeURI(ctx context.Context, service string, item auricle.Track) ([]auricle.Track, error) {
	f.record("explode:" + service + ":" + item.URI)
	f.mu.Lock()
	explode := f.explode
	f.mu.Unlock()
	return explode(service, item)
}

func (f *fakeBackend) ClearAddPlayTracks(ctx context.Context, service string, tracks []auricle.Track) error {
	f.record(fmt.Sprintf("clearAddPlay:%s:%d", service, len(tracks)))
	f.mu.Lock()
	batch := make([]auricle.Track, len(tracks))
	copy(batch, tracks)
	f.batches = append(f.batches, batch)
	f.mu.Unlock()
	return f.gap("clearAddPlay")
}

func (f *fakeBackend) Play(ctx context.Context, service string) error {
	f.record("play:" + service)
	return f.gap("play")
}

func (f *fakeBackend) Pause(ctx context.Context, service string) error {
	f.record("pause:" + service)
	return f.gap("pause")
}

func (f *fakeBackend) Resume(ctx context.Context, service string) error {
	f.record("resume:" + service)
	return f.gap("resume")
}

func (f *fakeBackend) Stop(ctx context.Context, service string) error {
	f.record("stop:" + service)
	return f.gap("stop")
}

func (f *fakeBackend) Seek(ctx context.Context, service string, positionMS int64) error {
	f.record(fmt.Sprintf("seek:%s:%d", service, positionMS))
	return f.gap("seek")
}

// fakeBroadcaster captures fan-out snapshots.
type fakeBroadcaster struct {
	mu     sync.Mutex
	states []auricle.State
	queues [][]auricle.Track
	toasts []auricle.Toast
}

func (f *fakeBroadcaster) PushState(state auricle.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, state)
}

func (f *fakeBroadcaster) PushQueue(items []auricle.Track) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queues = append(f.queues, items)
}

func (f *fakeBroadcaster) PushToast(kind, title, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toasts = append(f.toasts, auricle.Toast{Kind: kind, Title: title, Message: message})
}

func (f *fakeBroadcaster) lastState() (auricle.State, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.states) == 0 {
		return auricle.State{}, false
	}
	return f.states[len(f.states)-1], true
}
