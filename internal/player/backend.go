package player

import (
	"context"
	"errors"

	"github.com/auricle-audio/auricle/pkg/auricle"
)

// ErrUnavailable reports that a backend or one of its capabilities is
// missing. It is an expected outcome of dispatch, not a fault.
var ErrUnavailable = errors.New("backend unavailable")

// BackendCaller dispatches capability calls to the backend owning a
// service. Missing backends and capability gaps surface as
// ErrUnavailable; backend faults come back as ordinary errors and
// never panic through.
type BackendCaller interface {
	ExplodeURI(ctx context.Context, service string, item auricle.Track) ([]auricle.Track, error)
	ClearAddPlayTracks(ctx context.Context, service string, tracks []auricle.Track) error
	Play(ctx context.Context, service string) error
	Pause(ctx context.Context, service string) error
	Resume(ctx context.Context, service string) error
	Stop(ctx context.Context, service string) error
	Seek(ctx context.Context, service string, positionMS int64) error
}

// Broadcaster fans complete state and queue snapshots out to connected
// clients. Calls are fire-and-forget from the core's perspective.
type Broadcaster interface {
	PushState(state auricle.State)
	PushQueue(items []auricle.Track)
	PushToast(kind, title, message string)
}

// StatusSink receives backend-originated playback events. Backends
// report their native status asynchronously; the machine normalizes
// reports into the canonical state.
type StatusSink interface {
	PushStatus(service string, status auricle.BackendStatus)
	TrackEnded(service string)
}
