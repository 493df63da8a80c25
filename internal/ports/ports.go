package ports

import (
	"context"

	"github.com/auricle-audio/auricle/pkg/auricle"
)

// Broker publishes commands and reads retained player state.
type Broker interface {
	ReplyTopic() string
	PublishCommand(ctx context.Context, cmd auricle.CommandEnvelope) (auricle.ReplyEnvelope, error)
	GetState(ctx context.Context) (auricle.State, error)
	GetQueue(ctx context.Context) ([]auricle.Track, error)
	WatchPlayer(ctx context.Context) (<-chan auricle.State, <-chan auricle.Toast, <-chan error)
}

// IDGen returns unique correlation IDs.
type IDGen interface {
	NewID() string
}
