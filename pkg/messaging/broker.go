package messaging

import (
	"context"
)

// Broker publishes messages to a named stream. Publish returns once the
// broker has accepted the message; consumers are never awaited.
type Broker interface {
	Publish(ctx context.Context, stream string, message interface{}) error
	Close() error
}
