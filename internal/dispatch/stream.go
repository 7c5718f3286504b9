package dispatch

import (
	"context"

	"github.com/umedi/intake-api/pkg/messaging"
)

// StreamDispatcher appends payloads to a broker stream for the processor to consume.
type StreamDispatcher struct {
	broker messaging.Broker
	stream string
}

func NewStreamDispatcher(broker messaging.Broker, stream string) *StreamDispatcher {
	return &StreamDispatcher{broker: broker, stream: stream}
}

func (d *StreamDispatcher) Dispatch(ctx context.Context, payload *Payload) error {
	return d.broker.Publish(ctx, d.stream, payload)
}

func (d *StreamDispatcher) Close() error {
	return d.broker.Close()
}
