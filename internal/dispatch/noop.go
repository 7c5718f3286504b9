package dispatch

import (
	"context"

	"github.com/umedi/intake-api/pkg/logger"
)

// NoopDispatcher only logs. Used when no processor is configured.
type NoopDispatcher struct {
	log *logger.Logger
}

func NewNoopDispatcher(log *logger.Logger) *NoopDispatcher {
	return &NoopDispatcher{log: log}
}

func (d *NoopDispatcher) Dispatch(ctx context.Context, payload *Payload) error {
	d.log.WithContext(ctx).Debug("dispatch disabled, dropping payload",
		"appointment_id", payload.AppointmentID)
	return nil
}
