package dispatch

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

const (
	headerInvocationType = "X-Amz-Invocation-Type"
	headerRegion         = "X-Intake-Region"
	invocationTypeEvent  = "Event"
)

// HTTPDispatcher posts payloads to the processor's invoke endpoint as an
// event invocation. Any 2xx means the processor queued the work.
type HTTPDispatcher struct {
	client *resty.Client
	target string
	region string
}

func NewHTTPDispatcher(client *resty.Client, target, region string) *HTTPDispatcher {
	client.
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &HTTPDispatcher{
		client: client,
		target: target,
		region: region,
	}
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, payload *Payload) error {
	req := d.client.R().
		SetContext(ctx).
		SetHeader(headerInvocationType, invocationTypeEvent).
		SetBody(payload)
	if d.region != "" {
		req.SetHeader(headerRegion, d.region)
	}

	resp, err := req.Post(d.target)
	if err != nil {
		return fmt.Errorf("failed to invoke processor: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("processor rejected invocation with status %d", resp.StatusCode())
	}
	return nil
}
