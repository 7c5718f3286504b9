// Package dispatch hands persisted appointments to the asynchronous
// image-processing task. Hand-off is fire-and-forget: a dispatcher returns as
// soon as the transport accepts the payload and never waits for processing.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/umedi/intake-api/internal/config"
	"github.com/umedi/intake-api/internal/model"
	"github.com/umedi/intake-api/pkg/circuitbreaker"
	apperrors "github.com/umedi/intake-api/pkg/errors"
	"github.com/umedi/intake-api/pkg/logger"
	redisbroker "github.com/umedi/intake-api/pkg/messaging/redis"
	"github.com/umedi/intake-api/pkg/metrics"
)

// Payload is what the processor receives. Image manifests are passed through
// exactly as the caller sent them.
type Payload struct {
	AppointmentID  string          `json:"appointment_id"`
	HospitalID     int64           `json:"hospital_id"`
	Speciality     string          `json:"speciality"`
	ClaimYN        model.ClaimFlag `json:"claim_yn"`
	InsuranceImgs  json.RawMessage `json:"insurance_imgs,omitempty"`
	AdditionalImgs json.RawMessage `json:"additional_imgs,omitempty"`
}

type Dispatcher interface {
	Dispatch(ctx context.Context, payload *Payload) error
}

type Options struct {
	Mode    string
	Timeout time.Duration
	Breaker circuitbreaker.Settings
}

// Guarded bounds each dispatch with a timeout and a circuit breaker and
// records the attempt. Failures come back as KindDispatch errors.
type Guarded struct {
	next    Dispatcher
	mode    string
	timeout time.Duration
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewGuarded(next Dispatcher, opts Options, log *logger.Logger, m *metrics.Metrics) *Guarded {
	if opts.Breaker.Name == "" {
		opts.Breaker.Name = "dispatch-" + opts.Mode
	}
	return &Guarded{
		next:    next,
		mode:    opts.Mode,
		timeout: opts.Timeout,
		breaker: circuitbreaker.NewCircuitBreaker(opts.Breaker),
		log:     log,
		metrics: m,
	}
}

func (g *Guarded) Mode() string {
	return g.mode
}

func (g *Guarded) Dispatch(ctx context.Context, payload *Payload) error {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	g.metrics.DispatchAttempts.WithLabelValues(g.mode).Inc()
	start := time.Now()
	err := g.breaker.Execute(func() error {
		return g.next.Dispatch(ctx, payload)
	})
	g.metrics.DispatchLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		g.metrics.DispatchFailures.WithLabelValues(g.mode).Inc()
		g.log.WithContext(ctx).Error(err, "failed to dispatch appointment",
			"appointment_id", payload.AppointmentID,
			"mode", g.mode,
			"breaker_state", string(g.breaker.State()),
		)
		return apperrors.Dispatch("failed to dispatch appointment", err)
	}
	return nil
}

// Close releases the underlying transport when it holds one.
func (g *Guarded) Close() error {
	if c, ok := g.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// New builds the dispatcher selected by cfg.Mode.
func New(ctx context.Context, cfg config.DispatchConfig, redisCfg config.RedisConfig, log *logger.Logger, m *metrics.Metrics) (*Guarded, error) {
	var next Dispatcher
	switch cfg.Mode {
	case config.DispatchModeRedis:
		broker, err := redisbroker.NewRedisBroker(ctx, redisbroker.Config{
			URL:          redisCfg.URL,
			MaxRetries:   redisCfg.MaxRetries,
			PoolSize:     redisCfg.PoolSize,
			MinIdleConns: redisCfg.MinIdleConns,
		})
		if err != nil {
			return nil, err
		}
		next = NewStreamDispatcher(broker, cfg.Target)
	case config.DispatchModeHTTP:
		next = NewHTTPDispatcher(resty.New(), cfg.Target, cfg.Region)
	case config.DispatchModeNoop, "":
		next = NewNoopDispatcher(log)
	default:
		return nil, fmt.Errorf("unknown dispatch mode %q", cfg.Mode)
	}

	return NewGuarded(next, Options{
		Mode:    cfg.Mode,
		Timeout: cfg.Timeout,
		Breaker: circuitbreaker.Settings{
			MaxFailures: cfg.Breaker.MaxFailures,
			Interval:    cfg.Breaker.Interval,
			Timeout:     cfg.Breaker.Timeout,
		},
	}, log, m), nil
}
