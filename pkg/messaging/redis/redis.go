package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/umedi/intake-api/pkg/messaging"
)

// RedisBroker appends messages to redis streams with XADD. Each entry carries
// the JSON document under "data" and the publish time under "timestamp".
type RedisBroker struct {
	client redis.UniversalClient
	maxLen int64
	now    func() time.Time
}

type Config struct {
	URL          string
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
	// MaxLen approximately caps each stream; zero leaves it unbounded.
	MaxLen int64
}

func NewRedisBroker(ctx context.Context, config Config) (messaging.Broker, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.MaxRetries > 0 {
		opts.MaxRetries = config.MaxRetries
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisBrokerWithClient(client, config.MaxLen), nil
}

func NewRedisBrokerWithClient(client redis.UniversalClient, maxLen int64) *RedisBroker {
	return &RedisBroker{
		client: client,
		maxLen: maxLen,
		now:    time.Now,
	}
}

func (b *RedisBroker) Publish(ctx context.Context, stream string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"data":      string(payload),
			"timestamp": b.now().Unix(),
		},
	}
	if b.maxLen > 0 {
		args.MaxLen = b.maxLen
		args.Approx = true
	}

	if err := b.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", stream, err)
	}
	return nil
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
