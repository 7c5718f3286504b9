package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisBroker_Publish(t *testing.T) {
	_, client := setupTestRedis(t)

	broker := NewRedisBrokerWithClient(client, 0)
	broker.now = func() time.Time { return time.Unix(1700000000, 0) }

	ctx := context.Background()
	err := broker.Publish(ctx, "appointments", map[string]string{"appointment_id": "42"})
	require.NoError(t, err)

	entries, err := client.XRange(ctx, "appointments", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["data"].(string)), &decoded))
	assert.Equal(t, "42", decoded["appointment_id"])
	assert.Equal(t, "1700000000", entries[0].Values["timestamp"])
}

func TestRedisBroker_PublishUnmarshalable(t *testing.T) {
	_, client := setupTestRedis(t)
	broker := NewRedisBrokerWithClient(client, 0)

	err := broker.Publish(context.Background(), "appointments", make(chan int))
	assert.Error(t, err)
}

func TestRedisBroker_PublishServerDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	broker := NewRedisBrokerWithClient(client, 0)
	mr.Close()

	err := broker.Publish(context.Background(), "appointments", map[string]string{"appointment_id": "1"})
	assert.Error(t, err)
}

func TestNewRedisBroker(t *testing.T) {
	mr := miniredis.RunT(t)

	broker, err := NewRedisBroker(context.Background(), Config{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	assert.NoError(t, broker.Close())

	_, err = NewRedisBroker(context.Background(), Config{URL: "not-a-url"})
	assert.Error(t, err)
}
