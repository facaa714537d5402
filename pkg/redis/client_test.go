package redis

import (
	"context"
	"testing"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley-backend/pkg/config"
)

type fakeCmdable struct {
	setNXResults map[string]bool
	deleted      []string
}

func (f *fakeCmdable) Ping(ctx context.Context) *redislib.StatusCmd {
	return redislib.NewStatusResult("PONG", nil)
}

func (f *fakeCmdable) Set(ctx context.Context, key string, value any, ttl time.Duration) *redislib.StatusCmd {
	return redislib.NewStatusResult("OK", nil)
}

func (f *fakeCmdable) Get(ctx context.Context, key string) *redislib.StringCmd {
	return redislib.NewStringResult("", redislib.Nil)
}

func (f *fakeCmdable) SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redislib.BoolCmd {
	set, ok := f.setNXResults[key]
	if !ok {
		set = true
	}
	return redislib.NewBoolResult(set, nil)
}

func (f *fakeCmdable) Incr(ctx context.Context, key string) *redislib.IntCmd {
	return redislib.NewIntResult(1, nil)
}

func (f *fakeCmdable) Del(ctx context.Context, keys ...string) *redislib.IntCmd {
	f.deleted = append(f.deleted, keys...)
	return redislib.NewIntResult(int64(len(keys)), nil)
}

func TestIdempotencyKeyNamespacing(t *testing.T) {
	client := &Client{store: &fakeCmdable{}}
	key := client.IdempotencyKey("stripe-webhook", "evt_123")
	require.Equal(t, "parley:idempotency:stripe-webhook:evt_123", key)
}

func TestSetNXReportsExistingKey(t *testing.T) {
	store := &fakeCmdable{setNXResults: map[string]bool{"parley:idempotency:s:a": false}}
	client := &Client{store: store}

	set, err := client.SetNX(context.Background(), client.IdempotencyKey("s", "a"), "1", time.Minute)
	require.NoError(t, err)
	require.False(t, set)

	set, err = client.SetNX(context.Background(), client.IdempotencyKey("s", "b"), "1", time.Minute)
	require.NoError(t, err)
	require.True(t, set)
}

func TestOptionsFromConfigRequiresURL(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)
}

func TestOptionsFromConfigParsesURL(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 5})
	require.NoError(t, err)
	require.Equal(t, "localhost:6379", opts.Addr)
	require.Equal(t, 2, opts.DB)
	require.Equal(t, 5, opts.PoolSize)
}
