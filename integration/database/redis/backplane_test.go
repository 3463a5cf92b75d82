package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fleet/core/backplane"
	"github.com/dmitrymomot/fleet/integration/database/redis"
)

func connect(t *testing.T) (*miniredis.Miniredis, *redis.Backplane) {
	t.Helper()

	mr := miniredis.RunT(t)
	cfg := redis.DefaultConfig()
	cfg.ConnectionURL = "redis://" + mr.Addr()
	cfg.ConnectTimeout = 5 * time.Second
	cfg.MaxReconnectAttempts = 2

	bp, err := redis.Connect(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bp.Close() })

	return mr, bp
}

func TestConnect_EmptyURL(t *testing.T) {
	_, err := redis.Connect(context.Background(), redis.Config{})
	assert.ErrorIs(t, err, redis.ErrEmptyConnectionURL)
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := redis.Connect(context.Background(), redis.Config{ConnectionURL: "http://localhost"})
	assert.ErrorIs(t, err, redis.ErrFailedToParseRedisConnString)
}

func TestConnect_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := redis.Config{
		ConnectionURL:  "redis://" + addr,
		RetryAttempts:  2,
		ConnectTimeout: 2 * time.Second,
	}
	_, err := redis.Connect(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, backplane.ErrConnectivity)
	assert.ErrorIs(t, err, redis.ErrRedisNotReady)
}

func TestBackplane_StoreOperations(t *testing.T) {
	ctx := context.Background()
	mr, bp := connect(t)

	_, err := bp.Get(ctx, "missing")
	assert.ErrorIs(t, err, backplane.ErrNotFound)

	require.NoError(t, bp.Set(ctx, "sess:a", []byte(`{"id":"a"}`), time.Hour))
	require.NoError(t, bp.Set(ctx, "scaling:recommendation", []byte(`{}`), 0))

	v, err := bp.Get(ctx, "sess:a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"a"}`, string(v))

	assert.Equal(t, time.Hour, mr.TTL("sess:a"))
	assert.Equal(t, time.Duration(0), mr.TTL("scaling:recommendation"))

	mr.FastForward(time.Hour + time.Second)
	_, err = bp.Get(ctx, "sess:a")
	assert.ErrorIs(t, err, backplane.ErrNotFound)

	require.NoError(t, bp.Delete(ctx, "scaling:recommendation"))
	require.NoError(t, bp.Delete(ctx, "scaling:recommendation"))
	assert.False(t, mr.Exists("scaling:recommendation"))
}

func TestBackplane_ReplaceOnlyExisting(t *testing.T) {
	ctx := context.Background()
	mr, bp := connect(t)

	assert.ErrorIs(t, bp.Replace(ctx, "sess:gone", []byte("x"), time.Hour), backplane.ErrNotFound)
	assert.False(t, mr.Exists("sess:gone"))

	require.NoError(t, bp.Set(ctx, "sess:b", []byte("v1"), time.Minute))
	require.NoError(t, bp.Replace(ctx, "sess:b", []byte("v2"), time.Hour))

	v, err := mr.Get("sess:b")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
	assert.Equal(t, time.Hour, mr.TTL("sess:b"))
}

func TestBackplane_KeysByPrefix(t *testing.T) {
	ctx := context.Background()
	_, bp := connect(t)

	for _, k := range []string{"metrics:n1", "metrics:n2", "sess:x", "metrics*odd"} {
		require.NoError(t, bp.Set(ctx, k, []byte("1"), time.Minute))
	}

	keys, err := bp.Keys(ctx, "metrics:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"metrics:n1", "metrics:n2"}, keys)

	keys, err = bp.Keys(ctx, "metrics*")
	require.NoError(t, err)
	assert.Equal(t, []string{"metrics*odd"}, keys, "glob characters in the prefix match literally")
}

func TestBackplane_PublishSubscribe(t *testing.T) {
	ctx := context.Background()
	_, bp := connect(t)

	sub, err := bp.Subscribe(ctx, "session-created", "session-destroyed")
	require.NoError(t, err)

	require.NoError(t, bp.Publish(ctx, "session-created", []byte("hello")))

	select {
	case msg := <-sub.Messages():
		assert.Equal(t, "session-created", msg.Channel)
		assert.Equal(t, []byte("hello"), msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}

	require.NoError(t, sub.Close())
	_, ok := <-sub.Messages()
	assert.False(t, ok)
	assert.NoError(t, sub.Err())
}

func TestBackplane_SubscriptionLost(t *testing.T) {
	ctx := context.Background()
	mr, bp := connect(t)

	sub, err := bp.Subscribe(ctx, "broadcast-message")
	require.NoError(t, err)
	defer sub.Close()

	mr.Close()

	select {
	case _, ok := <-sub.Messages():
		assert.False(t, ok)
	case <-time.After(10 * time.Second):
		t.Fatal("subscription did not give up")
	}
	assert.ErrorIs(t, sub.Err(), redis.ErrSubscriptionLost)
	assert.ErrorIs(t, sub.Err(), backplane.ErrConnectivity)
}

func TestHealthcheck(t *testing.T) {
	mr, bp := connect(t)
	check := redis.Healthcheck(bp.Client())

	assert.NoError(t, check(context.Background()))

	mr.Close()
	assert.ErrorIs(t, check(context.Background()), redis.ErrHealthcheckFailed)
}
