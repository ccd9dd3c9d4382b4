package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCacheWithClient(client), mr
}

type cachedStatus struct {
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
}

func TestRedisCache_SetGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "payment_status:cs_1", cachedStatus{SessionID: "cs_1", Status: "complete"}, time.Minute))

	var got cachedStatus
	require.NoError(t, c.Get(ctx, "payment_status:cs_1", &got))
	assert.Equal(t, "cs_1", got.SessionID)
	assert.Equal(t, "complete", got.Status)
}

func TestRedisCache_GetMiss(t *testing.T) {
	c, _ := newTestCache(t)

	var got cachedStatus
	err := c.Get(context.Background(), "missing", &got)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_SetNX(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "stripe_event:evt_1", "processed", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "stripe_event:evt_1", "processed", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	exists, err := c.Exists(ctx, "stripe_event:evt_1")
	require.NoError(t, err)
	assert.True(t, exists)

	mr.FastForward(2 * time.Hour)
	exists, err = c.Exists(ctx, "stripe_event:evt_1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedisCache_Delete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", 1, 0))
	require.NoError(t, c.Delete(ctx, "k"))

	exists, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedisCache_PublishSubscribe(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	sub := c.Subscribe(ctx, "wallet_updates")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, c.Publish(ctx, "wallet_updates", map[string]string{"walletId": "w1"}))

	select {
	case msg := <-sub.Channel():
		assert.JSONEq(t, `{"walletId":"w1"}`, msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}
