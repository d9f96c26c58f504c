package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioneo/stakeledger/pkg/kv"
)

func newMemoryCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := NewCache(Config{Backend: kv.BackendMemory}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestSnapshotRoundTrip(t *testing.T) {
	cache := newMemoryCache(t)
	ctx := context.Background()
	assert.True(t, cache.IsInMemoryMode())

	var got map[string]uint64
	assert.ErrorIs(t, cache.GetSnapshot(ctx, "lp-staking", &got), ErrCacheMiss)

	require.NoError(t, cache.SetSnapshot(ctx, "lp-staking", map[string]uint64{"total_shares": 1000}))
	require.NoError(t, cache.GetSnapshot(ctx, "lp-staking", &got))
	assert.Equal(t, uint64(1000), got["total_shares"])
}

func TestPoolStats(t *testing.T) {
	cache := newMemoryCache(t)
	ctx := context.Background()

	empty, err := cache.PoolStats(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, cache.SetPoolStats(ctx, "lp-staking", []int{1, 2}))
	require.NoError(t, cache.SetPoolStats(ctx, "nft-staking", []int{3}))

	stats, err := cache.PoolStats(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2]`, string(stats["lp-staking"]))
	assert.JSONEq(t, `[3]`, string(stats["nft-staking"]))
}

func TestRecentEventsAreCapped(t *testing.T) {
	cache := newMemoryCache(t)
	ctx := context.Background()

	for i := 0; i < RecentEventsLimit+5; i++ {
		require.NoError(t, cache.PushEvent(ctx, map[string]int{"n": i}))
	}

	events, err := cache.RecentEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, RecentEventsLimit)
	assert.JSONEq(t, fmt.Sprintf(`{"n":%d}`, RecentEventsLimit+4), string(events[0]))

	two, err := cache.RecentEvents(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestInMemoryPubSub(t *testing.T) {
	cache := newMemoryCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := cache.Subscribe(ctx, TopicEvents)
	defer sub.Close()

	require.NoError(t, cache.Publish(ctx, TopicEvents, map[string]string{"op": "stake"}))
	require.NoError(t, cache.Publish(ctx, TopicPoolStats, map[string]string{"op": "ignored"}))

	select {
	case msg := <-sub.Channel():
		require.NotNil(t, msg)
		assert.Equal(t, TopicEvents, msg.Channel)
		var payload map[string]string
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &payload))
		assert.Equal(t, "stake", payload["op"])
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for pubsub message")
	}
}

func TestHubDropsClosedSubscribers(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	sub := hub.Subscribe(ctx, "a", "b")
	assert.Equal(t, 1, hub.Subscribers("a"))

	cancel()
	assert.Eventually(t, func() bool {
		return hub.Subscribers("a") == 0 && hub.Subscribers("b") == 0
	}, time.Second, 5*time.Millisecond)

	_, ok := <-sub.Channel()
	assert.False(t, ok)
	require.NoError(t, hub.Publish(context.Background(), "a", []byte("x")))
}
