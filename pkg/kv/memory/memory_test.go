package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioneo/stakeledger/pkg/kv"
	"github.com/bioneo/stakeledger/pkg/kv/kvtest"
)

func TestMemoryStore(t *testing.T) {
	kvtest.RunConformanceTests(t, func(t *testing.T) kv.Store {
		return New(0) // no janitor, deterministic
	})
}

func TestMemoryStoreWithJanitor(t *testing.T) {
	store := New(10 * time.Millisecond)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "test:janitor", []byte("v"), 20*time.Millisecond))

	_, err := store.Get(ctx, "test:janitor")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		_, ok := store.strings["test:janitor"]
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestExpiryWithClock(t *testing.T) {
	store := New(0)
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	ttl, err := store.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	now = now.Add(time.Minute)
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}
