package kv_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioneo/stakeledger/pkg/kv"
	"github.com/bioneo/stakeledger/pkg/kv/memory"
)

// flakyStore is a memory store that reports ErrBackendUnavailable while down.
type flakyStore struct {
	*memory.Store
	down atomic.Bool
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error {
	if f.down.Load() {
		return kv.ErrBackendUnavailable
	}
	return f.Store.Set(ctx, key, value, ttl...)
}

func (f *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.down.Load() {
		return nil, kv.ErrBackendUnavailable
	}
	return f.Store.Get(ctx, key)
}

func (f *flakyStore) Ping(ctx context.Context) error {
	if f.down.Load() {
		return kv.ErrBackendUnavailable
	}
	return nil
}

func TestFailoverAndRecovery(t *testing.T) {
	ctx := context.Background()
	primary := &flakyStore{Store: memory.New(0)}
	fallback := memory.New(0)

	fs := kv.NewFailoverStore(primary, fallback, 10*time.Millisecond, nil)
	defer fs.Close()

	require.NoError(t, fs.Set(ctx, "snapshot:lp", []byte("v1")))
	assert.Equal(t, "primary", fs.ActiveBackend())

	primary.down.Store(true)
	require.NoError(t, fs.Set(ctx, "snapshot:lp", []byte("v2")))
	assert.Equal(t, "fallback", fs.ActiveBackend())

	got, err := fs.Get(ctx, "snapshot:lp")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	primary.down.Store(false)
	assert.Eventually(t, func() bool {
		return fs.ActiveBackend() == "primary"
	}, time.Second, 5*time.Millisecond)

	got, err = fs.Get(ctx, "snapshot:lp")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)
}

func TestFailoverStartsOnFallback(t *testing.T) {
	primary := &flakyStore{Store: memory.New(0)}
	primary.down.Store(true)

	fs := kv.NewFailoverStoreWithFallbackActive(primary, memory.New(0), 10*time.Millisecond, nil)
	assert.Equal(t, "fallback", fs.ActiveBackend())

	primary.down.Store(false)
	assert.Eventually(t, func() bool {
		return fs.ActiveBackend() == "primary"
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, fs.Close())
	require.NoError(t, fs.Close())
}

func TestNewStoreFromConfig(t *testing.T) {
	store, err := kv.NewStoreFromConfig(kv.Config{Backend: kv.BackendMemory})
	require.NoError(t, err)
	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, store.Close())

	_, err = kv.NewStoreFromConfig(kv.Config{Backend: kv.BackendRedis})
	assert.Error(t, err)

	_, err = kv.NewStoreFromConfig(kv.Config{Backend: "etcd"})
	assert.Error(t, err)
}
