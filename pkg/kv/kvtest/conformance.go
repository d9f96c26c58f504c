// Package kvtest provides conformance tests for kv.Store implementations
package kvtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioneo/stakeledger/pkg/kv"
)

// StoreFactory creates a fresh Store instance for testing
type StoreFactory func(t *testing.T) kv.Store

// RunConformanceTests runs all conformance tests against a Store implementation
func RunConformanceTests(t *testing.T, factory StoreFactory) {
	tests := []struct {
		name string
		test func(t *testing.T, store kv.Store)
	}{
		{"SetGet", testSetGet},
		{"GetNonExistent", testGetNonExistent},
		{"Overwrite", testOverwrite},
		{"DelExists", testDelExists},
		{"TTL", testTTL},
		{"Hash", testHash},
		{"WrongType", testWrongType},
		{"ListPushRange", testListPushRange},
		{"ListTrim", testListTrim},
		{"HealthCheck", testHealthCheck},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			tt.test(t, store)
		})
	}
}

func testSetGet(t *testing.T, store kv.Store) {
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "test:key", []byte("value")))

	got, err := store.Get(ctx, "test:key")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)
}

func testGetNonExistent(t *testing.T, store kv.Store) {
	_, err := store.Get(context.Background(), "test:missing")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func testOverwrite(t *testing.T, store kv.Store) {
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "test:key", []byte("v1"), time.Hour))
	require.NoError(t, store.Set(ctx, "test:key", []byte("v2")))

	got, err := store.Get(ctx, "test:key")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	ttl, err := store.TTL(ctx, "test:key")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), ttl, "a plain Set clears the previous expiry")
}

func testDelExists(t *testing.T, store kv.Store) {
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "test:a", []byte("1")))
	require.NoError(t, store.HSet(ctx, "test:b", "f", []byte("2")))

	n, err := store.Exists(ctx, "test:a", "test:b", "test:c")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = store.Del(ctx, "test:a", "test:b", "test:c")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = store.Exists(ctx, "test:a", "test:b")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testTTL(t *testing.T, store kv.Store) {
	ctx := context.Background()

	_, err := store.TTL(ctx, "test:missing")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, store.Set(ctx, "test:ttl", []byte("v"), time.Minute))
	ttl, err := store.TTL(ctx, "test:ttl")
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)
	assert.LessOrEqual(t, ttl, time.Minute)

	require.NoError(t, store.Set(ctx, "test:short", []byte("v"), 50*time.Millisecond))
	assert.Eventually(t, func() bool {
		_, err := store.Get(ctx, "test:short")
		return err == kv.ErrNotFound
	}, 2*time.Second, 20*time.Millisecond)
}

func testHash(t *testing.T, store kv.Store) {
	ctx := context.Background()

	_, err := store.HGetAll(ctx, "test:hash")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, store.HSet(ctx, "test:hash", "lp", []byte("1")))
	require.NoError(t, store.HSet(ctx, "test:hash", "nft", []byte("2")))
	require.NoError(t, store.HSet(ctx, "test:hash", "lp", []byte("3")))

	got, err := store.HGet(ctx, "test:hash", "lp")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), got)

	_, err = store.HGet(ctx, "test:hash", "ido")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	all, err := store.HGetAll(ctx, "test:hash")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"lp": []byte("3"), "nft": []byte("2")}, all)
}

func testWrongType(t *testing.T, store kv.Store) {
	ctx := context.Background()
	require.NoError(t, store.HSet(ctx, "test:hash", "f", []byte("v")))

	_, err := store.Get(ctx, "test:hash")
	assert.ErrorIs(t, err, kv.ErrWrongType)

	_, err = store.LPush(ctx, "test:hash", []byte("x"))
	assert.ErrorIs(t, err, kv.ErrWrongType)
}

func testListPushRange(t *testing.T, store kv.Store) {
	ctx := context.Background()

	_, err := store.LRange(ctx, "test:list", 0, -1)
	assert.ErrorIs(t, err, kv.ErrNotFound)

	n, err := store.LPush(ctx, "test:list", []byte("a"), []byte("b"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	n, err = store.LPush(ctx, "test:list", []byte("c"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	all, err := store.LRange(ctx, "test:list", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("c"), []byte("b"), []byte("a")}, all)

	tail, err := store.LRange(ctx, "test:list", -2, 10)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("b"), []byte("a")}, tail)

	none, err := store.LRange(ctx, "test:list", 5, 9)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testListTrim(t *testing.T, store kv.Store) {
	ctx := context.Background()
	for _, v := range []string{"1", "2", "3", "4", "5"} {
		_, err := store.LPush(ctx, "test:feed", []byte(v))
		require.NoError(t, err)
	}

	require.NoError(t, store.LTrim(ctx, "test:feed", 0, 2))
	got, err := store.LRange(ctx, "test:feed", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("5"), []byte("4"), []byte("3")}, got)

	require.NoError(t, store.LTrim(ctx, "test:feed", 5, 10))
	n, err := store.Exists(ctx, "test:feed")
	require.NoError(t, err)
	assert.Zero(t, n, "trimming to an empty range removes the list")

	require.NoError(t, store.LTrim(ctx, "test:missing", 0, 1))
}

func testHealthCheck(t *testing.T, store kv.Store) {
	assert.NoError(t, store.Ping(context.Background()))
}
